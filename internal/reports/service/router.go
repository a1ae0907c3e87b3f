package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicworks/fixline/internal/reports/model"
)

// FieldHeadDirectory resolves assignment targets to their name and
// department. *users.UserService satisfies this interface.
type FieldHeadDirectory interface {
	FieldHead(ctx context.Context, id uuid.UUID) (name string, dept model.Department, err error)
}

// Router owns department-scoped routing: single assignment of a verified
// report to a field head, and department-wide bulk verification/rejection.
type Router struct {
	engine    *Engine
	directory FieldHeadDirectory
	logger    *zap.Logger
}

// NewRouter creates an assignment router on top of the lifecycle engine.
func NewRouter(engine *Engine, directory FieldHeadDirectory, logger *zap.Logger) *Router {
	return &Router{engine: engine, directory: directory, logger: logger}
}

// AssignToFieldHead assigns a verified report to the given field head. The
// target's department is resolved here so the transition policy can check
// department equality without doing I/O. An unknown target is an invalid
// assignee, not a missing report.
func (r *Router) AssignToFieldHead(ctx context.Context, actor model.Actor, reportID, fieldHeadID uuid.UUID) (*model.Report, error) {
	name, dept, err := r.directory.FieldHead(ctx, fieldHeadID)
	if err != nil {
		return nil, model.NewError(model.ReasonInvalidAssignee, "no such field head")
	}

	return r.engine.ApplyTransition(ctx, reportID, actor, model.StatusAssigned, model.TransitionPayload{
		FieldHeadID:         &fieldHeadID,
		FieldHeadName:       name,
		FieldHeadDepartment: dept,
	})
}

// BulkVerify verifies every currently-pending report whose category routes
// to dept. Each report's transition is independently atomic; the batch is
// not — a report that fails is recorded and the batch keeps going. Count
// reflects only reports whose status actually changed.
func (r *Router) BulkVerify(ctx context.Context, actor model.Actor, dept model.Department) (*model.BulkResult, error) {
	return r.bulkTransition(ctx, actor, dept, model.StatusVerified)
}

// BulkMarkFake rejects every currently-pending report whose category routes
// to dept, symmetric to BulkVerify.
func (r *Router) BulkMarkFake(ctx context.Context, actor model.Actor, dept model.Department) (*model.BulkResult, error) {
	return r.bulkTransition(ctx, actor, dept, model.StatusFake)
}

func (r *Router) bulkTransition(ctx context.Context, actor model.Actor, dept model.Department, target model.ReportStatus) (*model.BulkResult, error) {
	if !dept.Valid() {
		return nil, model.NewError(model.ReasonValidation, "unknown department")
	}

	pending, err := r.collectPending(ctx, dept)
	if err != nil {
		return nil, err
	}

	result := &model.BulkResult{Failures: []model.BulkFailure{}}
	payload := model.TransitionPayload{Department: dept}
	for _, rpt := range pending {
		if _, err := r.engine.ApplyTransition(ctx, rpt.ID, actor, target, payload); err != nil {
			result.Failures = append(result.Failures, model.BulkFailure{
				ReportID: rpt.ID,
				Reason:   failureReason(err),
			})
			continue
		}
		result.Count++
	}

	r.logger.Info("bulk transition finished",
		zap.String("department", string(dept)),
		zap.String("target", string(target)),
		zap.Int("count", result.Count),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// collectPending pages through all pending reports of the department's
// category. The snapshot is taken page by page; reports transitioned by a
// concurrent caller simply fail their item with a conflict or illegal
// transition and are reported as such.
func (r *Router) collectPending(ctx context.Context, dept model.Department) ([]*model.Report, error) {
	const pageSize = 200

	var all []*model.Report
	for page := 1; ; page++ {
		batch, _, err := r.engine.repo.List(ctx, model.ListFilter{
			Statuses: []model.ReportStatus{model.StatusPending},
			Category: model.CategoryForDepartment(dept),
			Sort:     model.SortByCreatedAt,
			Order:    model.OrderAsc,
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			return nil, mapStoreErr(err)
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
}

func failureReason(err error) string {
	if reason := model.ReasonOf(err); reason != "" {
		return string(reason)
	}
	return err.Error()
}
