package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicworks/fixline/internal/audit"
	"github.com/civicworks/fixline/internal/reports/model"
	"github.com/civicworks/fixline/internal/reports/policy"
	"github.com/civicworks/fixline/internal/reports/repository"
)

// reportRepo is the persistence interface for the lifecycle engine.
// *repository.ReportRepository satisfies this interface.
type reportRepo interface {
	Create(ctx context.Context, rpt *model.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Report, error)
	List(ctx context.Context, f model.ListFilter) ([]*model.Report, int, error)
	CountByDepartment(ctx context.Context, dept model.Department) (model.StatusCounts, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, from model.ReportStatus, eff *model.Effects) (*model.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Screener scores a new report for spam/fake signals. The score is a hint
// for verifiers and never blocks creation.
type Screener interface {
	Score(title, description, location string) int
}

// Notifier is told about completed lifecycle changes after they are durable.
// Implementations must not block; the engine calls these inline.
type Notifier interface {
	ReportCreated(rpt *model.Report)
	ReportTransitioned(rpt *model.Report)
	ReportDeleted(rpt *model.Report)
}

// Engine is the only component permitted to write report status and its
// dependent fields. Every mutation is a single conditional update against
// the store; concurrent transitions on the same report are resolved by the
// status compare-and-set, not by locks.
type Engine struct {
	repo     reportRepo
	ledger   audit.Ledger // nil = no audit writes
	screener Screener     // nil = no screening
	notifier Notifier     // nil = no notifications
	logger   *zap.Logger
}

// NewEngine creates a lifecycle engine. ledger and screener may each be nil
// to disable that feature.
func NewEngine(repo reportRepo, ledger audit.Ledger, screener Screener, logger *zap.Logger) *Engine {
	return &Engine{repo: repo, ledger: ledger, screener: screener, logger: logger}
}

// SetNotifier attaches a notifier for completed lifecycle changes.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Create submits a new report on behalf of the reporting actor. Reports are
// always born pending; every later status change goes through ApplyTransition.
func (e *Engine) Create(ctx context.Context, actor model.Actor, req *model.CreateReportRequest) (*model.Report, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	rpt := &model.Report{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Category:     req.Category,
		Location:     strings.TrimSpace(req.Location),
		ImageURL:     req.ImageURL,
		Status:       model.StatusPending,
		ReporterID:   actor.ID,
		ReporterName: actor.Name,
	}
	if e.screener != nil {
		rpt.ScreeningScore = e.screener.Score(rpt.Title, rpt.Description, rpt.Location)
	}

	if err := e.repo.Create(ctx, rpt); err != nil {
		e.logger.Error("failed to create report", zap.Error(err))
		return nil, mapStoreErr(err)
	}

	e.logger.Info("report created",
		zap.String("report_id", rpt.ID.String()),
		zap.String("category", string(rpt.Category)),
		zap.Int("screening_score", rpt.ScreeningScore),
	)
	e.appendAudit(ctx, rpt.ID, "create", actor, map[string]string{
		"category": string(rpt.Category),
		"location": rpt.Location,
	})
	if e.notifier != nil {
		e.notifier.ReportCreated(rpt)
	}

	return rpt, nil
}

// Get retrieves a report by its identifier.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	rpt, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return rpt, nil
}

// ApplyTransition moves a report to the requested status on behalf of actor.
//
// The sequence is load → decide → conditional write: the store update is
// conditioned on the status read here still matching at write time, so two
// simultaneous transitions on one report cannot both land — the loser gets
// Conflict and must re-read before retrying. A denial leaves the report
// untouched.
func (e *Engine) ApplyTransition(ctx context.Context, reportID uuid.UUID, actor model.Actor, requested model.ReportStatus, payload model.TransitionPayload) (*model.Report, error) {
	rpt, err := e.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	eff, err := policy.Decide(rpt, actor, requested, payload)
	if err != nil {
		return nil, err
	}

	updated, err := e.repo.ApplyTransition(ctx, rpt.ID, rpt.Status, eff)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			e.logger.Warn("transition lost concurrency race",
				zap.String("report_id", reportID.String()),
				zap.String("requested", string(requested)),
			)
		}
		return nil, mapStoreErr(err)
	}

	e.logger.Info("report transitioned",
		zap.String("report_id", updated.ID.String()),
		zap.String("from", string(rpt.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_role", string(actor.Role)),
	)
	e.appendAudit(ctx, updated.ID, "transition", actor, map[string]string{
		"from": string(rpt.Status),
		"to":   string(updated.Status),
	})
	if e.notifier != nil {
		e.notifier.ReportTransitioned(updated)
	}

	return updated, nil
}

// Delete removes a report permanently. Only terminal fake reports qualify,
// and only staff may remove them — this is administrative cleanup, not a
// lifecycle transition.
func (e *Engine) Delete(ctx context.Context, reportID uuid.UUID, actor model.Actor) error {
	rpt, err := e.repo.GetByID(ctx, reportID)
	if err != nil {
		return mapStoreErr(err)
	}
	if err := policy.CanDelete(rpt, actor); err != nil {
		return err
	}
	if err := e.repo.Delete(ctx, reportID); err != nil {
		return mapStoreErr(err)
	}

	e.logger.Info("fake report deleted",
		zap.String("report_id", reportID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	e.appendAudit(ctx, reportID, "delete", actor, map[string]string{
		"status": string(rpt.Status),
	})
	if e.notifier != nil {
		e.notifier.ReportDeleted(rpt)
	}
	return nil
}

// appendAudit records a lifecycle event in a non-fatal manner.
func (e *Engine) appendAudit(ctx context.Context, reportID uuid.UUID, action string, actor model.Actor, payload any) {
	if e.ledger == nil {
		return
	}
	if _, err := e.ledger.Append(ctx, reportID.String(), action, actor.ID.String(), payload); err != nil {
		e.logger.Error("audit append failed (non-fatal)",
			zap.String("action", action),
			zap.String("report_id", reportID.String()),
			zap.Error(err),
		)
	}
}

func validateCreate(req *model.CreateReportRequest) error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return model.NewError(model.ReasonValidation, "title is required")
	case strings.TrimSpace(req.Description) == "":
		return model.NewError(model.ReasonValidation, "description is required")
	case strings.TrimSpace(req.Location) == "":
		return model.NewError(model.ReasonValidation, "location is required")
	case !req.Category.Valid():
		return model.NewError(model.ReasonValidation, fmt.Sprintf("unknown category %q", req.Category))
	}
	return nil
}

// mapStoreErr translates repository sentinels into the engine's typed error
// taxonomy so presentation code only ever deals in reason codes.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return model.NewError(model.ReasonNotFound, "report not found")
	case errors.Is(err, repository.ErrConflict):
		return model.NewError(model.ReasonConflict, "report was modified concurrently; re-read and retry")
	case errors.Is(err, repository.ErrUnavailable):
		return model.NewError(model.ReasonStoreUnavailable, err.Error())
	default:
		return err
	}
}
