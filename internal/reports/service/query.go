package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicworks/fixline/internal/reports/model"
)

// ListForActor returns the filtered report page visible to actor along with
// the total match count.
//
// A reporter sees only their own reports regardless of the supplied filter.
// Staff roles see all reports; narrowing to a department or category is the
// caller's explicit choice, not an automatic row-level restriction.
func (e *Engine) ListForActor(ctx context.Context, actor model.Actor, f model.ListFilter) ([]*model.Report, int, error) {
	if actor.Role == model.RoleReporter {
		id := actor.ID
		f.ReporterID = &id
	}
	f.Normalize()

	reports, total, err := e.repo.List(ctx, f)
	if err != nil {
		return nil, 0, mapStoreErr(err)
	}
	return reports, total, nil
}

// ListByReporter returns every report authored by the given reporter, newest
// first. Staff may inspect any reporter's submissions; a reporter may only
// list their own.
func (e *Engine) ListByReporter(ctx context.Context, actor model.Actor, reporterID uuid.UUID, page int) ([]*model.Report, int, error) {
	if actor.Role == model.RoleReporter && actor.ID != reporterID {
		return nil, 0, model.NewError(model.ReasonForbidden, "reporters may only list their own reports")
	}

	reports, total, err := e.repo.List(ctx, model.ListFilter{
		ReporterID: &reporterID,
		Page:       page,
	})
	if err != nil {
		return nil, 0, mapStoreErr(err)
	}
	return reports, total, nil
}

// DepartmentHistory returns a department's reports — optionally narrowed to
// one status — together with its per-status counts for the history view.
// Reporters have no department and are denied.
func (e *Engine) DepartmentHistory(ctx context.Context, actor model.Actor, dept model.Department, status model.ReportStatus, page int) ([]*model.Report, int, model.StatusCounts, error) {
	if !actor.Role.Staff() {
		return nil, 0, nil, model.NewError(model.ReasonForbidden, "history is limited to staff roles")
	}
	if !dept.Valid() {
		return nil, 0, nil, model.NewError(model.ReasonValidation, "unknown department")
	}

	f := model.ListFilter{Department: dept, Page: page}
	if status != "" {
		if !status.Valid() {
			return nil, 0, nil, model.NewError(model.ReasonValidation, "unknown status")
		}
		f.Statuses = []model.ReportStatus{status}
	}

	reports, total, err := e.repo.List(ctx, f)
	if err != nil {
		return nil, 0, nil, mapStoreErr(err)
	}

	counts, err := e.repo.CountByDepartment(ctx, dept)
	if err != nil {
		return nil, 0, nil, mapStoreErr(err)
	}
	return reports, total, counts, nil
}
