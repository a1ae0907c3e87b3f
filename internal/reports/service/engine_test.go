package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicworks/fixline/internal/audit"
	"github.com/civicworks/fixline/internal/reports/model"
	"github.com/civicworks/fixline/internal/reports/repository"
	"github.com/civicworks/fixline/internal/reports/service"
)

// ── Stub repo ─────────────────────────────────────────────────────────────

type stubReportRepo struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*model.Report
	seq     int

	failWith error  // when set, every call fails with this error
	afterGet func() // invoked after GetByID returns, to simulate races
}

func newStubReportRepo() *stubReportRepo {
	return &stubReportRepo{reports: make(map[uuid.UUID]*model.Report)}
}

func (r *stubReportRepo) Create(_ context.Context, rpt *model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	rpt.ID = uuid.New()
	r.seq++
	now := time.Now().UTC().Add(time.Duration(r.seq) * time.Millisecond)
	rpt.CreatedAt = now
	rpt.UpdatedAt = now
	cp := *rpt
	r.reports[rpt.ID] = &cp
	return nil
}

func (r *stubReportRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Report, error) {
	r.mu.RLock()
	if r.failWith != nil {
		r.mu.RUnlock()
		return nil, r.failWith
	}
	rpt, ok := r.reports[id]
	var cp model.Report
	if ok {
		cp = *rpt
	}
	hook := r.afterGet
	r.mu.RUnlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (r *stubReportRepo) List(_ context.Context, f model.ListFilter) ([]*model.Report, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failWith != nil {
		return nil, 0, r.failWith
	}
	f.Normalize()

	var matched []*model.Report
	for _, rpt := range r.reports {
		if !matchesFilter(rpt, f) {
			continue
		}
		cp := *rpt
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch f.Sort {
		case model.SortByTitle:
			less = matched[i].Title < matched[j].Title
		case model.SortByStatus:
			less = matched[i].Status < matched[j].Status
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if f.Order == model.OrderDesc {
			return !less
		}
		return less
	})

	total := len(matched)
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matchesFilter(rpt *model.Report, f model.ListFilter) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if rpt.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Category != "" && rpt.Category != f.Category {
		return false
	}
	if f.Department != "" && rpt.Department != f.Department {
		return false
	}
	if f.ReporterID != nil && rpt.ReporterID != *f.ReporterID {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(rpt.Title), needle) &&
			!strings.Contains(strings.ToLower(rpt.Description), needle) &&
			!strings.Contains(strings.ToLower(rpt.Location), needle) {
			return false
		}
	}
	return true
}

func (r *stubReportRepo) CountByDepartment(_ context.Context, dept model.Department) (model.StatusCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	counts := model.StatusCounts{}
	for _, rpt := range r.reports {
		if rpt.Department == dept {
			counts[rpt.Status]++
		}
	}
	return counts, nil
}

func (r *stubReportRepo) ApplyTransition(_ context.Context, id uuid.UUID, from model.ReportStatus, eff *model.Effects) (*model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	rpt, ok := r.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if rpt.Status != from {
		return nil, repository.ErrConflict
	}

	rpt.Status = eff.Status
	if eff.Department != nil {
		rpt.Department = *eff.Department
	}
	if eff.MaintainerID != nil {
		rpt.MaintainerID = eff.MaintainerID
	}
	if eff.MaintainerName != nil {
		rpt.MaintainerName = *eff.MaintainerName
	}
	if eff.FieldHeadID != nil {
		rpt.FieldHeadID = eff.FieldHeadID
	}
	if eff.FieldHeadName != nil {
		rpt.FieldHeadName = *eff.FieldHeadName
	}
	if eff.ClosureImage != nil {
		rpt.ClosureImage = *eff.ClosureImage
	}
	rpt.UpdatedAt = time.Now().UTC()
	cp := *rpt
	return &cp, nil
}

func (r *stubReportRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.reports[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.reports, id)
	return nil
}

// force sets a report's status directly, bypassing the engine.
func (r *stubReportRepo) force(id uuid.UUID, status model.ReportStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rpt, ok := r.reports[id]; ok {
		rpt.Status = status
	}
}

// ── Fixtures ──────────────────────────────────────────────────────────────

type constScreener struct{ score int }

func (s constScreener) Score(_, _, _ string) int { return s.score }

func newTestEngine(t *testing.T) (*service.Engine, *stubReportRepo, *audit.MemoryLedger) {
	t.Helper()
	repo := newStubReportRepo()
	ledger := audit.New()
	engine := service.NewEngine(repo, ledger, constScreener{score: 7}, zap.NewNop())
	return engine, repo, ledger
}

func reporter() model.Actor {
	return model.Actor{ID: uuid.New(), Name: "Ann Reporter", Role: model.RoleReporter}
}

func maintainer() model.Actor {
	return model.Actor{ID: uuid.New(), Name: "Mia Maintainer", Role: model.RoleMaintainer}
}

func fieldHead(dept model.Department) model.Actor {
	return model.Actor{ID: uuid.New(), Name: "Frank Fieldhead", Role: model.RoleFieldHead, Department: dept}
}

func submitReport(t *testing.T, engine *service.Engine, actor model.Actor, category model.Category) *model.Report {
	t.Helper()
	rpt, err := engine.Create(context.Background(), actor, &model.CreateReportRequest{
		Title:       "Streetlight out",
		Description: "The streetlight at the corner has been dark for a week.",
		Category:    category,
		Location:    "5th and Main",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rpt
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestCreateReport(t *testing.T) {
	ctx := context.Background()
	engine, _, ledger := newTestEngine(t)
	rep := reporter()

	rpt := submitReport(t, engine, rep, model.CategoryElectric)
	if rpt.Status != model.StatusPending {
		t.Errorf("new report status = %q, want pending", rpt.Status)
	}
	if rpt.ReporterID != rep.ID || rpt.ReporterName != rep.Name {
		t.Errorf("reporter identity not recorded: %+v", rpt)
	}
	if rpt.Department != "" {
		t.Errorf("department = %q, want empty before verification", rpt.Department)
	}
	if rpt.ScreeningScore != 7 {
		t.Errorf("screening score = %d, want 7", rpt.ScreeningScore)
	}

	n, err := ledger.Len(ctx)
	if err != nil {
		t.Fatalf("ledger Len: %v", err)
	}
	if n != 2 { // genesis + create
		t.Errorf("ledger length = %d, want 2", n)
	}
}

func TestCreateReportValidation(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	cases := []struct {
		name string
		req  model.CreateReportRequest
	}{
		{"missing title", model.CreateReportRequest{Description: "d", Category: model.CategoryRoad, Location: "l"}},
		{"missing description", model.CreateReportRequest{Title: "t", Category: model.CategoryRoad, Location: "l"}},
		{"missing location", model.CreateReportRequest{Title: "t", Description: "d", Category: model.CategoryRoad}},
		{"unknown category", model.CreateReportRequest{Title: "t", Description: "d", Category: "parks", Location: "l"}},
		{"whitespace title", model.CreateReportRequest{Title: "   ", Description: "d", Category: model.CategoryRoad, Location: "l"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Create(ctx, reporter(), &tc.req)
			if !model.IsReason(err, model.ReasonValidation) {
				t.Errorf("err = %v, want validation_error", err)
			}
		})
	}
}

func TestApplyTransitionFullLifecycle(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)
	m := maintainer()
	fh := fieldHead(model.DeptElectric)

	rpt := submitReport(t, engine, reporter(), model.CategoryElectric)

	rpt, err := engine.ApplyTransition(ctx, rpt.ID, m, model.StatusVerified, model.TransitionPayload{
		Department: model.DeptElectric,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rpt.Department != model.DeptElectric {
		t.Errorf("department = %q, want electric", rpt.Department)
	}
	if rpt.MaintainerID == nil || *rpt.MaintainerID != m.ID {
		t.Error("verifier identity not recorded")
	}

	rpt, err = engine.ApplyTransition(ctx, rpt.ID, m, model.StatusAssigned, model.TransitionPayload{
		FieldHeadID:         &fh.ID,
		FieldHeadName:       fh.Name,
		FieldHeadDepartment: fh.Department,
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if rpt.FieldHeadID == nil || *rpt.FieldHeadID != fh.ID {
		t.Error("assignee not recorded")
	}

	if rpt, err = engine.ApplyTransition(ctx, rpt.ID, fh, model.StatusInProgress, model.TransitionPayload{}); err != nil {
		t.Fatalf("start work: %v", err)
	}

	rpt, err = engine.ApplyTransition(ctx, rpt.ID, fh, model.StatusResolved, model.TransitionPayload{
		ClosureImage: "/uploads/after.jpg",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rpt.ClosureImage != "/uploads/after.jpg" {
		t.Errorf("closure image = %q, want recorded", rpt.ClosureImage)
	}

	rpt, err = engine.ApplyTransition(ctx, rpt.ID, m, model.StatusClosed, model.TransitionPayload{})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if rpt.Status != model.StatusClosed {
		t.Errorf("final status = %q, want closed", rpt.Status)
	}
}

func TestApplyTransitionDenialLeavesReportUnchanged(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)
	rep := reporter()

	rpt := submitReport(t, engine, rep, model.CategoryRoad)

	_, err := engine.ApplyTransition(ctx, rpt.ID, rep, model.StatusVerified, model.TransitionPayload{})
	if !model.IsReason(err, model.ReasonForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}

	got, err := engine.Get(ctx, rpt.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status after denial = %q, want pending", got.Status)
	}
	if got.Department != "" || got.MaintainerID != nil {
		t.Errorf("denied transition wrote fields: %+v", got)
	}
}

func TestApplyTransitionConflict(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t)
	m := maintainer()

	rpt := submitReport(t, engine, reporter(), model.CategoryWater)

	// Another actor wins the race between the engine's read and its write.
	repo.afterGet = func() {
		repo.afterGet = nil
		repo.force(rpt.ID, model.StatusVerified)
	}

	_, err := engine.ApplyTransition(ctx, rpt.ID, m, model.StatusFake, model.TransitionPayload{})
	if !model.IsReason(err, model.ReasonConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	// After re-reading, the loser sees the new status and gets a clean denial.
	_, err = engine.ApplyTransition(ctx, rpt.ID, m, model.StatusFake, model.TransitionPayload{})
	if !model.IsReason(err, model.ReasonIllegalTransition) {
		t.Fatalf("retry err = %v, want illegal_transition", err)
	}
}

func TestApplyTransitionNotFound(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	_, err := engine.ApplyTransition(ctx, uuid.New(), maintainer(), model.StatusVerified, model.TransitionPayload{
		Department: model.DeptRoad,
	})
	if !model.IsReason(err, model.ReasonNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}

func TestDeleteGating(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t)
	m := maintainer()
	rep := reporter()

	rpt := submitReport(t, engine, rep, model.CategoryOther)

	// Pending reports are not deletable, even by staff.
	if err := engine.Delete(ctx, rpt.ID, m); !model.IsReason(err, model.ReasonNotDeletable) {
		t.Errorf("delete pending err = %v, want not_deletable", err)
	}

	repo.force(rpt.ID, model.StatusFake)

	// Reporters may not delete fake reports.
	if err := engine.Delete(ctx, rpt.ID, rep); !model.IsReason(err, model.ReasonForbidden) {
		t.Errorf("reporter delete err = %v, want forbidden", err)
	}

	if err := engine.Delete(ctx, rpt.ID, m); err != nil {
		t.Fatalf("staff delete of fake report: %v", err)
	}
	if _, err := engine.Get(ctx, rpt.ID); !model.IsReason(err, model.ReasonNotFound) {
		t.Errorf("get after delete err = %v, want not_found", err)
	}
}

func TestStoreErrorMapping(t *testing.T) {
	ctx := context.Background()
	engine, repo, _ := newTestEngine(t)

	repo.failWith = repository.ErrUnavailable
	_, err := engine.Get(ctx, uuid.New())
	if !model.IsReason(err, model.ReasonStoreUnavailable) {
		t.Errorf("err = %v, want store_unavailable", err)
	}
}

func TestAuditTrailRecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	engine, _, ledger := newTestEngine(t)
	m := maintainer()

	rpt := submitReport(t, engine, reporter(), model.CategoryBuilding)
	if _, err := engine.ApplyTransition(ctx, rpt.ID, m, model.StatusVerified, model.TransitionPayload{
		Department: model.DeptBuilding,
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}

	n, err := ledger.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 3 { // genesis + create + transition
		t.Fatalf("ledger length = %d, want 3", n)
	}
	if err := ledger.Verify(ctx); err != nil {
		t.Errorf("Verify: %v", err)
	}

	entry, err := ledger.Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get(2): %v", err)
	}
	if entry.Action != "transition" || entry.ReportID != rpt.ID.String() {
		t.Errorf("entry = %+v, want transition for %s", entry, rpt.ID)
	}
}
