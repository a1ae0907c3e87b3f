package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicworks/fixline/internal/reports/model"
)

// ErrNotFound is returned when a report is not found in the database.
var ErrNotFound = errors.New("report not found")

// ErrConflict is returned when a conditional status write finds the report's
// status changed since it was read.
var ErrConflict = errors.New("report status changed concurrently")

// ErrUnavailable is returned when the database cannot be reached within the
// caller's deadline.
var ErrUnavailable = errors.New("report store unavailable")

const reportColumns = `id, title, description, category, location, image_url,
	status, department, reporter_id, reporter_name,
	maintainer_id, maintainer_name, field_head_id, field_head_name,
	closure_image, screening_score, created_at, updated_at`

// ReportRepository provides CRUD and filtered-query operations for reports
// against PostgreSQL.
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report. Sets ID, CreatedAt, UpdatedAt on the report.
func (r *ReportRepository) Create(ctx context.Context, rpt *model.Report) error {
	rpt.ID = uuid.New()
	now := time.Now().UTC()
	rpt.CreatedAt = now
	rpt.UpdatedAt = now

	query := `
		INSERT INTO reports (
			id, title, description, category, location, image_url,
			status, department, reporter_id, reporter_name,
			maintainer_id, maintainer_name, field_head_id, field_head_name,
			closure_image, screening_score, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18
		)`

	_, err := r.db.Exec(ctx, query,
		rpt.ID, rpt.Title, rpt.Description, rpt.Category, rpt.Location, rpt.ImageURL,
		rpt.Status, rpt.Department, rpt.ReporterID, rpt.ReporterName,
		rpt.MaintainerID, rpt.MaintainerName, rpt.FieldHeadID, rpt.FieldHeadName,
		rpt.ClosureImage, rpt.ScreeningScore, rpt.CreatedAt, rpt.UpdatedAt,
	)
	return wrapStoreErr("create report", err)
}

// GetByID retrieves a report by its identifier.
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	rpt, err := r.scanOne(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapStoreErr("get report", err)
	}
	return rpt, nil
}

// List returns the filtered, sorted page of reports plus the total match
// count for page computation. An out-of-range page yields an empty slice,
// not an error.
func (r *ReportRepository) List(ctx context.Context, f model.ListFilter) ([]*model.Report, int, error) {
	f.Normalize()

	where, args := buildWhere(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM reports` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, wrapStoreErr("count reports", err)
	}

	offset := (f.Page - 1) * f.PageSize
	query := fmt.Sprintf(`SELECT %s FROM reports%s ORDER BY %s, id LIMIT $%d OFFSET $%d`,
		reportColumns, where, orderClause(f), len(args)+1, len(args)+2)
	args = append(args, f.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, wrapStoreErr("list reports", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		rpt, err := r.scanOne(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, rpt)
	}
	return reports, total, wrapStoreErr("list reports", rows.Err())
}

// CountByDepartment returns per-status report counts for one department's
// history view.
func (r *ReportRepository) CountByDepartment(ctx context.Context, dept model.Department) (model.StatusCounts, error) {
	query := `SELECT status, COUNT(*) FROM reports WHERE department = $1 GROUP BY status`
	rows, err := r.db.Query(ctx, query, dept)
	if err != nil {
		return nil, wrapStoreErr("count by department", err)
	}
	defer rows.Close()

	counts := make(model.StatusCounts)
	for rows.Next() {
		var status model.ReportStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, wrapStoreErr("count by department", rows.Err())
}

// CountByStatus returns per-status report counts across all departments,
// for the exported gauges.
func (r *ReportRepository) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	query := `SELECT status, COUNT(*) FROM reports GROUP BY status`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, wrapStoreErr("count by status", err)
	}
	defer rows.Close()

	counts := make(model.StatusCounts)
	for rows.Next() {
		var status model.ReportStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, wrapStoreErr("count by status", rows.Err())
}

// ApplyTransition writes the status and its dependent fields in a single
// statement conditioned on the status still being from — the optimistic
// concurrency guard. Losing the race yields ErrConflict; a vanished row
// yields ErrNotFound. Unset effect fields keep their stored values.
func (r *ReportRepository) ApplyTransition(ctx context.Context, id uuid.UUID, from model.ReportStatus, eff *model.Effects) (*model.Report, error) {
	query := `
		UPDATE reports SET
			status          = $3,
			department      = COALESCE($4, department),
			maintainer_id   = COALESCE($5, maintainer_id),
			maintainer_name = COALESCE($6, maintainer_name),
			field_head_id   = COALESCE($7, field_head_id),
			field_head_name = COALESCE($8, field_head_name),
			closure_image   = COALESCE($9, closure_image),
			updated_at      = $10
		WHERE id = $1 AND status = $2
		RETURNING ` + reportColumns

	rpt, err := r.scanOne(r.db.QueryRow(ctx, query,
		id, from, eff.Status,
		eff.Department, eff.MaintainerID, eff.MaintainerName,
		eff.FieldHeadID, eff.FieldHeadName, eff.ClosureImage,
		time.Now().UTC(),
	))
	if err == nil {
		return rpt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapStoreErr("apply transition", err)
	}

	// No row matched: either the report is gone or its status moved under us.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrConflict
}

// Delete permanently removes a report record.
func (r *ReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return wrapStoreErr("delete report", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// buildWhere assembles the WHERE clause for List from the non-zero filter
// members. Statuses are OR-ed; search matches title, description, and
// location case-insensitively.
func buildWhere(f model.ListFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(f.Statuses) > 0 {
		vals := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			vals[i] = string(s)
		}
		add(`status = ANY($%d)`, vals)
	}
	if f.Category != "" {
		add(`category = $%d`, f.Category)
	}
	if f.Department != "" {
		add(`department = $%d`, f.Department)
	}
	if f.ReporterID != nil {
		add(`reporter_id = $%d`, *f.ReporterID)
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		args = append(args, pattern)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)`, n, n, n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderClause maps the sort key to a whitelisted column expression. Ties are
// broken by id in List to keep pagination stable.
func orderClause(f model.ListFilter) string {
	col := "created_at"
	switch f.Sort {
	case model.SortByTitle:
		col = "title"
	case model.SortByStatus:
		col = "status"
	}
	dir := "ASC"
	if f.Order == model.OrderDesc {
		dir = "DESC"
	}
	return col + " " + dir
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// scanOne reads a single report from a row or rows cursor.
func (r *ReportRepository) scanOne(row pgx.Row) (*model.Report, error) {
	var rpt model.Report
	err := row.Scan(
		&rpt.ID, &rpt.Title, &rpt.Description, &rpt.Category, &rpt.Location, &rpt.ImageURL,
		&rpt.Status, &rpt.Department, &rpt.ReporterID, &rpt.ReporterName,
		&rpt.MaintainerID, &rpt.MaintainerName, &rpt.FieldHeadID, &rpt.FieldHeadName,
		&rpt.ClosureImage, &rpt.ScreeningScore, &rpt.CreatedAt, &rpt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rpt, nil
}

// wrapStoreErr normalizes outage-class failures so callers can surface them
// as StoreUnavailable instead of retrying blindly.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
