package model

import (
	"time"

	"github.com/google/uuid"
)

// ReportStatus represents the lifecycle state of a report.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusVerified   ReportStatus = "verified"
	StatusFake       ReportStatus = "fake"
	StatusAssigned   ReportStatus = "assigned"
	StatusInProgress ReportStatus = "in_progress"
	StatusResolved   ReportStatus = "resolved"
	StatusClosed     ReportStatus = "closed"
)

// Statuses lists every valid report status. No other value is ever persisted.
var Statuses = []ReportStatus{
	StatusPending, StatusVerified, StatusFake, StatusAssigned,
	StatusInProgress, StatusResolved, StatusClosed,
}

// Valid reports whether s is one of the seven defined statuses.
func (s ReportStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s ReportStatus) Terminal() bool {
	return s == StatusFake || s == StatusClosed
}

// Category classifies what kind of infrastructure a report is about.
type Category string

const (
	CategoryRoad     Category = "road"
	CategoryElectric Category = "electric"
	CategoryWater    Category = "water"
	CategoryBuilding Category = "building"
	CategoryOther    Category = "other"
)

// Categories lists every valid report category.
var Categories = []Category{
	CategoryRoad, CategoryElectric, CategoryWater, CategoryBuilding, CategoryOther,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Department is the routing pool that owns a verified report. Departments
// mirror the category set one-to-one: a road report is routed to the road
// department.
type Department string

const (
	DeptRoad     Department = "road"
	DeptElectric Department = "electric"
	DeptWater    Department = "water"
	DeptBuilding Department = "building"
	DeptOther    Department = "other"
)

// Departments lists every valid department.
var Departments = []Department{
	DeptRoad, DeptElectric, DeptWater, DeptBuilding, DeptOther,
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	for _, v := range Departments {
		if d == v {
			return true
		}
	}
	return false
}

// DepartmentForCategory returns the department that owns reports of the
// given category.
func DepartmentForCategory(c Category) Department {
	return Department(c)
}

// CategoryForDepartment returns the category whose reports route to the
// given department.
func CategoryForDepartment(d Department) Category {
	return Category(d)
}

// Role identifies what an authenticated actor is allowed to do.
type Role string

const (
	RoleReporter   Role = "reporter"
	RoleMaintainer Role = "maintainer"
	RoleFieldHead  Role = "field_head"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleReporter || r == RoleMaintainer || r == RoleFieldHead
}

// Staff reports whether the role participates in verification and resolution.
func (r Role) Staff() bool {
	return r == RoleMaintainer || r == RoleFieldHead
}

// Actor is the authenticated identity driving a request. It is supplied
// explicitly on every engine call — never read from ambient state.
// Department is set only for field_head and maintainer roles.
type Actor struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	Department Department `json:"department,omitempty"`
}

// Report is the central entity: a single submitted issue moving through the
// verification-and-resolution pipeline.
type Report struct {
	ID           uuid.UUID    `json:"id"                       db:"id"`
	Title        string       `json:"title"                    db:"title"`
	Description  string       `json:"description"              db:"description"`
	Category     Category     `json:"category"                 db:"category"`
	Location     string       `json:"location"                 db:"location"`
	ImageURL     string       `json:"image_url,omitempty"      db:"image_url"`
	Status       ReportStatus `json:"status"                   db:"status"`
	// Department is empty until verification and stays empty for fake reports.
	Department     Department `json:"department,omitempty"       db:"department"`
	ReporterID     uuid.UUID  `json:"reporter_id"                db:"reporter_id"`
	ReporterName   string     `json:"reporter_name"              db:"reporter_name"`
	MaintainerID   *uuid.UUID `json:"maintainer_id,omitempty"    db:"maintainer_id"`
	MaintainerName string     `json:"maintainer_name,omitempty"  db:"maintainer_name"`
	FieldHeadID    *uuid.UUID `json:"field_head_id,omitempty"    db:"field_head_id"`
	FieldHeadName  string     `json:"field_head_name,omitempty"  db:"field_head_name"`
	ClosureImage   string     `json:"closure_image,omitempty"    db:"closure_image"`
	// ScreeningScore is a 0–100 spam/fake heuristic computed at creation,
	// shown to verifiers as a hint. It never gates any transition.
	ScreeningScore int       `json:"screening_score"            db:"screening_score"`
	CreatedAt      time.Time `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"                 db:"updated_at"`
}

// CreateReportRequest is the payload for submitting a new report.
type CreateReportRequest struct {
	Title       string   `json:"title"       binding:"required"`
	Description string   `json:"description" binding:"required"`
	Category    Category `json:"category"    binding:"required"`
	Location    string   `json:"location"    binding:"required"`
	ImageURL    string   `json:"image_url"`
}

// TransitionPayload carries the side-effect data a transition may require.
// The policy reads it; the engine writes whatever the policy approved.
type TransitionPayload struct {
	// Department names the owning department on verify when the acting
	// maintainer has no department of their own.
	Department Department
	// FieldHeadID/Name/Department describe the assignment target on assign.
	// The router resolves the assignee's department before calling the
	// engine so the policy stays free of I/O.
	FieldHeadID         *uuid.UUID
	FieldHeadName       string
	FieldHeadDepartment Department
	// ClosureImage is the stored-resource locator required on resolve.
	ClosureImage string
}

// Effects is the field set a permitted transition writes alongside the new
// status. Nil/empty members are left untouched by the store update.
type Effects struct {
	Status         ReportStatus
	Department     *Department
	MaintainerID   *uuid.UUID
	MaintainerName *string
	FieldHeadID    *uuid.UUID
	FieldHeadName  *string
	ClosureImage   *string
}

// ListFilter is the predicate set for listing reports. Zero values mean
// "no constraint". Statuses are OR-ed.
type ListFilter struct {
	Statuses   []ReportStatus
	Category   Category
	Department Department
	ReporterID *uuid.UUID
	Search     string
	Sort       SortKey
	Order      SortOrder
	Page       int
	PageSize   int
}

// SortKey selects the list ordering column.
type SortKey string

const (
	SortByCreatedAt SortKey = "created_at"
	SortByTitle     SortKey = "title"
	SortByStatus    SortKey = "status"
)

// SortOrder selects ascending or descending ordering.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// DefaultPageSize is the fixed page size for report listings.
const DefaultPageSize = 20

// Normalize fills filter defaults: created_at descending, first page,
// fixed page size.
func (f *ListFilter) Normalize() {
	if f.Sort == "" {
		f.Sort = SortByCreatedAt
	}
	if f.Order == "" {
		if f.Sort == SortByCreatedAt {
			f.Order = OrderDesc
		} else {
			f.Order = OrderAsc
		}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
}

// StatusCounts is the per-status aggregation used by department history views.
type StatusCounts map[ReportStatus]int

// BulkFailure records one report that a bulk operation could not transition.
type BulkFailure struct {
	ReportID uuid.UUID `json:"report_id"`
	Reason   string    `json:"reason"`
}

// BulkResult is the outcome of a department-wide bulk operation. Count
// reflects only reports whose status actually changed; per-item failures
// are collected, never raised.
type BulkResult struct {
	Count    int           `json:"count"`
	Failures []BulkFailure `json:"failures"`
}
