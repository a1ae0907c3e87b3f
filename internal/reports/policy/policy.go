// Package policy implements the pure transition decision for the report
// lifecycle. Decide performs no I/O and may be called repeatedly; everything
// it needs — including the assignment target's department — arrives in its
// arguments.
package policy

import (
	"fmt"

	"github.com/civicworks/fixline/internal/reports/model"
)

// rolesForTarget gates each requested status by actor role, independent of
// the report's current status. A reporter requesting any of these is
// Forbidden no matter what state the report is in.
var rolesForTarget = map[model.ReportStatus][]model.Role{
	model.StatusVerified:   {model.RoleFieldHead, model.RoleMaintainer},
	model.StatusFake:       {model.RoleFieldHead, model.RoleMaintainer},
	model.StatusAssigned:   {model.RoleMaintainer},
	model.StatusInProgress: {model.RoleMaintainer},
	model.StatusResolved:   {model.RoleMaintainer},
	model.StatusClosed:     {model.RoleMaintainer},
}

type edge struct {
	from, to model.ReportStatus
}

// edges is the closed transition table. Any (current, requested) pair absent
// from it is rejected — deny by default. Terminal states (fake, closed) have
// no outgoing edges.
var edges = map[edge]struct{}{
	{model.StatusPending, model.StatusVerified}:     {},
	{model.StatusPending, model.StatusFake}:         {},
	{model.StatusVerified, model.StatusAssigned}:    {},
	{model.StatusAssigned, model.StatusInProgress}:  {},
	{model.StatusInProgress, model.StatusResolved}:  {},
	{model.StatusResolved, model.StatusClosed}:      {},
}

// Decide evaluates whether actor may move report to requested, returning the
// field set the engine must write on success. Denials carry a stable reason
// code; callers must not treat a NoOp as success.
func Decide(report *model.Report, actor model.Actor, requested model.ReportStatus, payload model.TransitionPayload) (*model.Effects, error) {
	if !requested.Valid() {
		return nil, model.NewError(model.ReasonValidation, fmt.Sprintf("unknown status %q", requested))
	}

	// Role gate first, so a reporter invoking verify/assign/start/resolve/close
	// is Forbidden regardless of report state.
	if roles, gated := rolesForTarget[requested]; gated && !roleAllowed(actor.Role, roles) {
		return nil, model.NewError(model.ReasonForbidden,
			fmt.Sprintf("role %s may not set status %s", actor.Role, requested))
	}

	if requested == report.Status {
		return nil, model.NewError(model.ReasonNoOp,
			fmt.Sprintf("report already has status %s", requested))
	}

	if _, ok := edges[edge{report.Status, requested}]; !ok {
		return nil, model.NewError(model.ReasonIllegalTransition,
			fmt.Sprintf("no transition from %s to %s", report.Status, requested))
	}

	eff := &model.Effects{Status: requested}

	switch requested {
	case model.StatusVerified:
		dept, err := verificationDepartment(report, actor, payload)
		if err != nil {
			return nil, err
		}
		eff.Department = &dept
		setVerifier(eff, actor)

	case model.StatusFake:
		// Rejection records the verifier but leaves department unset:
		// a fake report was never routed anywhere.
		if err := checkDepartmentAuthority(report, actor); err != nil {
			return nil, err
		}
		setVerifier(eff, actor)

	case model.StatusAssigned:
		if payload.FieldHeadID == nil {
			return nil, model.NewError(model.ReasonValidation, "field head id is required")
		}
		if payload.FieldHeadDepartment != report.Department {
			return nil, model.NewError(model.ReasonInvalidAssignee,
				fmt.Sprintf("field head belongs to %s, report belongs to %s",
					payload.FieldHeadDepartment, report.Department))
		}
		eff.FieldHeadID = payload.FieldHeadID
		name := payload.FieldHeadName
		eff.FieldHeadName = &name

	case model.StatusResolved:
		if payload.ClosureImage == "" {
			return nil, model.NewError(model.ReasonMissingEvidence,
				"a closure image is required to resolve a report")
		}
		img := payload.ClosureImage
		eff.ClosureImage = &img

	case model.StatusInProgress, model.StatusClosed:
		// No side-effect data beyond the status itself.
	}

	return eff, nil
}

// verificationDepartment resolves which department a verify binds to the
// report. A field head is confined to their own department; a maintainer (or
// a field head without one) must supply it in the payload.
func verificationDepartment(report *model.Report, actor model.Actor, payload model.TransitionPayload) (model.Department, error) {
	if actor.Role == model.RoleFieldHead && actor.Department != "" {
		if err := checkDepartmentAuthority(report, actor); err != nil {
			return "", err
		}
		return actor.Department, nil
	}
	if payload.Department == "" {
		return "", model.NewError(model.ReasonValidation, "a department is required to verify this report")
	}
	if !payload.Department.Valid() {
		return "", model.NewError(model.ReasonValidation,
			fmt.Sprintf("unknown department %q", payload.Department))
	}
	return payload.Department, nil
}

// checkDepartmentAuthority confines a department-scoped field head to reports
// whose category routes to their department.
func checkDepartmentAuthority(report *model.Report, actor model.Actor) error {
	if actor.Role != model.RoleFieldHead || actor.Department == "" {
		return nil
	}
	if model.DepartmentForCategory(report.Category) != actor.Department {
		return model.NewError(model.ReasonForbidden,
			fmt.Sprintf("report category %s is outside department %s", report.Category, actor.Department))
	}
	return nil
}

// CanDelete gates the administrative cleanup of fake reports. It is not a
// lifecycle transition: only terminal fake reports may be removed, and only
// by staff.
func CanDelete(report *model.Report, actor model.Actor) error {
	if !actor.Role.Staff() {
		return model.NewError(model.ReasonForbidden,
			fmt.Sprintf("role %s may not delete reports", actor.Role))
	}
	if report.Status != model.StatusFake {
		return model.NewError(model.ReasonNotDeletable,
			fmt.Sprintf("only fake reports can be deleted, status is %s", report.Status))
	}
	return nil
}

func setVerifier(eff *model.Effects, actor model.Actor) {
	id := actor.ID
	name := actor.Name
	eff.MaintainerID = &id
	eff.MaintainerName = &name
}

func roleAllowed(r model.Role, allowed []model.Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
