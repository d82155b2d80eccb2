// Package gate is the single authorization predicate evaluated before every
// workflow mutation. It is a pure function of the actor and facts already
// loaded from the store; it performs no I/O of its own.
package gate

import (
	"github.com/uh2c-dev/memoire-api/internal/models"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

// Entity names the record kinds the gate knows about.
type Entity string

const (
	EntityTheme         Entity = "theme"
	EntityDocument      Entity = "document"
	EntityMeetingReport Entity = "meeting_report"
	EntityPlagiarism    Entity = "plagiarism_check"
	EntityJuryDecision  Entity = "jury_decision"
	EntityAssignment    Entity = "supervisor_assignment"
)

// Transition names the gated operations.
type Transition string

const (
	TransitionSubmit               Transition = "submit"
	TransitionResubmit             Transition = "resubmit"
	TransitionReview               Transition = "review"
	TransitionValidateBySupervisor Transition = "validate_supervisor"
	TransitionValidateByHead       Transition = "validate_head"
	TransitionRequestCheck         Transition = "request_check"
	TransitionRecordResult         Transition = "record_result"
	TransitionFinalizeCheck        Transition = "finalize_check"
	TransitionRecordDecision       Transition = "record_decision"
	TransitionValidateCorrections  Transition = "validate_corrections"
	TransitionAssign               Transition = "assign"
)

// Actor is the authenticated caller.
type Actor struct {
	ID         string
	Role       models.UserRole
	Department string
}

// Request carries the entity facts the rules depend on. Callers resolve the
// active supervisor through the assignment resolver before building it.
type Request struct {
	Entity     Entity
	Transition Transition

	// OwnerID is the student who owns the record.
	OwnerID string
	// ActiveSupervisorID is the currently active supervisor of that student,
	// empty when none is assigned.
	ActiveSupervisorID string
	// StudentDepartment is the department of the owning student.
	StudentDepartment string
	// SupervisorValidated mirrors the meeting report flag.
	SupervisorValidated bool
	// ThemeFinalStage is true when the theme is locked or its final document
	// has been approved, the only stages the jury may write to.
	ThemeFinalStage bool
}

// Authorize returns nil when the actor may perform the transition, otherwise
// a typed denial. Rules are evaluated in priority order; anything unmatched
// is denied.
func Authorize(actor Actor, req Request) error {
	if actor.ID == "" || !actor.Role.Valid() {
		return appErrors.ErrUnauthorized
	}

	// (a) admins may perform any transition.
	if actor.Role.IsAdmin() {
		return nil
	}

	switch actor.Role {
	case models.RoleStudent:
		return authorizeStudent(actor, req)
	case models.RoleSupervisor:
		return authorizeSupervisor(actor, req)
	case models.RoleDepartmentHead:
		return authorizeHead(actor, req)
	case models.RoleJury:
		return authorizeJury(actor, req)
	}

	return appErrors.ErrForbidden
}

// (b) a student may only submit or resubmit their own records, never
// approve or validate anything.
func authorizeStudent(actor Actor, req Request) error {
	if req.Transition != TransitionSubmit && req.Transition != TransitionResubmit {
		return appErrors.Clone(appErrors.ErrForbidden, "students may only submit or resubmit")
	}
	switch req.Entity {
	case EntityTheme, EntityDocument, EntityMeetingReport:
		if req.OwnerID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "not the owner of this record")
		}
		return nil
	}
	return appErrors.ErrForbidden
}

// (c) a supervisor may review only records of students they actively supervise.
func authorizeSupervisor(actor Actor, req Request) error {
	switch req.Transition {
	case TransitionReview, TransitionValidateBySupervisor, TransitionSubmit, TransitionRequestCheck, TransitionFinalizeCheck:
	default:
		return appErrors.ErrForbidden
	}
	switch req.Entity {
	case EntityTheme, EntityDocument, EntityMeetingReport, EntityPlagiarism:
	default:
		return appErrors.ErrForbidden
	}
	if req.ActiveSupervisorID == "" || req.ActiveSupervisorID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "not the active supervisor of this student")
	}
	return nil
}

// (d) a department head validates meeting reports only after the supervisor
// endorsed them and only within their own department.
func authorizeHead(actor Actor, req Request) error {
	if req.Entity != EntityMeetingReport || req.Transition != TransitionValidateByHead {
		return appErrors.ErrForbidden
	}
	if actor.Department == "" || actor.Department != req.StudentDepartment {
		return appErrors.Clone(appErrors.ErrForbidden, "student belongs to another department")
	}
	if !req.SupervisorValidated {
		return appErrors.Clone(appErrors.ErrPreconditionNotMet, "report not yet validated by the supervisor")
	}
	return nil
}

// (e) a jury member only writes decision fields for themes in their final stage.
func authorizeJury(actor Actor, req Request) error {
	if req.Entity != EntityJuryDecision {
		return appErrors.ErrForbidden
	}
	switch req.Transition {
	case TransitionRecordDecision, TransitionValidateCorrections:
	default:
		return appErrors.ErrForbidden
	}
	if !req.ThemeFinalStage {
		return appErrors.Clone(appErrors.ErrPreconditionNotMet, "theme is not in a final stage")
	}
	return nil
}
