package gate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uh2c-dev/memoire-api/internal/models"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

func requireDenied(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, code, appErr.Code)
}

func TestAuthorizeAdminBypass(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin} {
		err := Authorize(Actor{ID: "admin-1", Role: role}, Request{
			Entity:     EntityJuryDecision,
			Transition: TransitionRecordDecision,
		})
		require.NoError(t, err)
	}
}

func TestAuthorizeUnknownActor(t *testing.T) {
	err := Authorize(Actor{}, Request{Entity: EntityTheme, Transition: TransitionSubmit})
	requireDenied(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthorizeStudentOwnSubmissions(t *testing.T) {
	student := Actor{ID: "student-1", Role: models.RoleStudent}

	require.NoError(t, Authorize(student, Request{
		Entity: EntityTheme, Transition: TransitionSubmit, OwnerID: "student-1",
	}))
	require.NoError(t, Authorize(student, Request{
		Entity: EntityDocument, Transition: TransitionResubmit, OwnerID: "student-1",
	}))

	err := Authorize(student, Request{Entity: EntityTheme, Transition: TransitionSubmit, OwnerID: "student-2"})
	requireDenied(t, err, appErrors.ErrForbidden.Code)

	err = Authorize(student, Request{Entity: EntityTheme, Transition: TransitionReview, OwnerID: "student-1"})
	requireDenied(t, err, appErrors.ErrForbidden.Code)

	err = Authorize(student, Request{Entity: EntityJuryDecision, Transition: TransitionSubmit, OwnerID: "student-1"})
	requireDenied(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthorizeSupervisorRequiresActiveBinding(t *testing.T) {
	supervisor := Actor{ID: "sup-1", Role: models.RoleSupervisor}

	require.NoError(t, Authorize(supervisor, Request{
		Entity: EntityTheme, Transition: TransitionReview,
		OwnerID: "student-1", ActiveSupervisorID: "sup-1",
	}))

	err := Authorize(supervisor, Request{
		Entity: EntityTheme, Transition: TransitionReview,
		OwnerID: "student-1", ActiveSupervisorID: "sup-2",
	})
	requireDenied(t, err, appErrors.ErrForbidden.Code)

	err = Authorize(supervisor, Request{
		Entity: EntityTheme, Transition: TransitionReview, OwnerID: "student-1",
	})
	requireDenied(t, err, appErrors.ErrForbidden.Code)

	err = Authorize(supervisor, Request{
		Entity: EntityJuryDecision, Transition: TransitionRecordDecision,
		ActiveSupervisorID: "sup-1",
	})
	requireDenied(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthorizeSupervisorPlagiarismLifecycle(t *testing.T) {
	supervisor := Actor{ID: "sup-1", Role: models.RoleSupervisor}

	require.NoError(t, Authorize(supervisor, Request{
		Entity: EntityPlagiarism, Transition: TransitionRequestCheck,
		OwnerID: "student-1", ActiveSupervisorID: "sup-1",
	}))
	require.NoError(t, Authorize(supervisor, Request{
		Entity: EntityPlagiarism, Transition: TransitionFinalizeCheck,
		OwnerID: "student-1", ActiveSupervisorID: "sup-1",
	}))

	err := Authorize(supervisor, Request{
		Entity: EntityPlagiarism, Transition: TransitionFinalizeCheck,
		OwnerID: "student-1", ActiveSupervisorID: "sup-2",
	})
	requireDenied(t, err, appErrors.ErrForbidden.Code)

	err = Authorize(supervisor, Request{
		Entity: EntityPlagiarism, Transition: TransitionRecordResult,
		OwnerID: "student-1", ActiveSupervisorID: "sup-1",
	})
	requireDenied(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthorizeHeadDepartmentAndPrecedence(t *testing.T) {
	head := Actor{ID: "head-1", Role: models.RoleDepartmentHead, Department: "informatique"}

	require.NoError(t, Authorize(head, Request{
		Entity: EntityMeetingReport, Transition: TransitionValidateByHead,
		StudentDepartment: "informatique", SupervisorValidated: true,
	}))

	err := Authorize(head, Request{
		Entity: EntityMeetingReport, Transition: TransitionValidateByHead,
		StudentDepartment: "mathematiques", SupervisorValidated: true,
	})
	requireDenied(t, err, appErrors.ErrForbidden.Code)

	err = Authorize(head, Request{
		Entity: EntityMeetingReport, Transition: TransitionValidateByHead,
		StudentDepartment: "informatique", SupervisorValidated: false,
	})
	requireDenied(t, err, appErrors.ErrPreconditionNotMet.Code)

	err = Authorize(head, Request{Entity: EntityTheme, Transition: TransitionReview})
	requireDenied(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthorizeJuryFinalStageOnly(t *testing.T) {
	jury := Actor{ID: "jury-1", Role: models.RoleJury}

	require.NoError(t, Authorize(jury, Request{
		Entity: EntityJuryDecision, Transition: TransitionRecordDecision, ThemeFinalStage: true,
	}))
	require.NoError(t, Authorize(jury, Request{
		Entity: EntityJuryDecision, Transition: TransitionValidateCorrections, ThemeFinalStage: true,
	}))

	err := Authorize(jury, Request{
		Entity: EntityJuryDecision, Transition: TransitionRecordDecision, ThemeFinalStage: false,
	})
	requireDenied(t, err, appErrors.ErrPreconditionNotMet.Code)

	err = Authorize(jury, Request{Entity: EntityTheme, Transition: TransitionReview})
	requireDenied(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthorizeDefaultDeny(t *testing.T) {
	err := Authorize(Actor{ID: "sup-1", Role: models.RoleSupervisor}, Request{
		Entity: EntityAssignment, Transition: TransitionAssign, ActiveSupervisorID: "sup-1",
	})
	requireDenied(t, err, appErrors.ErrForbidden.Code)
}
