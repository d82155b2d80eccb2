package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

func TestAssignmentRepositoryAssignSwapsInOneTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE supervisor_assignments SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO supervisor_assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assignment := &models.SupervisorAssignment{
		StudentID:    "student-1",
		SupervisorID: "supervisor-2",
		AssignedBy:   "admin-1",
	}
	require.NoError(t, repo.Assign(context.Background(), assignment))
	require.NotEmpty(t, assignment.ID)
	require.True(t, assignment.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryAssignRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE supervisor_assignments SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO supervisor_assignments")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Assign(context.Background(), &models.SupervisorAssignment{
		StudentID:    "student-1",
		SupervisorID: "supervisor-2",
		AssignedBy:   "admin-1",
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryActiveByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "supervisor_id", "is_active", "assigned_by", "assigned_at",
		"notes", "created_at", "updated_at",
	}).AddRow("assign-1", "student-1", "supervisor-1", true, "admin-1",
		time.Now(), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("is_active = TRUE")).
		WithArgs("student-1").
		WillReturnRows(rows)

	assignment, err := repo.ActiveByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Equal(t, "supervisor-1", assignment.SupervisorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDeactivateNoActiveRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE supervisor_assignments SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "student-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
