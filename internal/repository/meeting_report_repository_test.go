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

func TestMeetingReportRepositoryMarkSupervisorValidated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMeetingReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET supervisor_validated = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSupervisorValidated(context.Background(), "report-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingReportRepositoryMarkHeadValidatedRequiresSupervisorFlag(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	// The conditional write keys on supervisor_validated = TRUE, so a report
	// missing the first endorsement touches zero rows.
	repo := NewMeetingReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET department_head_validated = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkHeadValidated(context.Background(), "report-1", "head-1", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingReportRepositorySubmitResetsFlags(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMeetingReportRepository(db)
	submittedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, supervisor_validated = FALSE")).
		WithArgs("report-1", string(models.MeetingReportStatusSubmitted), submittedAt,
			string(models.MeetingReportStatusDraft), string(models.MeetingReportStatusRejected)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Submit(context.Background(), "report-1", submittedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingReportRepositoryAppendNoteOnlyWhenValidated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMeetingReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET appended_notes = CONCAT")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AppendNote(context.Background(), "report-1", "Revoir le chapitre 2")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
