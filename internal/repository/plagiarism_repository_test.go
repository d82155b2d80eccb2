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

func TestPlagiarismRepositoryFinalizeComputesVerdictInStatement(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPlagiarismRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET status = CASE WHEN score < threshold_used THEN")).
		WithArgs("chk-1",
			string(models.PlagiarismStatusPassed), string(models.PlagiarismStatusFailed),
			sqlmock.AnyArg(), string(models.PlagiarismStatusInProgress)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Finalize(context.Background(), "chk-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlagiarismRepositoryFinalizeConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPlagiarismRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE plagiarism_checks")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finalize(context.Background(), "chk-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlagiarismRepositoryRecordResultSkipsTerminalRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPlagiarismRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE plagiarism_checks")).
		WithArgs("chk-1", string(models.PlagiarismStatusInProgress), 42.0, 7, nil, sqlmock.AnyArg(),
			string(models.PlagiarismStatusPending), string(models.PlagiarismStatusInProgress)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordResult(context.Background(), "chk-1", 42, 7, nil, time.Now().UTC())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
