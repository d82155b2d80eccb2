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

func TestDocumentRepositoryCreateVersionAllocatesNext(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM themes WHERE id = $1 FOR UPDATE")).
		WithArgs("theme-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("theme-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM documents")).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	doc := &models.Document{
		ThemeID:       "theme-1",
		StudentID:     "student-1",
		DocumentType:  models.DocumentTypeFinal,
		FileReference: "s3://bucket/memoire-v3.pdf",
		SizeBytes:     1 << 20,
	}
	require.NoError(t, repo.CreateVersion(context.Background(), doc))
	require.Equal(t, 3, doc.Version)
	require.Equal(t, models.DocumentStatusSubmitted, doc.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCreateVersionUnknownTheme(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM themes WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.CreateVersion(context.Background(), &models.Document{ThemeID: "missing"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateStatusConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), UpdateDocumentStatusParams{
		ID:         "doc-1",
		FromStatus: models.DocumentStatusSubmitted,
		ToStatus:   models.DocumentStatusApproved,
		ReviewedBy: "supervisor-1",
		ReviewedAt: time.Now(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryLatestVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "theme_id", "student_id", "document_type", "chapter_number", "version",
		"file_reference", "size_bytes", "status", "feedback", "reviewed_at", "reviewed_by",
		"created_at", "updated_at",
	}).AddRow("doc-1", "theme-1", "student-1", "FINAL", nil, 4,
		"s3://bucket/memoire-v4.pdf", int64(2048), "APPROVED", nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY version DESC LIMIT 1")).
		WithArgs("theme-1", string(models.DocumentTypeFinal), nil).
		WillReturnRows(rows)

	doc, err := repo.LatestVersion(context.Background(), "theme-1", models.DocumentTypeFinal, nil)
	require.NoError(t, err)
	require.Equal(t, 4, doc.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}
