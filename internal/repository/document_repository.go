package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

const documentColumns = `id, theme_id, student_id, document_type, chapter_number, version, file_reference,
       size_bytes, status, feedback, reviewed_at, reviewed_by, created_at, updated_at`

// DocumentRepository persists document versions.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateVersion inserts a new document version for its (theme, type, chapter)
// key. Allocation is serialized by locking the parent theme row for the
// duration of the transaction, so two concurrent submissions can never obtain
// the same version number. A unique index on
// (theme_id, document_type, chapter_number, version) backs this up.
func (r *DocumentRepository) CreateVersion(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusSubmitted
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create version tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var themeID string
	if err = tx.GetContext(ctx, &themeID, `SELECT id FROM themes WHERE id = $1 FOR UPDATE`, doc.ThemeID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock theme for version allocation: %w", err)
	}

	const maxQuery = `SELECT COALESCE(MAX(version), 0) FROM documents
	WHERE theme_id = $1 AND document_type = $2 AND COALESCE(chapter_number, 0) = COALESCE($3, 0)`
	var current int
	if err = tx.GetContext(ctx, &current, maxQuery, doc.ThemeID, doc.DocumentType, doc.ChapterNumber); err != nil {
		return fmt.Errorf("read current version: %w", err)
	}
	doc.Version = current + 1

	const insert = `INSERT INTO documents
	(id, theme_id, student_id, document_type, chapter_number, version, file_reference, size_bytes, status, feedback, reviewed_at, reviewed_by, created_at, updated_at)
	VALUES (:id, :theme_id, :student_id, :document_type, :chapter_number, :version, :file_reference, :size_bytes, :status, :feedback, :reviewed_at, :reviewed_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, doc); err != nil {
		return fmt.Errorf("insert document version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create version tx: %w", err)
	}
	return nil
}

// GetByID fetches a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents matching the filter, newest version first.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM documents`, documentColumns))

	conditions := make([]string, 0, 4)
	if filter.ThemeID != "" {
		args = append(args, filter.ThemeID)
		conditions = append(conditions, fmt.Sprintf("theme_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		conditions = append(conditions, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, version DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// LatestVersion returns the newest version row for a (theme, type, chapter) key.
func (r *DocumentRepository) LatestVersion(ctx context.Context, themeID string, docType models.DocumentType, chapter *int) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents
	WHERE theme_id = $1 AND document_type = $2 AND COALESCE(chapter_number, 0) = COALESCE($3, 0)
	ORDER BY version DESC LIMIT 1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, themeID, docType, chapter); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocumentStatusParams groups the columns a review transition touches.
type UpdateDocumentStatusParams struct {
	ID         string
	FromStatus models.DocumentStatus
	ToStatus   models.DocumentStatus
	Feedback   *string
	ReviewedBy string
	ReviewedAt time.Time
}

// UpdateStatus applies a review transition conditionally on the expected
// pre-state; sql.ErrNoRows signals a lost race.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, params UpdateDocumentStatusParams) error {
	const query = `UPDATE documents SET status = :status, feedback = :feedback,
	reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, updated_at = :updated_at
	WHERE id = :id AND status = :from_status`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"from_status": params.FromStatus,
		"status":      params.ToStatus,
		"feedback":    params.Feedback,
		"reviewed_by": params.ReviewedBy,
		"reviewed_at": params.ReviewedAt,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
