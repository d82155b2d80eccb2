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

const themeColumns = `id, student_id, supervisor_id, title, description, status, rejection_reason,
       revision_notes, reviewed_at, reviewed_by, created_at, updated_at`

// ThemeRepository persists thesis topics.
type ThemeRepository struct {
	db *sqlx.DB
}

// NewThemeRepository constructs the repository.
func NewThemeRepository(db *sqlx.DB) *ThemeRepository {
	return &ThemeRepository{db: db}
}

// Create inserts a new theme row.
func (r *ThemeRepository) Create(ctx context.Context, theme *models.Theme) error {
	if theme.ID == "" {
		theme.ID = uuid.NewString()
	}
	if theme.Status == "" {
		theme.Status = models.ThemeStatusPending
	}
	now := time.Now().UTC()
	if theme.CreatedAt.IsZero() {
		theme.CreatedAt = now
	}
	theme.UpdatedAt = now
	const query = `INSERT INTO themes
	(id, student_id, supervisor_id, title, description, status, rejection_reason, revision_notes, reviewed_at, reviewed_by, created_at, updated_at)
	VALUES (:id, :student_id, :supervisor_id, :title, :description, :status, :rejection_reason, :revision_notes, :reviewed_at, :reviewed_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, theme); err != nil {
		return fmt.Errorf("create theme: %w", err)
	}
	return nil
}

// GetByID fetches a theme by identifier.
func (r *ThemeRepository) GetByID(ctx context.Context, id string) (*models.Theme, error) {
	query := fmt.Sprintf(`SELECT %s FROM themes WHERE id = $1`, themeColumns)
	var theme models.Theme
	if err := r.db.GetContext(ctx, &theme, query, id); err != nil {
		return nil, err
	}
	return &theme, nil
}

// List returns themes matching the filter, newest first.
func (r *ThemeRepository) List(ctx context.Context, filter models.ThemeFilter) ([]models.Theme, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM themes`, themeColumns))

	conditions := make([]string, 0, 3)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.SupervisorID != "" {
		args = append(args, filter.SupervisorID)
		conditions = append(conditions, fmt.Sprintf("supervisor_id = $%d", len(args)))
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
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var themes []models.Theme
	if err := r.db.SelectContext(ctx, &themes, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	return themes, nil
}

// CountOpenByStudent counts themes of a student that are not yet terminal.
func (r *ThemeRepository) CountOpenByStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM themes WHERE student_id = $1 AND status NOT IN ($2, $3)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, models.ThemeStatusRejected, models.ThemeStatusLocked); err != nil {
		return 0, fmt.Errorf("count open themes: %w", err)
	}
	return count, nil
}

// UpdateThemeStatusParams groups the columns a review transition touches.
type UpdateThemeStatusParams struct {
	ID              string
	FromStatus      models.ThemeStatus
	ToStatus        models.ThemeStatus
	Title           *string
	Description     *string
	RejectionReason *string
	RevisionNotes   *string
	ReviewedBy      *string
	ReviewedAt      *time.Time
}

// UpdateStatus applies a transition conditionally on the expected pre-state.
// It returns sql.ErrNoRows when the stored status no longer matches, which
// the service layer maps to a conflicting-update failure.
func (r *ThemeRepository) UpdateStatus(ctx context.Context, params UpdateThemeStatusParams) error {
	setParts := []string{
		"status = :status",
		"rejection_reason = :rejection_reason",
		"revision_notes = :revision_notes",
		"updated_at = :updated_at",
	}
	if params.Title != nil {
		setParts = append(setParts, "title = :title")
	}
	if params.Description != nil {
		setParts = append(setParts, "description = :description")
	}
	if params.ReviewedBy != nil {
		setParts = append(setParts, "reviewed_by = :reviewed_by", "reviewed_at = :reviewed_at")
	}
	query := fmt.Sprintf("UPDATE themes SET %s WHERE id = :id AND status = :from_status",
		strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"from_status":      params.FromStatus,
		"status":           params.ToStatus,
		"title":            params.Title,
		"description":      params.Description,
		"rejection_reason": params.RejectionReason,
		"revision_notes":   params.RevisionNotes,
		"reviewed_by":      params.ReviewedBy,
		"reviewed_at":      params.ReviewedAt,
		"updated_at":       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update theme status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check theme update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetSupervisor stamps the supervisor reference after an assignment.
func (r *ThemeRepository) SetSupervisor(ctx context.Context, themeID, supervisorID string) error {
	const query = `UPDATE themes SET supervisor_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, themeID, supervisorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set theme supervisor: %w", err)
	}
	return nil
}
