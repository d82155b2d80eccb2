package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

const plagiarismColumns = `id, document_id, theme_id, student_id, status, threshold_used, score,
       sources_found, details, requested_by, scored_at, created_at, updated_at`

// PlagiarismRepository persists originality checks.
type PlagiarismRepository struct {
	db *sqlx.DB
}

// NewPlagiarismRepository constructs the repository.
func NewPlagiarismRepository(db *sqlx.DB) *PlagiarismRepository {
	return &PlagiarismRepository{db: db}
}

// Create inserts a new check row with its threshold frozen.
func (r *PlagiarismRepository) Create(ctx context.Context, check *models.PlagiarismCheck) error {
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	if check.Status == "" {
		check.Status = models.PlagiarismStatusPending
	}
	now := time.Now().UTC()
	check.CreatedAt = now
	check.UpdatedAt = now
	const query = `INSERT INTO plagiarism_checks
	(id, document_id, theme_id, student_id, status, threshold_used, score, sources_found, details, requested_by, scored_at, created_at, updated_at)
	VALUES (:id, :document_id, :theme_id, :student_id, :status, :threshold_used, :score, :sources_found, :details, :requested_by, :scored_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, check); err != nil {
		return fmt.Errorf("create plagiarism check: %w", err)
	}
	return nil
}

// GetByID fetches a check by identifier.
func (r *PlagiarismRepository) GetByID(ctx context.Context, id string) (*models.PlagiarismCheck, error) {
	query := fmt.Sprintf(`SELECT %s FROM plagiarism_checks WHERE id = $1`, plagiarismColumns)
	var check models.PlagiarismCheck
	if err := r.db.GetContext(ctx, &check, query, id); err != nil {
		return nil, err
	}
	return &check, nil
}

// List returns checks matching the filter, newest first.
func (r *PlagiarismRepository) List(ctx context.Context, filter models.PlagiarismFilter) ([]models.PlagiarismCheck, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM plagiarism_checks`, plagiarismColumns))

	conditions := make([]string, 0, 4)
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		conditions = append(conditions, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if filter.ThemeID != "" {
		args = append(args, filter.ThemeID)
		conditions = append(conditions, fmt.Sprintf("theme_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
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

	var checks []models.PlagiarismCheck
	if err := r.db.SelectContext(ctx, &checks, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list plagiarism checks: %w", err)
	}
	return checks, nil
}

// RecordResult stores the oracle score and moves the check into IN_PROGRESS.
// Terminal rows never match the condition, so a late or duplicate oracle
// callback cannot mutate a frozen outcome.
func (r *PlagiarismRepository) RecordResult(ctx context.Context, id string, score float64, sourcesFound int, details *string, scoredAt time.Time) error {
	const query = `UPDATE plagiarism_checks
	SET status = $2, score = $3, sources_found = $4, details = $5, scored_at = $6, updated_at = $6
	WHERE id = $1 AND status IN ($7, $8)`
	result, err := r.db.ExecContext(ctx, query, id,
		models.PlagiarismStatusInProgress, score, sourcesFound, details, scoredAt,
		models.PlagiarismStatusPending, models.PlagiarismStatusInProgress)
	if err != nil {
		return fmt.Errorf("record plagiarism result: %w", err)
	}
	return checkAffected(result)
}

// Finalize freezes the outcome. The verdict is computed inside the statement
// from the stored score and the frozen threshold, so a result recorded after
// the caller's read can never freeze a stale verdict.
func (r *PlagiarismRepository) Finalize(ctx context.Context, id string) error {
	const query = `UPDATE plagiarism_checks
	SET status = CASE WHEN score < threshold_used THEN $2 ELSE $3 END, updated_at = $4
	WHERE id = $1 AND status = $5 AND score IS NOT NULL`
	result, err := r.db.ExecContext(ctx, query, id,
		models.PlagiarismStatusPassed, models.PlagiarismStatusFailed,
		time.Now().UTC(), models.PlagiarismStatusInProgress)
	if err != nil {
		return fmt.Errorf("finalize plagiarism check: %w", err)
	}
	return checkAffected(result)
}
