package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

const assignmentColumns = `id, student_id, supervisor_id, is_active, assigned_by, assigned_at, notes, created_at, updated_at`

// AssignmentRepository persists supervisor/student bindings.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ActiveByStudent returns the single active assignment for a student, or
// sql.ErrNoRows when none exists.
func (r *AssignmentRepository) ActiveByStudent(ctx context.Context, studentID string) (*models.SupervisorAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM supervisor_assignments WHERE student_id = $1 AND is_active = TRUE LIMIT 1`, assignmentColumns)
	var assignment models.SupervisorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, studentID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// HistoryByStudent returns all assignments for a student, newest first.
func (r *AssignmentRepository) HistoryByStudent(ctx context.Context, studentID string) ([]models.SupervisorAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM supervisor_assignments WHERE student_id = $1 ORDER BY assigned_at DESC`, assignmentColumns)
	var assignments []models.SupervisorAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, studentID); err != nil {
		return nil, fmt.Errorf("list assignment history: %w", err)
	}
	return assignments, nil
}

// Assign deactivates the current active binding and activates the new one in
// a single transaction, so a concurrent reader never observes zero or two
// active rows for the student.
func (r *AssignmentRepository) Assign(ctx context.Context, assignment *models.SupervisorAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = now
	}
	assignment.IsActive = true
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE supervisor_assignments SET is_active = FALSE, updated_at = $2 WHERE student_id = $1 AND is_active = TRUE`,
		assignment.StudentID, now); err != nil {
		return fmt.Errorf("deactivate previous assignment: %w", err)
	}

	const insert = `INSERT INTO supervisor_assignments
	(id, student_id, supervisor_id, is_active, assigned_by, assigned_at, notes, created_at, updated_at)
	VALUES (:id, :student_id, :supervisor_id, :is_active, :assigned_by, :assigned_at, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, assignment); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assign tx: %w", err)
	}
	return nil
}

// Deactivate ends the active binding without creating a new one.
func (r *AssignmentRepository) Deactivate(ctx context.Context, studentID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE supervisor_assignments SET is_active = FALSE, updated_at = $2 WHERE student_id = $1 AND is_active = TRUE`,
		studentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deactivate rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
