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

const meetingReportColumns = `id, theme_id, student_id, supervisor_id, meeting_date, summary, status,
       supervisor_validated, department_head_validated, submitted_at, validated_at, validated_by,
       rejection_reason, appended_notes, created_at, updated_at`

// MeetingReportRepository persists fiches de suivi.
type MeetingReportRepository struct {
	db *sqlx.DB
}

// NewMeetingReportRepository constructs the repository.
func NewMeetingReportRepository(db *sqlx.DB) *MeetingReportRepository {
	return &MeetingReportRepository{db: db}
}

// Create inserts a new report row.
func (r *MeetingReportRepository) Create(ctx context.Context, report *models.MeetingReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = models.MeetingReportStatusDraft
	}
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now
	const query = `INSERT INTO meeting_reports
	(id, theme_id, student_id, supervisor_id, meeting_date, summary, status, supervisor_validated, department_head_validated, submitted_at, validated_at, validated_by, rejection_reason, appended_notes, created_at, updated_at)
	VALUES (:id, :theme_id, :student_id, :supervisor_id, :meeting_date, :summary, :status, :supervisor_validated, :department_head_validated, :submitted_at, :validated_at, :validated_by, :rejection_reason, :appended_notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create meeting report: %w", err)
	}
	return nil
}

// GetByID fetches a report by identifier.
func (r *MeetingReportRepository) GetByID(ctx context.Context, id string) (*models.MeetingReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM meeting_reports WHERE id = $1`, meetingReportColumns)
	var report models.MeetingReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports matching the filter, newest first.
func (r *MeetingReportRepository) List(ctx context.Context, filter models.MeetingReportFilter) ([]models.MeetingReport, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM meeting_reports`, meetingReportColumns))

	conditions := make([]string, 0, 4)
	if filter.ThemeID != "" {
		args = append(args, filter.ThemeID)
		conditions = append(conditions, fmt.Sprintf("theme_id = $%d", len(args)))
	}
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
	builder.WriteString(" ORDER BY meeting_date DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var reports []models.MeetingReport
	if err := r.db.SelectContext(ctx, &reports, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list meeting reports: %w", err)
	}
	return reports, nil
}

// Submit moves a draft (or a head-rejected report) back into the validation
// cycle. sql.ErrNoRows signals the row was not in an eligible state.
func (r *MeetingReportRepository) Submit(ctx context.Context, id string, submittedAt time.Time) error {
	const query = `UPDATE meeting_reports
	SET status = $2, supervisor_validated = FALSE, department_head_validated = FALSE,
	    submitted_at = $3, rejection_reason = NULL, updated_at = $3
	WHERE id = $1 AND status IN ($4, $5)`
	result, err := r.db.ExecContext(ctx, query, id,
		models.MeetingReportStatusSubmitted, submittedAt,
		models.MeetingReportStatusDraft, models.MeetingReportStatusRejected)
	if err != nil {
		return fmt.Errorf("submit meeting report: %w", err)
	}
	return checkAffected(result)
}

// MarkSupervisorValidated sets the supervisor flag. The conditional write
// keys on SUBMITTED status and an unset flag; zero rows means either a lost
// race or an already validated report, which the service disambiguates.
func (r *MeetingReportRepository) MarkSupervisorValidated(ctx context.Context, id string) error {
	const query = `UPDATE meeting_reports
	SET supervisor_validated = TRUE, updated_at = $2
	WHERE id = $1 AND status = $3 AND supervisor_validated = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), models.MeetingReportStatusSubmitted)
	if err != nil {
		return fmt.Errorf("mark supervisor validated: %w", err)
	}
	return checkAffected(result)
}

// MarkHeadValidated flips the head flag and finalizes the report in one
// conditional statement. The supervisor flag is re-checked inside the same
// write, so a stale read can never validate an unendorsed report.
func (r *MeetingReportRepository) MarkHeadValidated(ctx context.Context, id, validatedBy string, validatedAt time.Time) error {
	const query = `UPDATE meeting_reports
	SET department_head_validated = TRUE, status = $2, validated_at = $3, validated_by = $4, updated_at = $3
	WHERE id = $1 AND status = $5 AND supervisor_validated = TRUE AND department_head_validated = FALSE`
	result, err := r.db.ExecContext(ctx, query, id,
		models.MeetingReportStatusValidated, validatedAt, validatedBy,
		models.MeetingReportStatusSubmitted)
	if err != nil {
		return fmt.Errorf("mark head validated: %w", err)
	}
	return checkAffected(result)
}

// RejectByHead rejects a submitted report and resets both validation flags
// so the cycle can restart from a resubmission.
func (r *MeetingReportRepository) RejectByHead(ctx context.Context, id, reason string) error {
	const query = `UPDATE meeting_reports
	SET status = $2, rejection_reason = $3, supervisor_validated = FALSE, department_head_validated = FALSE, updated_at = $4
	WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id,
		models.MeetingReportStatusRejected, reason, time.Now().UTC(),
		models.MeetingReportStatusSubmitted)
	if err != nil {
		return fmt.Errorf("reject meeting report: %w", err)
	}
	return checkAffected(result)
}

// AppendNote adds a note to a validated report, the only mutation allowed
// after finalization.
func (r *MeetingReportRepository) AppendNote(ctx context.Context, id, note string) error {
	const query = `UPDATE meeting_reports
	SET appended_notes = CONCAT(COALESCE(appended_notes || E'\n', ''), $2::text), updated_at = $3
	WHERE id = $1 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, id, note, time.Now().UTC(), models.MeetingReportStatusValidated)
	if err != nil {
		return fmt.Errorf("append report note: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
