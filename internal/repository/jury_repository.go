package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

const juryColumns = `id, theme_id, student_id, verdict, grade, remarks, required_corrections,
       corrections_deadline, corrections_completed, corrections_validated_at, corrections_validated_by,
       minutes_file, decided_by, decided_at, created_at, updated_at`

// JuryRepository persists final jury decisions.
type JuryRepository struct {
	db *sqlx.DB
}

// NewJuryRepository constructs the repository.
func NewJuryRepository(db *sqlx.DB) *JuryRepository {
	return &JuryRepository{db: db}
}

// Create inserts the single decision row for a theme. The unique index on
// theme_id rejects a second decision.
func (r *JuryRepository) Create(ctx context.Context, decision *models.JuryDecision) error {
	if decision.ID == "" {
		decision.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = now
	}
	decision.CreatedAt = now
	decision.UpdatedAt = now
	const query = `INSERT INTO jury_decisions
	(id, theme_id, student_id, verdict, grade, remarks, required_corrections, corrections_deadline, corrections_completed, corrections_validated_at, corrections_validated_by, minutes_file, decided_by, decided_at, created_at, updated_at)
	VALUES (:id, :theme_id, :student_id, :verdict, :grade, :remarks, :required_corrections, :corrections_deadline, :corrections_completed, :corrections_validated_at, :corrections_validated_by, :minutes_file, :decided_by, :decided_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, decision); err != nil {
		return fmt.Errorf("create jury decision: %w", err)
	}
	return nil
}

// GetByID fetches a decision by identifier.
func (r *JuryRepository) GetByID(ctx context.Context, id string) (*models.JuryDecision, error) {
	query := fmt.Sprintf(`SELECT %s FROM jury_decisions WHERE id = $1`, juryColumns)
	var decision models.JuryDecision
	if err := r.db.GetContext(ctx, &decision, query, id); err != nil {
		return nil, err
	}
	return &decision, nil
}

// GetByTheme fetches the decision attached to a theme.
func (r *JuryRepository) GetByTheme(ctx context.Context, themeID string) (*models.JuryDecision, error) {
	query := fmt.Sprintf(`SELECT %s FROM jury_decisions WHERE theme_id = $1 LIMIT 1`, juryColumns)
	var decision models.JuryDecision
	if err := r.db.GetContext(ctx, &decision, query, themeID); err != nil {
		return nil, err
	}
	return &decision, nil
}

// MarkCorrectionsCompleted flags the student corrections as handed in.
func (r *JuryRepository) MarkCorrectionsCompleted(ctx context.Context, id string) error {
	const query = `UPDATE jury_decisions SET corrections_completed = TRUE, updated_at = $2
	WHERE id = $1 AND corrections_completed = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark corrections completed: %w", err)
	}
	return checkAffected(result)
}

// ValidateCorrections stamps the validation, conditionally on the corrections
// being completed and not yet validated.
func (r *JuryRepository) ValidateCorrections(ctx context.Context, id, validatorID string, validatedAt time.Time) error {
	const query = `UPDATE jury_decisions
	SET corrections_validated_at = $2, corrections_validated_by = $3, updated_at = $2
	WHERE id = $1 AND corrections_completed = TRUE AND corrections_validated_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, validatedAt, validatorID)
	if err != nil {
		return fmt.Errorf("validate corrections: %w", err)
	}
	return checkAffected(result)
}

// SetMinutesFile records the generated defense minutes artifact.
func (r *JuryRepository) SetMinutesFile(ctx context.Context, id, filename string) error {
	const query = `UPDATE jury_decisions SET minutes_file = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, filename, time.Now().UTC()); err != nil {
		return fmt.Errorf("set minutes file: %w", err)
	}
	return nil
}
