package models

import "time"

// SupervisorAssignment binds a student to a supervisor. At most one row per
// student has is_active=true at any observable instant; historical rows are
// kept deactivated.
type SupervisorAssignment struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	SupervisorID string    `db:"supervisor_id" json:"supervisor_id"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	AssignedBy   string    `db:"assigned_by" json:"assigned_by"`
	AssignedAt   time.Time `db:"assigned_at" json:"assigned_at"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
