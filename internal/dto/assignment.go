package dto

// AssignSupervisorRequest binds a supervisor to a student, superseding any
// currently active binding.
type AssignSupervisorRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	SupervisorID string `json:"supervisor_id" validate:"required"`
	Notes        string `json:"notes"`
}
