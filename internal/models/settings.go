package models

import "time"

// SettingKeyPlagiarismThreshold stores the default similarity threshold
// handed to new plagiarism checks. Changing it never touches in-flight
// checks: each check freezes the value at creation.
const SettingKeyPlagiarismThreshold = "plagiarism_threshold"

// Setting is one mutable key/value row editable by administrators.
type Setting struct {
	ID        string    `db:"id" json:"id"`
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedBy *string   `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
