package models

import "time"

// NotificationSeverity orders notifications in the inbox.
type NotificationSeverity string

const (
	NotificationSeverityInfo    NotificationSeverity = "INFO"
	NotificationSeveritySuccess NotificationSeverity = "SUCCESS"
	NotificationSeverityWarning NotificationSeverity = "WARNING"
	NotificationSeverityError   NotificationSeverity = "ERROR"
)

// Valid reports whether the severity is a known one.
func (s NotificationSeverity) Valid() bool {
	switch s {
	case NotificationSeverityInfo, NotificationSeveritySuccess, NotificationSeverityWarning, NotificationSeverityError:
		return true
	default:
		return false
	}
}

// Notification is one inbox entry produced by an accepted workflow transition.
// Delivery is best-effort and at-least-once: duplicates are acceptable.
type Notification struct {
	ID            string               `db:"id" json:"id"`
	RecipientID   string               `db:"recipient_id" json:"recipient_id"`
	Title         string               `db:"title" json:"title"`
	Message       string               `db:"message" json:"message"`
	Severity      NotificationSeverity `db:"severity" json:"severity"`
	RelatedEntity string               `db:"related_entity" json:"related_entity"`
	RelatedID     string               `db:"related_id" json:"related_id"`
	Read          bool                 `db:"read" json:"read"`
	ReadAt        *time.Time           `db:"read_at" json:"read_at,omitempty"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains inbox queries.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
	Offset      int
}
