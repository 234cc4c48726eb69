package domain

import "time"

// AbandonedCartRecord mirrors one identity's cart in the remote document
// store. At most one record exists per identity key. The record is advisory:
// the local cart is authoritative and the mirror may lag behind it.
type AbandonedCartRecord struct {
	RecordID       string     `bson:"_id" json:"record_id"`
	SessionID      string     `bson:"session_id" json:"session_id"`
	UserID         string     `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Email          string     `bson:"email" json:"email"`
	Items          []CartLine `bson:"items" json:"items"`
	Total          float64    `bson:"total" json:"total"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updated_at"`
	AbandonedAt    time.Time  `bson:"abandoned_at" json:"abandoned_at"`
	RemindersSent  int        `bson:"reminders_sent" json:"reminders_sent"`
	LastReminderAt *time.Time `bson:"last_reminder_at,omitempty" json:"last_reminder_at,omitempty"`
	Recovered      bool       `bson:"recovered" json:"recovered"`
	RecoveredAt    *time.Time `bson:"recovered_at,omitempty" json:"recovered_at,omitempty"`
}
