package db

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a person reminders can be sent to.
type Contact struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Phone     string             `json:"phone"`
	Tags      []string           `json:"tags"`
	Prefs     ContactPreferences `json:"preferences"`
	IsActive  bool               `json:"is_active"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ContactPreferences holds per-contact defaults. The dispatch engine does not
// consult these yet; they are captured for the admin UI and future use.
type ContactPreferences struct {
	ReminderOffset int    `json:"reminder_offset"`
	Timezone       string `json:"timezone"`
}

// Schedule describes when a reminder nominally recurs. It is display metadata:
// dispatch keys off DueDate and ReminderOffsets, not the schedule kind.
type Schedule struct {
	Kind       string     `json:"kind"` // monthly, weekly, one-time, custom
	DayOfMonth *int       `json:"day_of_month,omitempty"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"` // 0 = Sunday
	Date       *time.Time `json:"date,omitempty"`
	Time       string     `json:"time"` // "HH:MM"
}

// Schedule kind constants
const (
	ScheduleMonthly = "monthly"
	ScheduleWeekly  = "weekly"
	ScheduleOneTime = "one-time"
	ScheduleCustom  = "custom"
)

// Reminder is a schedulable message definition.
type Reminder struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	Recipients      []*Contact `json:"recipients"`
	Schedule        Schedule   `json:"schedule"`
	Amount          *float64   `json:"amount,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	ReminderOffsets []int      `json:"reminder_offsets"`
	IsActive        bool       `json:"is_active"`
	LastSent        *time.Time `json:"last_sent,omitempty"`
	Category        string     `json:"category"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DefaultReminderOffsets is applied when a reminder is created without
// explicit offsets: a week out, three days out, the day before, and the day.
var DefaultReminderOffsets = []int{7, 3, 1, 0}

// Message is one delivery-log row: a single send attempt for a
// (reminder, contact) pair. Rows are append-only from dispatch's perspective.
type Message struct {
	ID                uuid.UUID  `json:"id"`
	ReminderID        uuid.UUID  `json:"reminder_id"`
	ContactID         uuid.UUID  `json:"contact_id"`
	Phone             string     `json:"phone"` // denormalized at send time
	Body              string     `json:"message"`
	Status            string     `json:"status"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	Response          *string    `json:"response,omitempty"`
	IsPaid            bool       `json:"is_paid"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Message status constants
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusDelivered = "delivered"
)
