package dispatch

import (
	"time"

	"github.com/remindbot/remindbot/internal/db"
)

// DefaultOverdueWindowDays bounds how long an overdue reminder keeps firing
// without a matching offset. Beyond the window it goes quiet on the schedule
// and can only be sent manually.
const DefaultOverdueWindowDays = 7

// ShouldSend decides whether a reminder fires on the reference day using the
// default overdue window.
func ShouldSend(reminder *db.Reminder, now time.Time) bool {
	return shouldSendWithin(reminder, now, DefaultOverdueWindowDays)
}

// shouldSendWithin is the gate proper. Offsets are exact lead-time matches:
// an offset of 3 fires only on the single day exactly 3 days before due.
// The overdue path is a separate bounded safety net, independent of offsets.
func shouldSendWithin(reminder *db.Reminder, now time.Time, overdueWindowDays int) bool {
	info := Classify(reminder.DueDate, now)
	if info.DaysUntilDue == nil {
		return false
	}
	days := *info.DaysUntilDue

	for _, offset := range reminder.ReminderOffsets {
		if offset == days {
			return true
		}
	}

	if days < 0 && -days <= overdueWindowDays {
		return true
	}

	return false
}
