package dispatch

import (
	"fmt"
	"math"
	"time"
)

// DueStatus classifies a due date relative to a reference day.
type DueStatus string

const (
	DueStatusNone     DueStatus = "no-date"
	DueStatusToday    DueStatus = "due-today"
	DueStatusTomorrow DueStatus = "due-tomorrow"
	DueStatusFuture   DueStatus = "due-future"
	DueStatusOverdue  DueStatus = "overdue"
)

// DueInfo is the result of classifying a reminder's due date.
// DaysUntilDue is nil when there is no due date; zero means due today,
// negative means overdue by that many days.
type DueInfo struct {
	DaysUntilDue *int      `json:"days_until_due"`
	Status       DueStatus `json:"status"`
	Text         string    `json:"text"`
	IsOverdue    bool      `json:"is_overdue"`
}

// Classify computes how a due date relates to the reference time's calendar
// day. Both sides are normalized to midnight before subtracting, so the
// time-of-day component of either never shifts the day count: due dates are
// calendar-day concepts, not instants.
func Classify(dueDate *time.Time, now time.Time) DueInfo {
	if dueDate == nil {
		return DueInfo{Status: DueStatusNone}
	}

	days := daysUntil(*dueDate, now)

	info := DueInfo{DaysUntilDue: &days}
	switch {
	case days == 0:
		info.Status = DueStatusToday
		info.Text = "due TODAY"
	case days == 1:
		info.Status = DueStatusTomorrow
		info.Text = "due tomorrow"
	case days > 1:
		info.Status = DueStatusFuture
		info.Text = fmt.Sprintf("due in %d days", days)
	case days == -1:
		info.Status = DueStatusOverdue
		info.Text = "was due yesterday"
		info.IsOverdue = true
	default:
		info.Status = DueStatusOverdue
		info.Text = fmt.Sprintf("was due %d days ago", -days)
		info.IsOverdue = true
	}

	return info
}

// Label returns the dashboard phrasing for the classification.
func (i DueInfo) Label() string {
	switch i.Status {
	case DueStatusNone:
		return "No due date"
	case DueStatusToday:
		return "Due today"
	case DueStatusTomorrow:
		return "Due tomorrow"
	case DueStatusFuture:
		return fmt.Sprintf("Due in %d days", *i.DaysUntilDue)
	default:
		if i.DaysUntilDue != nil && *i.DaysUntilDue == -1 {
			return "Due yesterday"
		}
		return fmt.Sprintf("%d days overdue", -*i.DaysUntilDue)
	}
}

// daysUntil is ceil((dueMidnight - nowMidnight) / 1 day) in now's location.
func daysUntil(due, now time.Time) int {
	dueMid := midnightOf(due.In(now.Location()))
	nowMid := midnightOf(now)
	return int(math.Ceil(dueMid.Sub(nowMid).Hours() / 24))
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
