package dispatch

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/remindbot/remindbot/internal/db"
)

// timeRefPattern detects whether a rendered message already mentions
// due-ness, so the auto-appended context never repeats what the template
// says itself.
var timeRefPattern = regexp.MustCompile(`(?i)\b(due|overdue|today|tomorrow|yesterday|days?\s+(ago|late))\b`)

// Render personalizes a message template for one contact. The five
// placeholders {name}, {amount}, {dueDate}, {title} and {dueStatus} are
// replaced globally; values that are absent substitute the empty string.
//
// When autoContext is true (scheduled sends only) and the reminder has a due
// date, a parenthetical due-status suffix is appended unless the substituted
// text already carries a temporal reference.
func Render(template string, contact *db.Contact, reminder *db.Reminder, now time.Time, autoContext bool) string {
	dueStatus := Classify(reminder.DueDate, now).Text

	amount := ""
	if reminder.Amount != nil {
		amount = "$" + strconv.FormatFloat(*reminder.Amount, 'f', -1, 64)
	}

	dueDate := ""
	if reminder.DueDate != nil {
		dueDate = reminder.DueDate.In(now.Location()).Format("1/2/2006")
	}

	msg := template
	msg = strings.ReplaceAll(msg, "{name}", contact.Name)
	msg = strings.ReplaceAll(msg, "{amount}", amount)
	msg = strings.ReplaceAll(msg, "{dueDate}", dueDate)
	msg = strings.ReplaceAll(msg, "{title}", reminder.Title)
	msg = strings.ReplaceAll(msg, "{dueStatus}", dueStatus)

	if autoContext && dueStatus != "" && !timeRefPattern.MatchString(msg) {
		marker := ""
		switch {
		case strings.Contains(dueStatus, "TODAY"):
			marker = " ⏰"
		case strings.Contains(dueStatus, "tomorrow"):
			marker = " 📅"
		case strings.Contains(dueStatus, "ago"):
			marker = " ⚠️"
		}
		msg += " (" + dueStatus + marker + ")"
	}

	return msg
}
