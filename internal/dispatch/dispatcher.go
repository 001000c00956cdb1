// Package dispatch implements the reminder scheduling-and-dispatch engine:
// deciding which reminders fire on a given day, rendering personalized
// messages, sending them through the SMS gateway and recording an idempotent
// per-day delivery log.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/db"
	"github.com/remindbot/remindbot/internal/metrics"
	"github.com/remindbot/remindbot/internal/sms"
)

// ErrReminderNotFound is returned by SendManual for an unknown reminder id.
var ErrReminderNotFound = errors.New("reminder not found")

// ErrNoRecipients is returned by SendManual when the reminder has no
// recipients, or the contact-id filter leaves none.
var ErrNoRecipients = errors.New("no valid contacts found to send reminder to")

// ReminderSource is what the dispatcher needs from the reminder repository.
// Reminders come back with their recipients resolved.
type ReminderSource interface {
	ListActiveReminders(ctx context.Context) ([]*db.Reminder, error)
	GetReminder(ctx context.Context, id uuid.UUID) (*db.Reminder, error)
	TouchLastSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Ledger is the append-only delivery log. WasSentSince is the sole duplicate
// suppression mechanism: per calendar day, not per run, so repeated runs
// within the same day stay idempotent.
type Ledger interface {
	WasSentSince(ctx context.Context, reminderID, contactID uuid.UUID, since time.Time) (bool, error)
	CreateMessage(ctx context.Context, msg *db.Message) error
}

// SendOutcome is the per-recipient result of a manual send.
type SendOutcome struct {
	Contact string `json:"contact"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ManualResult aggregates a manual send across its recipients.
type ManualResult struct {
	Results      []SendOutcome `json:"results"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
}

// Config tunes the dispatcher.
type Config struct {
	// OverdueWindowDays caps how many days past due the overdue path keeps
	// firing. Defaults to DefaultOverdueWindowDays.
	OverdueWindowDays int
}

// Dispatcher runs reminders through the gate, the renderer, the gateway and
// the ledger. It processes pairs sequentially and runs to completion; a
// failure for one (reminder, contact) pair never aborts the rest of the run.
type Dispatcher struct {
	reminders ReminderSource
	ledger    Ledger
	gateway   sms.Gateway
	config    Config
	logger    *zap.Logger
}

// New creates a dispatcher.
func New(reminders ReminderSource, ledger Ledger, gateway sms.Gateway, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.OverdueWindowDays <= 0 {
		cfg.OverdueWindowDays = DefaultOverdueWindowDays
	}

	return &Dispatcher{
		reminders: reminders,
		ledger:    ledger,
		gateway:   gateway,
		config:    cfg,
		logger:    logger,
	}
}

// ProcessScheduled walks all active reminders and their active recipients,
// sending every pair that is due today and not yet messaged today. It returns
// the number of successful sends. Called hourly by the scheduler and on
// demand from the admin trigger endpoint; both may safely overlap the same
// day thanks to the ledger check.
func (d *Dispatcher) ProcessScheduled(ctx context.Context, now time.Time) (int, error) {
	reminders, err := d.reminders.ListActiveReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active reminders: %w", err)
	}

	d.logger.Info("checking active reminders", zap.Int("count", len(reminders)))

	midnight := midnightOf(now)
	processed := 0

	for _, rem := range reminders {
		if len(rem.Recipients) == 0 {
			d.logger.Info("skipping reminder without recipients",
				zap.String("reminder_id", rem.ID.String()),
				zap.String("title", rem.Title),
			)
			continue
		}

		sentAny := false

		for _, contact := range rem.Recipients {
			if !contact.IsActive {
				d.logger.Debug("skipping inactive contact",
					zap.String("contact_id", contact.ID.String()),
					zap.String("name", contact.Name),
				)
				continue
			}

			if !shouldSendWithin(rem, now, d.config.OverdueWindowDays) {
				info := Classify(rem.DueDate, now)
				d.logger.Debug("reminder not due",
					zap.String("title", rem.Title),
					zap.String("contact", contact.Name),
					zap.Any("days_until_due", info.DaysUntilDue),
					zap.Ints("offsets", rem.ReminderOffsets),
				)
				continue
			}

			alreadySent, err := d.ledger.WasSentSince(ctx, rem.ID, contact.ID, midnight)
			if err != nil {
				// Ledger read failure is isolated to this pair; the rest of
				// the run must still be attempted.
				d.logger.Error("ledger lookup failed",
					zap.Error(err),
					zap.String("reminder_id", rem.ID.String()),
					zap.String("contact_id", contact.ID.String()),
				)
				continue
			}
			if alreadySent {
				d.logger.Debug("already sent today",
					zap.String("title", rem.Title),
					zap.String("contact", contact.Name),
				)
				continue
			}

			res, err := d.deliver(ctx, rem, contact, now, true)
			if err != nil {
				d.logger.Error("failed to record delivery",
					zap.Error(err),
					zap.String("reminder_id", rem.ID.String()),
					zap.String("contact_id", contact.ID.String()),
				)
				continue
			}

			if res.Success {
				processed++
				sentAny = true
			}
		}

		if sentAny {
			// Advisory bookkeeping only; gating stays ledger-based.
			if err := d.reminders.TouchLastSent(ctx, rem.ID, now); err != nil {
				d.logger.Warn("failed to update last_sent",
					zap.Error(err),
					zap.String("reminder_id", rem.ID.String()),
				)
			}
		}
	}

	metrics.RecordDispatchRun("scheduled", processed)
	d.logger.Info("scheduled dispatch completed", zap.Int("sent", processed))

	return processed, nil
}

// SendManual sends one reminder to its recipients immediately, bypassing the
// active check, the send gate and the per-day duplicate suppression: it is an
// explicit admin override. When contactIDs is non-empty the recipient list is
// restricted to that subset (intersection by id).
func (d *Dispatcher) SendManual(ctx context.Context, reminderID uuid.UUID, contactIDs []uuid.UUID, now time.Time) (*ManualResult, error) {
	rem, err := d.reminders.GetReminder(ctx, reminderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("load reminder: %w", err)
	}

	targets := rem.Recipients
	if len(contactIDs) > 0 {
		wanted := make(map[uuid.UUID]bool, len(contactIDs))
		for _, id := range contactIDs {
			wanted[id] = true
		}
		filtered := targets[:0:0]
		for _, c := range targets {
			if wanted[c.ID] {
				filtered = append(filtered, c)
			}
		}
		targets = filtered
	}

	if len(targets) == 0 {
		return nil, ErrNoRecipients
	}

	d.logger.Info("manual send initiated",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("title", rem.Title),
		zap.Int("recipients", len(targets)),
	)

	result := &ManualResult{}

	for _, contact := range targets {
		// Manual sends keep the template's literal wording: no auto-context,
		// though the {dueStatus} placeholder still resolves.
		res, err := d.deliver(ctx, rem, contact, now, false)

		outcome := SendOutcome{Contact: contact.Name}
		switch {
		case err != nil:
			outcome.Error = err.Error()
		case res.Success:
			outcome.Success = true
		default:
			outcome.Error = res.Error
		}

		if outcome.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
		result.Results = append(result.Results, outcome)
	}

	metrics.RecordDispatchRun("manual", result.SuccessCount)
	d.logger.Info("manual send completed",
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailureCount),
	)

	return result, nil
}

// deliver renders, sends and records one (reminder, contact) pair. The
// ledger entry is written for success and failure alike; only a ledger write
// failure comes back as an error.
func (d *Dispatcher) deliver(ctx context.Context, rem *db.Reminder, contact *db.Contact, now time.Time, autoContext bool) (sms.Result, error) {
	body := Render(rem.Message, contact, rem, now, autoContext)

	start := time.Now()
	res := d.gateway.Send(ctx, contact.Phone, body)
	metrics.RecordSMSSend(d.gateway.Name(), res.Success, time.Since(start))

	msg := &db.Message{
		ID:         uuid.New(),
		ReminderID: rem.ID,
		ContactID:  contact.ID,
		Phone:      contact.Phone,
		Body:       body,
		Status:     db.StatusFailed,
	}

	if res.Success {
		msg.Status = db.StatusSent
		sentAt := now
		msg.SentAt = &sentAt
		if res.MessageID != "" {
			id := res.MessageID
			msg.ProviderMessageID = &id
		}
	} else if res.Error != "" {
		errText := res.Error
		msg.Response = &errText
	}

	if err := d.ledger.CreateMessage(ctx, msg); err != nil {
		return res, fmt.Errorf("record delivery: %w", err)
	}

	metrics.RecordMessage(msg.Status)

	if res.Success {
		d.logger.Info("reminder sent",
			zap.String("title", rem.Title),
			zap.String("contact", contact.Name),
			zap.String("provider_message_id", res.MessageID),
		)
	} else {
		d.logger.Warn("reminder send failed",
			zap.String("title", rem.Title),
			zap.String("contact", contact.Name),
			zap.String("error", res.Error),
		)
	}

	return res, nil
}
