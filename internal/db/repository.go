package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository handles database operations for contacts, reminders and the
// message log.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository.
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// --- Contacts ---

// CreateContact inserts a new contact.
func (r *Repository) CreateContact(ctx context.Context, c *Contact) error {
	query := `
		INSERT INTO contacts (
			id, name, phone, tags, reminder_offset, timezone, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		c.ID,
		c.Name,
		c.Phone,
		c.Tags,
		c.Prefs.ReminderOffset,
		c.Prefs.Timezone,
		c.IsActive,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create contact",
			zap.Error(err),
			zap.String("contact_id", c.ID.String()),
		)
		return fmt.Errorf("insert contact: %w", err)
	}

	r.logger.Info("contact created",
		zap.String("contact_id", c.ID.String()),
		zap.String("name", c.Name),
	)

	return nil
}

// GetContact retrieves a contact by ID.
func (r *Repository) GetContact(ctx context.Context, id uuid.UUID) (*Contact, error) {
	query := `
		SELECT id, name, phone, tags, reminder_offset, timezone, is_active,
			created_at, updated_at
		FROM contacts
		WHERE id = $1
	`

	var c Contact
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Phone,
		&c.Tags,
		&c.Prefs.ReminderOffset,
		&c.Prefs.Timezone,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query contact: %w", err)
	}

	return &c, nil
}

// ListContacts retrieves all contacts sorted by name.
func (r *Repository) ListContacts(ctx context.Context) ([]*Contact, error) {
	query := `
		SELECT id, name, phone, tags, reminder_offset, timezone, is_active,
			created_at, updated_at
		FROM contacts
		ORDER BY name ASC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		var c Contact
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Phone,
			&c.Tags,
			&c.Prefs.ReminderOffset,
			&c.Prefs.Timezone,
			&c.IsActive,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return contacts, nil
}

// UpdateContact updates a contact's mutable fields.
func (r *Repository) UpdateContact(ctx context.Context, c *Contact) error {
	query := `
		UPDATE contacts
		SET name = $1, phone = $2, tags = $3, reminder_offset = $4,
			timezone = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		c.Name,
		c.Phone,
		c.Tags,
		c.Prefs.ReminderOffset,
		c.Prefs.Timezone,
		c.IsActive,
		c.ID,
	).Scan(&c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}

	return nil
}

// DeleteContact removes a contact and its recipient links.
func (r *Repository) DeleteContact(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Info("contact deleted", zap.String("contact_id", id.String()))
	return nil
}

// --- Reminders ---

const reminderColumns = `
	id, title, message, schedule_kind, schedule_day_of_month,
	schedule_day_of_week, schedule_date, schedule_time, amount, due_date,
	reminder_offsets, is_active, last_sent, category, created_at, updated_at
`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(
		&rem.ID,
		&rem.Title,
		&rem.Message,
		&rem.Schedule.Kind,
		&rem.Schedule.DayOfMonth,
		&rem.Schedule.DayOfWeek,
		&rem.Schedule.Date,
		&rem.Schedule.Time,
		&rem.Amount,
		&rem.DueDate,
		&rem.ReminderOffsets,
		&rem.IsActive,
		&rem.LastSent,
		&rem.Category,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rem, nil
}

// CreateReminder inserts a reminder and its recipient links in one
// transaction.
func (r *Repository) CreateReminder(ctx context.Context, rem *Reminder) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO reminders (
			id, title, message, schedule_kind, schedule_day_of_month,
			schedule_day_of_week, schedule_date, schedule_time, amount,
			due_date, reminder_offsets, is_active, category
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		rem.ID,
		rem.Title,
		rem.Message,
		rem.Schedule.Kind,
		rem.Schedule.DayOfMonth,
		rem.Schedule.DayOfWeek,
		rem.Schedule.Date,
		rem.Schedule.Time,
		rem.Amount,
		rem.DueDate,
		rem.ReminderOffsets,
		rem.IsActive,
		rem.Category,
	).Scan(&rem.CreatedAt, &rem.UpdatedAt)

	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}

	if err := insertRecipients(ctx, tx, rem.ID, rem.Recipients); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Info("reminder created",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("title", rem.Title),
		zap.Int("recipients", len(rem.Recipients)),
	)

	return nil
}

func insertRecipients(ctx context.Context, tx pgx.Tx, reminderID uuid.UUID, recipients []*Contact) error {
	for i, c := range recipients {
		_, err := tx.Exec(ctx,
			`INSERT INTO reminder_recipients (reminder_id, contact_id, position) VALUES ($1, $2, $3)`,
			reminderID, c.ID, i,
		)
		if err != nil {
			return fmt.Errorf("insert recipient: %w", err)
		}
	}
	return nil
}

// GetReminder retrieves a reminder with its recipients resolved.
func (r *Repository) GetReminder(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	rem, err := scanReminder(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query reminder: %w", err)
	}

	rem.Recipients, err = r.loadRecipients(ctx, rem.ID)
	if err != nil {
		return nil, err
	}

	return rem, nil
}

// ListReminders retrieves all reminders, newest first, with recipients
// resolved.
func (r *Repository) ListReminders(ctx context.Context) ([]*Reminder, error) {
	return r.listReminders(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY created_at DESC`)
}

// ListActiveReminders retrieves reminders eligible for scheduled dispatch,
// with recipients resolved.
func (r *Repository) ListActiveReminders(ctx context.Context) ([]*Reminder, error) {
	return r.listReminders(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE is_active ORDER BY created_at ASC`)
}

func (r *Repository) listReminders(ctx context.Context, query string) ([]*Reminder, error) {
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	for _, rem := range reminders {
		rem.Recipients, err = r.loadRecipients(ctx, rem.ID)
		if err != nil {
			return nil, err
		}
	}

	return reminders, nil
}

func (r *Repository) loadRecipients(ctx context.Context, reminderID uuid.UUID) ([]*Contact, error) {
	query := `
		SELECT c.id, c.name, c.phone, c.tags, c.reminder_offset, c.timezone,
			c.is_active, c.created_at, c.updated_at
		FROM reminder_recipients rr
		JOIN contacts c ON c.id = rr.contact_id
		WHERE rr.reminder_id = $1
		ORDER BY rr.position ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, reminderID)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		var c Contact
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Phone,
			&c.Tags,
			&c.Prefs.ReminderOffset,
			&c.Prefs.Timezone,
			&c.IsActive,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		contacts = append(contacts, &c)
	}

	return contacts, rows.Err()
}

// UpdateReminder updates a reminder and replaces its recipient links.
func (r *Repository) UpdateReminder(ctx context.Context, rem *Reminder) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE reminders
		SET title = $1, message = $2, schedule_kind = $3,
			schedule_day_of_month = $4, schedule_day_of_week = $5,
			schedule_date = $6, schedule_time = $7, amount = $8,
			due_date = $9, reminder_offsets = $10, is_active = $11,
			category = $12, updated_at = NOW()
		WHERE id = $13
		RETURNING updated_at
	`

	err = tx.QueryRow(ctx, query,
		rem.Title,
		rem.Message,
		rem.Schedule.Kind,
		rem.Schedule.DayOfMonth,
		rem.Schedule.DayOfWeek,
		rem.Schedule.Date,
		rem.Schedule.Time,
		rem.Amount,
		rem.DueDate,
		rem.ReminderOffsets,
		rem.IsActive,
		rem.Category,
		rem.ID,
	).Scan(&rem.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM reminder_recipients WHERE reminder_id = $1`, rem.ID); err != nil {
		return fmt.Errorf("clear recipients: %w", err)
	}
	if err := insertRecipients(ctx, tx, rem.ID, rem.Recipients); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// DeleteReminder removes a reminder and its recipient links.
func (r *Repository) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Info("reminder deleted", zap.String("reminder_id", id.String()))
	return nil
}

// TouchLastSent records when a reminder last produced a successful send.
// Advisory only: dispatch gating is ledger-based.
func (r *Repository) TouchLastSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Pool().Exec(ctx,
		`UPDATE reminders SET last_sent = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("update last_sent: %w", err)
	}
	return nil
}

// --- Messages (delivery ledger) ---

// CreateMessage appends a delivery record. Every send attempt creates a new
// row; there are no upsert-merge semantics.
func (r *Repository) CreateMessage(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (
			id, reminder_id, contact_id, phone, body, status,
			provider_message_id, sent_at, response
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		m.ID,
		m.ReminderID,
		m.ContactID,
		m.Phone,
		m.Body,
		m.Status,
		m.ProviderMessageID,
		m.SentAt,
		m.Response,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to create message",
			zap.Error(err),
			zap.String("message_id", m.ID.String()),
		)
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// WasSentSince reports whether a delivery record exists for the
// (reminder, contact) pair created at or after the given instant. Callers
// pass local midnight to get the per-day duplicate check.
func (r *Repository) WasSentSince(ctx context.Context, reminderID, contactID uuid.UUID, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE reminder_id = $1 AND contact_id = $2 AND created_at >= $3
		)
	`

	var exists bool
	err := r.db.Pool().QueryRow(ctx, query, reminderID, contactID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query message log: %w", err)
	}

	return exists, nil
}

// MessageDetail is a delivery record joined with display fields for the
// admin message log.
type MessageDetail struct {
	Message
	ContactName   string `json:"contact_name"`
	ReminderTitle string `json:"reminder_title"`
	Category      string `json:"category"`
}

const messageDetailQuery = `
	SELECT m.id, m.reminder_id, m.contact_id, m.phone, m.body, m.status,
		m.provider_message_id, m.sent_at, m.delivered_at, m.response,
		m.is_paid, m.created_at, m.updated_at,
		c.name, r.title, r.category
	FROM messages m
	JOIN contacts c ON c.id = m.contact_id
	JOIN reminders r ON r.id = m.reminder_id
`

func scanMessageDetail(rows pgx.Rows) (*MessageDetail, error) {
	var m MessageDetail
	err := rows.Scan(
		&m.ID,
		&m.ReminderID,
		&m.ContactID,
		&m.Phone,
		&m.Body,
		&m.Status,
		&m.ProviderMessageID,
		&m.SentAt,
		&m.DeliveredAt,
		&m.Response,
		&m.IsPaid,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.ContactName,
		&m.ReminderTitle,
		&m.Category,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages retrieves delivery records with pagination, newest first.
func (r *Repository) ListMessages(ctx context.Context, limit, offset int) ([]*MessageDetail, error) {
	query := messageDetailQuery + ` ORDER BY m.created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*MessageDetail
	for rows.Next() {
		m, err := scanMessageDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// ListMessagesForReminder retrieves all delivery records for one reminder.
func (r *Repository) ListMessagesForReminder(ctx context.Context, reminderID uuid.UUID) ([]*MessageDetail, error) {
	query := messageDetailQuery + ` WHERE m.reminder_id = $1 ORDER BY m.created_at DESC`

	rows, err := r.db.Pool().Query(ctx, query, reminderID)
	if err != nil {
		return nil, fmt.Errorf("query reminder messages: %w", err)
	}
	defer rows.Close()

	var messages []*MessageDetail
	for rows.Next() {
		m, err := scanMessageDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// CountMessages returns the total number of delivery records.
func (r *Repository) CountMessages(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return total, nil
}

// SetMessagePaid flips the manual paid flag on a delivery record.
func (r *Repository) SetMessagePaid(ctx context.Context, id uuid.UUID, paid bool) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE messages SET is_paid = $1, updated_at = NOW() WHERE id = $2`, paid, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DashboardStats summarizes the message log for the admin dashboard.
type DashboardStats struct {
	TotalSent       int64            `json:"total_sent"`
	TotalPaid       int64            `json:"total_paid"`
	PendingPayments int64            `json:"pending_payments"`
	RecentMessages  []*MessageDetail `json:"recent_messages"`
}

// GetDashboardStats computes the dashboard summary counts plus the five most
// recent delivery records.
func (r *Repository) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE is_paid),
			COUNT(*) FILTER (WHERE status = 'sent' AND NOT is_paid)
		FROM messages
	`
	err := r.db.Pool().QueryRow(ctx, query).Scan(
		&stats.TotalSent,
		&stats.TotalPaid,
		&stats.PendingPayments,
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	stats.RecentMessages, err = r.ListMessages(ctx, 5, 0)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
