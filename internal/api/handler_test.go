package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/db"
	"github.com/remindbot/remindbot/internal/dispatch"
	"github.com/remindbot/remindbot/internal/sms"
)

type fakeStore struct {
	contacts  map[uuid.UUID]*db.Contact
	reminders map[uuid.UUID]*db.Reminder
	messages  []*db.MessageDetail
	paid      map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contacts:  map[uuid.UUID]*db.Contact{},
		reminders: map[uuid.UUID]*db.Reminder{},
		paid:      map[uuid.UUID]bool{},
	}
}

func (f *fakeStore) CreateContact(ctx context.Context, c *db.Contact) error {
	f.contacts[c.ID] = c
	return nil
}

func (f *fakeStore) GetContact(ctx context.Context, id uuid.UUID) (*db.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListContacts(ctx context.Context) ([]*db.Contact, error) {
	out := make([]*db.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) UpdateContact(ctx context.Context, c *db.Contact) error {
	if _, ok := f.contacts[c.ID]; !ok {
		return db.ErrNotFound
	}
	f.contacts[c.ID] = c
	return nil
}

func (f *fakeStore) DeleteContact(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.contacts[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.contacts, id)
	return nil
}

func (f *fakeStore) CreateReminder(ctx context.Context, rem *db.Reminder) error {
	f.reminders[rem.ID] = rem
	return nil
}

func (f *fakeStore) GetReminder(ctx context.Context, id uuid.UUID) (*db.Reminder, error) {
	rem, ok := f.reminders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return rem, nil
}

func (f *fakeStore) ListReminders(ctx context.Context) ([]*db.Reminder, error) {
	out := make([]*db.Reminder, 0, len(f.reminders))
	for _, rem := range f.reminders {
		out = append(out, rem)
	}
	return out, nil
}

func (f *fakeStore) UpdateReminder(ctx context.Context, rem *db.Reminder) error {
	if _, ok := f.reminders[rem.ID]; !ok {
		return db.ErrNotFound
	}
	f.reminders[rem.ID] = rem
	return nil
}

func (f *fakeStore) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.reminders[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.reminders, id)
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, limit, offset int) ([]*db.MessageDetail, error) {
	return f.messages, nil
}

func (f *fakeStore) ListMessagesForReminder(ctx context.Context, reminderID uuid.UUID) ([]*db.MessageDetail, error) {
	return f.messages, nil
}

func (f *fakeStore) CountMessages(ctx context.Context) (int64, error) {
	return int64(len(f.messages)), nil
}

func (f *fakeStore) SetMessagePaid(ctx context.Context, id uuid.UUID, paid bool) error {
	if _, ok := f.paid[id]; !ok {
		return db.ErrNotFound
	}
	f.paid[id] = paid
	return nil
}

func (f *fakeStore) GetDashboardStats(ctx context.Context) (*db.DashboardStats, error) {
	return &db.DashboardStats{TotalSent: int64(len(f.messages))}, nil
}

type fakeDispatcher struct {
	processedRuns  int
	manualResult   *dispatch.ManualResult
	manualErr      error
	lastReminderID uuid.UUID
	lastContactIDs []uuid.UUID
}

func (f *fakeDispatcher) ProcessScheduled(ctx context.Context, now time.Time) (int, error) {
	f.processedRuns++
	return 3, nil
}

func (f *fakeDispatcher) SendManual(ctx context.Context, reminderID uuid.UUID, contactIDs []uuid.UUID, now time.Time) (*dispatch.ManualResult, error) {
	f.lastReminderID = reminderID
	f.lastContactIDs = contactIDs
	if f.manualErr != nil {
		return nil, f.manualErr
	}
	if f.manualResult != nil {
		return f.manualResult, nil
	}
	return &dispatch.ManualResult{SuccessCount: 1}, nil
}

type fakeSMS struct {
	result sms.Result
}

func (f *fakeSMS) Send(ctx context.Context, phone, text string) sms.Result { return f.result }
func (f *fakeSMS) Name() string                                            { return "fake" }

func newTestRouter(store *fakeStore, dispatcher *fakeDispatcher, gateway sms.Gateway) *chi.Mux {
	if gateway == nil {
		gateway = &fakeSMS{result: sms.Result{Success: true, MessageID: "m1"}}
	}
	h := NewHandler(zap.NewNop(), store, dispatcher, gateway, nil)

	r := chi.NewRouter()
	r.Post("/v1/contacts", h.CreateContact)
	r.Get("/v1/contacts", h.ListContacts)
	r.Get("/v1/contacts/{id}", h.GetContact)
	r.Put("/v1/contacts/{id}", h.UpdateContact)
	r.Delete("/v1/contacts/{id}", h.DeleteContact)
	r.Post("/v1/reminders", h.CreateReminder)
	r.Get("/v1/reminders/{id}", h.GetReminder)
	r.Post("/v1/reminders/{id}/send", h.SendReminder)
	r.Get("/v1/messages", h.ListMessages)
	r.Put("/v1/messages/{id}/paid", h.SetMessagePaid)
	r.Get("/v1/stats/dashboard", h.GetDashboardStats)
	r.Post("/v1/dispatch/run", h.TriggerDispatch)
	r.Post("/v1/sms/test", h.TestSMS)
	r.Get("/v1/sms/status", h.SMSStatus)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateContact(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, &fakeDispatcher{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/contacts", map[string]interface{}{
		"name":  "Sam",
		"phone": "+15550001111",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var contact db.Contact
	if err := json.Unmarshal(rec.Body.Bytes(), &contact); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !contact.IsActive {
		t.Error("new contacts default to active")
	}
	if contact.Prefs.Timezone == "" {
		t.Error("timezone should be defaulted")
	}
	if len(store.contacts) != 1 {
		t.Errorf("expected 1 stored contact, got %d", len(store.contacts))
	}
}

func TestCreateContact_Validation(t *testing.T) {
	router := newTestRouter(newFakeStore(), &fakeDispatcher{}, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"phone": "+15550001111"}},
		{"missing phone", map[string]interface{}{"name": "Sam"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/v1/contacts", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestGetContact_NotFound(t *testing.T) {
	router := newTestRouter(newFakeStore(), &fakeDispatcher{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/contacts/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateReminder_DefaultsApplied(t *testing.T) {
	store := newFakeStore()
	contact := &db.Contact{ID: uuid.New(), Name: "Sam", Phone: "+15550001111", IsActive: true}
	store.contacts[contact.ID] = contact

	router := newTestRouter(store, &fakeDispatcher{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/reminders", map[string]interface{}{
		"title":         "Rent",
		"message":       "Pay rent, {name}",
		"recipient_ids": []string{contact.ID.String()},
		"due_date":      "2024-03-01",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var rem db.Reminder
	if err := json.Unmarshal(rec.Body.Bytes(), &rem); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(rem.ReminderOffsets) != 4 {
		t.Errorf("expected default offsets, got %v", rem.ReminderOffsets)
	}
	if !rem.IsActive {
		t.Error("new reminders default to active")
	}
	if rem.DueDate == nil || rem.DueDate.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("due date not parsed: %v", rem.DueDate)
	}
	if rem.Category != "general" {
		t.Errorf("expected default category, got %q", rem.Category)
	}
}

func TestCreateReminder_Validation(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, &fakeDispatcher{}, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing title", map[string]interface{}{"message": "m", "recipient_ids": []string{uuid.NewString()}}},
		{"missing message", map[string]interface{}{"title": "t", "recipient_ids": []string{uuid.NewString()}}},
		{"no recipients", map[string]interface{}{"title": "t", "message": "m"}},
		{"unknown recipient", map[string]interface{}{"title": "t", "message": "m", "recipient_ids": []string{uuid.NewString()}}},
		{"bad due date", map[string]interface{}{"title": "t", "message": "m", "recipient_ids": []string{}, "due_date": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/v1/reminders", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSendReminder(t *testing.T) {
	dispatcher := &fakeDispatcher{manualResult: &dispatch.ManualResult{
		Results:      []dispatch.SendOutcome{{Contact: "Sam", Success: true}},
		SuccessCount: 1,
	}}
	router := newTestRouter(newFakeStore(), dispatcher, nil)

	remID := uuid.New()
	contactID := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/v1/reminders/"+remID.String()+"/send", map[string]interface{}{
		"contact_ids": []string{contactID.String()},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if dispatcher.lastReminderID != remID {
		t.Error("reminder id not forwarded to dispatcher")
	}
	if len(dispatcher.lastContactIDs) != 1 || dispatcher.lastContactIDs[0] != contactID {
		t.Errorf("contact filter not forwarded, got %v", dispatcher.lastContactIDs)
	}
}

func TestSendReminder_EmptyBody(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(newFakeStore(), dispatcher, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/reminders/"+uuid.NewString()+"/send", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("empty body should mean all recipients, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(dispatcher.lastContactIDs) != 0 {
		t.Errorf("expected no contact filter, got %v", dispatcher.lastContactIDs)
	}
}

func TestSendReminder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown reminder", dispatch.ErrReminderNotFound, http.StatusNotFound},
		{"no recipients", dispatch.ErrNoRecipients, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(newFakeStore(), &fakeDispatcher{manualErr: tt.err}, nil)

			rec := doJSON(t, router, http.MethodPost, "/v1/reminders/"+uuid.NewString()+"/send",
				map[string]interface{}{})
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}

			var errResp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if errResp.Status != tt.wantStatus {
				t.Errorf("problem body status %d != %d", errResp.Status, tt.wantStatus)
			}
		})
	}
}

func TestTriggerDispatch(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	router := newTestRouter(newFakeStore(), dispatcher, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/dispatch/run", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if dispatcher.processedRuns != 1 {
		t.Errorf("expected 1 run, got %d", dispatcher.processedRuns)
	}

	var body map[string]int
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["sent"] != 3 {
		t.Errorf("expected sent=3, got %d", body["sent"])
	}
}

func TestSetMessagePaid(t *testing.T) {
	store := newFakeStore()
	msgID := uuid.New()
	store.paid[msgID] = false

	router := newTestRouter(store, &fakeDispatcher{}, nil)

	rec := doJSON(t, router, http.MethodPut, "/v1/messages/"+msgID.String()+"/paid",
		map[string]interface{}{"is_paid": true})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !store.paid[msgID] {
		t.Error("message should be marked paid")
	}
}

func TestSetMessagePaid_NotFound(t *testing.T) {
	router := newTestRouter(newFakeStore(), &fakeDispatcher{}, nil)

	rec := doJSON(t, router, http.MethodPut, "/v1/messages/"+uuid.NewString()+"/paid",
		map[string]interface{}{"is_paid": true})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTestSMS(t *testing.T) {
	router := newTestRouter(newFakeStore(), &fakeDispatcher{}, &fakeSMS{result: sms.Result{Success: true, MessageID: "m1"}})

	rec := doJSON(t, router, http.MethodPost, "/v1/sms/test", map[string]interface{}{
		"phone": "+15550001111",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTestSMS_GatewayFailure(t *testing.T) {
	router := newTestRouter(newFakeStore(), &fakeDispatcher{}, &fakeSMS{result: sms.Result{Error: "down"}})

	rec := doJSON(t, router, http.MethodPost, "/v1/sms/test", map[string]interface{}{
		"phone": "+15550001111",
	})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestSMSStatus(t *testing.T) {
	router := newTestRouter(newFakeStore(), &fakeDispatcher{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/sms/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["provider"] != "fake" {
		t.Errorf("expected provider fake, got %v", body["provider"])
	}
}

func TestListMessages(t *testing.T) {
	store := newFakeStore()
	store.messages = []*db.MessageDetail{
		{Message: db.Message{ID: uuid.New(), Status: db.StatusSent}, ContactName: "Sam", ReminderTitle: "Rent"},
	}
	router := newTestRouter(store, &fakeDispatcher{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/messages?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 {
		t.Errorf("expected total 1, got %d", body.Total)
	}
}
