package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTextbeltTestServer(t *testing.T, handler http.HandlerFunc) (*TextbeltGateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := NewTextbeltGateway(TextbeltConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, zap.NewNop())

	return gw, srv
}

func TestTextbeltGateway_SendSuccess(t *testing.T) {
	var gotPhone, gotMessage, gotKey string

	gw, _ := newTextbeltTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/text" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotPhone = r.PostFormValue("phone")
		gotMessage = r.PostFormValue("message")
		gotKey = r.PostFormValue("key")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "textId": 12345, "quotaRemaining": 40}`))
	})

	res := gw.Send(context.Background(), "+15550001111", "hello")

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.MessageID != "12345" {
		t.Errorf("expected message id 12345, got %q", res.MessageID)
	}
	if res.QuotaRemaining != 40 {
		t.Errorf("expected quota 40, got %d", res.QuotaRemaining)
	}
	if gotPhone != "+15550001111" || gotMessage != "hello" || gotKey != "test-key" {
		t.Errorf("form mismatch: phone=%q message=%q key=%q", gotPhone, gotMessage, gotKey)
	}
}

// Some deployments return textId as a JSON string rather than a number.
func TestTextbeltGateway_StringTextID(t *testing.T) {
	gw, _ := newTextbeltTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "textId": "abc-987", "quotaRemaining": 1}`))
	})

	res := gw.Send(context.Background(), "+15550001111", "hello")
	if res.MessageID != "abc-987" {
		t.Errorf("expected abc-987, got %q", res.MessageID)
	}
}

func TestTextbeltGateway_ProviderRejection(t *testing.T) {
	gw, _ := newTextbeltTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "Out of quota", "quotaRemaining": 0}`))
	})

	res := gw.Send(context.Background(), "+15550001111", "hello")

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "Out of quota" {
		t.Errorf("expected provider error, got %q", res.Error)
	}
}

func TestTextbeltGateway_RejectionWithoutErrorText(t *testing.T) {
	gw, _ := newTextbeltTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"success": false}`))
	})

	res := gw.Send(context.Background(), "+15550001111", "hello")

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "textbelt returned status 503" {
		t.Errorf("expected synthesized error, got %q", res.Error)
	}
}

func TestTextbeltGateway_TransportFailure(t *testing.T) {
	gw, srv := newTextbeltTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	res := gw.Send(context.Background(), "+15550001111", "hello")

	if res.Success {
		t.Fatal("expected failure after server close")
	}
	if res.Error == "" {
		t.Error("expected transport error text")
	}
}

func TestTextbeltGateway_MalformedResponse(t *testing.T) {
	gw, _ := newTextbeltTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	res := gw.Send(context.Background(), "+15550001111", "hello")

	if res.Success {
		t.Fatal("expected failure")
	}
}

func TestTextbeltGateway_Configured(t *testing.T) {
	withKey := NewTextbeltGateway(TextbeltConfig{APIKey: "k"}, zap.NewNop())
	if !withKey.Configured() {
		t.Error("gateway with key should be configured")
	}

	withoutKey := NewTextbeltGateway(TextbeltConfig{}, zap.NewNop())
	if withoutKey.Configured() {
		t.Error("gateway without key should not be configured")
	}
}

func TestLogGateway_Send(t *testing.T) {
	gw := NewLogGateway(zap.NewNop())

	res := gw.Send(context.Background(), "+15550001111", "hello")

	if !res.Success {
		t.Fatal("log gateway always succeeds")
	}
	if res.MessageID == "" {
		t.Error("log gateway should assign a message id")
	}
	if gw.Name() != "log" {
		t.Errorf("expected name log, got %q", gw.Name())
	}
}
