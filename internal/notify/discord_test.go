package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// webhookRecorder is a fake Discord endpoint capturing posted payloads.
type webhookRecorder struct {
	mu       sync.Mutex
	payloads []map[string]interface{}
}

func (w *webhookRecorder) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		w.mu.Lock()
		w.payloads = append(w.payloads, payload)
		w.mu.Unlock()
		rw.WriteHeader(http.StatusNoContent)
	}
}

func (w *webhookRecorder) all() []map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]map[string]interface{}(nil), w.payloads...)
}

func TestDiscordLoginSuccess(t *testing.T) {
	rec := &webhookRecorder{}
	ts := httptest.NewServer(rec.handler())
	defer ts.Close()

	d := NewDiscord(ts.URL, testLogger())
	d.LoginSuccess("alice", "10.0.0.1")
	d.Close()

	payloads := rec.all()
	if len(payloads) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(payloads))
	}
	embeds, ok := payloads[0]["embeds"].([]interface{})
	if !ok || len(embeds) != 1 {
		t.Fatalf("expected one embed, got %v", payloads[0])
	}
}

func TestDiscordBanIssued(t *testing.T) {
	rec := &webhookRecorder{}
	ts := httptest.NewServer(rec.handler())
	defer ts.Close()

	d := NewDiscord(ts.URL, testLogger())
	d.BanIssued("10.0.0.2", "too many failed login attempts: 5", 5)
	d.Close()

	payloads := rec.all()
	if len(payloads) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(payloads))
	}
	content, _ := payloads[0]["content"].(string)
	if !strings.Contains(content, "10.0.0.2") {
		t.Errorf("alert does not name the address: %q", content)
	}
	if !strings.Contains(content, "5 failed attempts") {
		t.Errorf("alert does not name the count: %q", content)
	}
}

func TestDiscordDisabledWithoutURL(t *testing.T) {
	d := NewDiscord("", testLogger())
	d.LoginSuccess("alice", "10.0.0.3")
	d.BanIssued("10.0.0.3", "x", 5)
	d.Close() // nothing in flight, returns immediately
}

func TestDiscordSwallowsDeliveryFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	d := NewDiscord(ts.URL, testLogger())
	d.LoginSuccess("alice", "10.0.0.4")
	d.Close() // must not panic or block
}
