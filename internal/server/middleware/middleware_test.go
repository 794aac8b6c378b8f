package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/service"
	"github.com/wardenhq/warden/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "", "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, body io.Reader) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestRequestID(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	// Generated when absent.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if captured == "" {
		t.Error("expected a generated request ID in context")
	}
	if rec.Header().Get("X-Request-ID") != captured {
		t.Error("response header and context ID differ")
	}

	// Propagated when supplied.
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if captured != "client-id-1" {
		t.Errorf("got request ID %q, want client-id-1", captured)
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		remoteAddr string
		want       string
	}{
		{"10.0.0.1:51234", "10.0.0.1"},
		{"10.0.0.1", "10.0.0.1"},
		{"[::1]:51234", "::1"},
		{"", "unknown"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tc.remoteAddr
		if got := ClientIP(r); got != tc.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tc.remoteAddr, got, tc.want)
		}
	}
}

func TestGateBlocksBannedAddress(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	detector := security.NewDetector(st, notify.Nop{}, testLogger(), 5, 15*time.Minute, time.Hour)
	gate := NewGate(st, detector, testLogger(), 10, 15*time.Minute)
	handler := gate.Handler(okHandler())

	until := time.Now().UTC().Add(time.Hour)
	if err := st.UpsertBan(ctx, "10.0.0.1", "test ban", &until); err != nil {
		t.Fatalf("UpsertBan: %v", err)
	}

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "10.0.0.1:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header on a bounded ban")
	}
	resp := decodeError(t, rec.Body)
	if resp.Error.Message != "IP address is banned" {
		t.Errorf("got message %q", resp.Error.Message)
	}

	// A clean address passes.
	req = httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "10.0.0.2:40000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("clean address: got status %d, want 200", rec.Code)
	}
}

func TestGateIgnoresExpiredBan(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	detector := security.NewDetector(st, notify.Nop{}, testLogger(), 5, 15*time.Minute, time.Hour)
	gate := NewGate(st, detector, testLogger(), 10, 15*time.Minute)
	handler := gate.Handler(okHandler())

	past := time.Now().UTC().Add(-time.Minute)
	if err := st.UpsertBan(ctx, "10.0.0.3", "stale ban", &past); err != nil {
		t.Fatalf("UpsertBan: %v", err)
	}

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "10.0.0.3:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expired ban: got status %d, want 200", rec.Code)
	}
}

func TestGateThrottlesHeavyTraffic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	detector := security.NewDetector(st, notify.Nop{}, testLogger(), 5, 15*time.Minute, time.Hour)
	gate := NewGate(st, detector, testLogger(), 3, 15*time.Minute)
	handler := gate.Handler(okHandler())

	username := "alice"
	for i := 0; i < 3; i++ {
		if err := st.RecordAttempt(ctx, &model.LoginAttempt{
			IPAddress: "10.0.0.4", Username: &username, Success: true, UserAgent: "test",
		}); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "10.0.0.4:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}

func TestGateFailsOpenOnStorageError(t *testing.T) {
	st := newTestStore(t)

	detector := security.NewDetector(st, notify.Nop{}, testLogger(), 5, 15*time.Minute, time.Hour)
	gate := NewGate(st, detector, testLogger(), 10, 15*time.Minute)
	handler := gate.Handler(okHandler())

	// A closed store makes every query fail; the gate must let traffic
	// through to the login flow, which fails closed on its own.
	st.Close()

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "10.0.0.5:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want 200 (fail open)", rec.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	admin := &model.Admin{Username: "alice", Email: "alice@example.com", PasswordHash: string(hash), IsActive: true}
	if err := st.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	detector := security.NewDetector(st, notify.Nop{}, testLogger(), 5, 15*time.Minute, time.Hour)
	authSvc := service.NewAuthService(st, detector, notify.Nop{}, testLogger(), "test-secret", time.Hour)

	token, _, err := authSvc.IssueSession(ctx, admin.ID, "10.0.0.6", "test")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	var principal *Principal
	handler := Authenticate(authSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No cookie.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: got status %d, want 401", rec.Code)
	}
	if msg := decodeError(t, rec.Body).Error.Message; msg != "Authentication required" {
		t.Errorf("got message %q", msg)
	}

	// Garbage cookie.
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "garbage"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage cookie: got status %d, want 401", rec.Code)
	}
	if msg := decodeError(t, rec.Body).Error.Message; msg != "Invalid session" {
		t.Errorf("got message %q", msg)
	}

	// Valid cookie.
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid cookie: got status %d, want 200", rec.Code)
	}
	if principal == nil || principal.Username != "alice" {
		t.Errorf("got principal %+v, want alice", principal)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := security.NewRateLimiter(2, time.Hour)
	defer limiter.Close()

	handler := RateLimit(limiter)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.7:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}
