// Package notify delivers best-effort security alerts to a Discord webhook.
// Delivery is asynchronous and failures are logged and swallowed; an alert
// must never affect the HTTP response that triggered it.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const httpTimeout = 3 * time.Second

// Notifier is the outbound alert sink consumed by the auth service and the
// abuse detector.
type Notifier interface {
	// LoginSuccess reports a successful dashboard login.
	LoginSuccess(username, ip string)
	// BanIssued reports that an address crossed the failure threshold.
	BanIssued(ip, reason string, attempts int64)
}

// Discord posts alerts to a Discord webhook URL.
type Discord struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewDiscord creates a Discord notifier. An empty webhook URL disables
// delivery entirely; callers can still construct and use the notifier.
func NewDiscord(webhookURL string, logger *slog.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// LoginSuccess sends a green embed with the username and source address.
func (d *Discord) LoginSuccess(username, ip string) {
	d.post(map[string]interface{}{
		"embeds": []map[string]interface{}{{
			"title": "Dashboard login",
			"color": 0x00ff00,
			"fields": []map[string]string{
				{"name": "User", "value": username},
				{"name": "IP", "value": ip},
				{"name": "Timestamp", "value": time.Now().UTC().Format(time.RFC3339)},
			},
		}},
	})
}

// BanIssued sends a plain alert message naming the banned address.
func (d *Discord) BanIssued(ip, reason string, attempts int64) {
	d.post(map[string]interface{}{
		"content": fmt.Sprintf("**Dashboard security alert**\nIP banned: %s (%d failed attempts)\n%s", ip, attempts, reason),
	})
}

// post dispatches the payload in a goroutine. The caller never awaits it.
func (d *Discord) post(payload map[string]interface{}) {
	if d.webhookURL == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			d.logger.Warn("discord webhook delivery failed", "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			d.logger.Warn("discord webhook rejected", "status", resp.StatusCode)
		}
	}()
}

// Close waits for in-flight deliveries, used on graceful shutdown and in tests.
func (d *Discord) Close() {
	d.wg.Wait()
}

// Nop is a Notifier that discards all alerts.
type Nop struct{}

func (Nop) LoginSuccess(string, string)        {}
func (Nop) BanIssued(string, string, int64)    {}
