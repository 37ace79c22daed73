package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/letinc/beacon/internal/pkg/httpretry"
)

// WebhookSink posts JSON to a web-app endpoint (an Apps Script deployment
// in production). It serves both as a batch sink and as the audit notifier
// for unsubscribe traffic.
type WebhookSink struct {
	client httpretry.HTTPDoer
	url    string
}

// NewWebhookSink creates a sink posting to webhookURL. A nil client gets
// the default retrying client with a 10s timeout.
func NewWebhookSink(webhookURL string, client httpretry.HTTPDoer) *WebhookSink {
	if client == nil {
		client = httpretry.New(&http.Client{Timeout: 10 * time.Second}, 2)
	}
	return &WebhookSink{client: client, url: webhookURL}
}

type webhookBatch struct {
	Table string     `json:"table"`
	Rows  [][]string `json:"rows"`
}

// Append posts one table's rows as a single JSON batch.
func (w *WebhookSink) Append(ctx context.Context, table string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	return w.post(ctx, table, webhookBatch{Table: table, Rows: rows})
}

// Post sends a standalone audit payload, e.g. an unsubscribe confirmation.
func (w *WebhookSink) Post(ctx context.Context, payload map[string]interface{}) error {
	return w.post(ctx, "", payload)
}

func (w *WebhookSink) post(ctx context.Context, table string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Table: table, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return &Error{Table: table, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &Error{Table: table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{
			Table:      table,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("webhook: %s", string(msg)),
		}
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
