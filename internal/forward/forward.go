// Package forward mirrors newly ingested emergencies into a downstream
// collaborator. Forwarding is a best-effort side effect: it runs on its own
// goroutine with a bounded retry and never fails or delays the request that
// produced the record.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

const maxAttempts = 3

// Forwarder posts records to a configured URL. A nil Forwarder (no URL
// configured) is valid and skips silently.
type Forwarder struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a forwarder, or nil when url is empty.
func New(url string, timeout time.Duration, logger *slog.Logger) *Forwarder {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Forwarder{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send dispatches the record in the background. Failures are logged and
// swallowed; the caller never observes them.
func (f *Forwarder) Send(rec model.EmergencyRecord) {
	if f == nil {
		return
	}
	go f.send(rec)
}

func (f *Forwarder) send(rec model.EmergencyRecord) {
	body, err := json.Marshal(rec)
	if err != nil {
		f.logger.Warn("forward: marshal record", "id", rec.ID, "error", err)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = f.post(body); lastErr == nil {
			return
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	f.logger.Warn("forward: giving up", "id", rec.ID, "attempts", maxAttempts, "error", lastErr)
}

func (f *Forwarder) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("forward: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("forward: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("forward: status %d", resp.StatusCode)
	}
	return nil
}
