package rsvp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"weddingapp/internal/config"
	"weddingapp/internal/model"
)

// Primary write statuses.
const (
	// StatusSent means the request was dispatched; nothing is known about
	// whether the row was stored.
	StatusSent      = "sent"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

const maxReplyBytes = 64 << 10

// PrimaryResult is the outcome of the spreadsheet write.
type PrimaryResult struct {
	Status string
	Err    error
}

// OK reports whether the submission counts as successful for the guest.
func (r PrimaryResult) OK() bool {
	return r.Status == StatusSent || r.Status == StatusConfirmed
}

// sheetsReply is what the Apps Script web app answers.
type sheetsReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SheetsWriter appends RSVP rows through the spreadsheet web app.
type SheetsWriter struct {
	url    string
	mode   string
	client *http.Client
}

// NewSheetsWriter creates a writer for url. mode is config.ModeAck or
// config.ModeBlind; anything else is treated as ack.
func NewSheetsWriter(url, mode string, client *http.Client) *SheetsWriter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if mode != config.ModeBlind {
		mode = config.ModeAck
	}
	return &SheetsWriter{url: url, mode: mode, client: client}
}

// Write posts rec as JSON.
//
// In blind mode any response counts as StatusSent; only transport errors
// fail. In ack mode the status must be 2xx and a JSON reply must carry
// status "success".
func (w *SheetsWriter) Write(ctx context.Context, rec model.RSVP) PrimaryResult {
	if w == nil || w.url == "" {
		return PrimaryResult{Status: StatusSkipped}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return PrimaryResult{Status: StatusFailed, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return PrimaryResult{Status: StatusFailed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return PrimaryResult{Status: StatusFailed, Err: fmt.Errorf("rsvp: post to sheets: %w", err)}
	}
	defer resp.Body.Close()

	if w.mode == config.ModeBlind {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
		return PrimaryResult{Status: StatusSent}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return PrimaryResult{Status: StatusFailed, Err: fmt.Errorf("rsvp: read sheets reply: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PrimaryResult{Status: StatusFailed, Err: fmt.Errorf("rsvp: sheets returned %s", resp.Status)}
	}

	var reply sheetsReply
	if json.Unmarshal(body, &reply) == nil && reply.Status != "" {
		if !strings.EqualFold(reply.Status, "success") {
			return PrimaryResult{Status: StatusFailed, Err: fmt.Errorf("rsvp: sheets rejected row: %s", reply.Message)}
		}
	}
	return PrimaryResult{Status: StatusConfirmed}
}
