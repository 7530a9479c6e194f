package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appLog "weddingapp/internal/log"
	"weddingapp/internal/metrics"
	"weddingapp/internal/model"
)

// MaxBatch is the FCM limit for a single SendEach call.
const MaxBatch = 500

// Message is a notification addressed to every registered device.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Link  string            `json:"link,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendReport is what a Sender returns for one batch. Invalid lists tokens
// the push service no longer accepts.
type SendReport struct {
	Sent    int
	Failed  int
	Invalid []string
}

// Sender delivers msg to at most MaxBatch tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) (SendReport, error)
}

// Summary totals a broadcast.
type Summary struct {
	Tokens  int `json:"tokens"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Invalid int `json:"invalid"`
}

// Broadcaster fans a message out to all stored tokens.
type Broadcaster struct {
	tokens TokenStore
	sender Sender
	batch  int
}

func NewBroadcaster(tokens TokenStore, sender Sender) *Broadcaster {
	return &Broadcaster{tokens: tokens, sender: sender, batch: MaxBatch}
}

// ErrNoSender is returned when push delivery is not configured.
var ErrNoSender = errors.New("push: delivery not configured")

// Broadcast sends msg to every distinct token. kind labels the metrics
// ("alert", "reminder", "custom"). A failed batch is counted as failed and
// the remaining batches are still attempted.
func (b *Broadcaster) Broadcast(ctx context.Context, kind string, msg Message) (Summary, error) {
	if b == nil || b.tokens == nil || b.sender == nil {
		return Summary{}, ErrNoSender
	}
	if strings.TrimSpace(msg.Title) == "" {
		return Summary{}, errors.New("push: message title is empty")
	}

	records, err := b.tokens.List(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("push: list tokens: %w", err)
	}
	tokens := make([]string, 0, len(records))
	for _, r := range records {
		tokens = append(tokens, r.Token)
	}
	tokens = dedupe(tokens)

	sum := Summary{Tokens: len(tokens)}
	var errs []error
	for start := 0; start < len(tokens); start += b.batch {
		end := min(start+b.batch, len(tokens))
		batch := tokens[start:end]

		rep, err := b.sender.Send(ctx, batch, msg)
		if err != nil {
			errs = append(errs, err)
			sum.Failed += len(batch)
			metrics.PushMessages.WithLabelValues(kind, "failed").Add(float64(len(batch)))
			continue
		}
		sum.Sent += rep.Sent
		sum.Failed += rep.Failed
		sum.Invalid += len(rep.Invalid)
		metrics.PushMessages.WithLabelValues(kind, "sent").Add(float64(rep.Sent))
		metrics.PushMessages.WithLabelValues(kind, "failed").Add(float64(rep.Failed))
	}

	appLog.Info("push broadcast done", "kind", kind, "title", msg.Title,
		"tokens", sum.Tokens, "sent", sum.Sent, "failed", sum.Failed, "invalid", sum.Invalid)
	return sum, errors.Join(errs...)
}

// dedupe drops empty and repeated tokens, keeping first-seen order.
func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// AlertMessage turns an urgent alert into a notification.
func AlertMessage(a model.Alert) Message {
	return Message{
		Title: a.Title,
		Body:  a.Body,
		Link:  "/#notifications",
		Data:  map[string]string{"type": "alert", "alert": a.ID},
	}
}

// AnnounceAlerts broadcasts each alert and returns how many broadcasts
// went out without error. Alerts without a title fall back to their id.
func (b *Broadcaster) AnnounceAlerts(ctx context.Context, list []model.Alert) int {
	ok := 0
	for _, a := range list {
		msg := AlertMessage(a)
		if strings.TrimSpace(msg.Title) == "" {
			msg.Title = a.ID
		}
		if _, err := b.Broadcast(ctx, "alert", msg); err != nil {
			appLog.Error("urgent alert broadcast failed", err, "id", a.ID)
			continue
		}
		ok++
	}
	return ok
}
