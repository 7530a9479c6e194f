package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"weddingapp/internal/push"
)

// Sender delivers web push notifications through FCM.
type Sender struct {
	client *messaging.Client
	icon   string
}

func NewSender(client *messaging.Client) *Sender {
	return &Sender{client: client, icon: "/wedding-icon.png"}
}

// Send sends msg to each token with SendEach. Tokens FCM reports as
// unregistered or malformed are returned as invalid.
func (s *Sender) Send(ctx context.Context, tokens []string, msg push.Message) (push.SendReport, error) {
	if len(tokens) == 0 {
		return push.SendReport{}, nil
	}
	if len(tokens) > push.MaxBatch {
		return push.SendReport{}, fmt.Errorf("batch size exceeds FCM limit of %d", push.MaxBatch)
	}

	messages := make([]*messaging.Message, 0, len(tokens))
	for _, t := range tokens {
		messages = append(messages, s.webMessage(t, msg))
	}

	resp, err := s.client.SendEach(ctx, messages)
	if err != nil {
		return push.SendReport{}, fmt.Errorf("error sending batch: %w", err)
	}

	rep := push.SendReport{Sent: resp.SuccessCount, Failed: resp.FailureCount}
	for i, r := range resp.Responses {
		if r.Success || r.Error == nil {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			rep.Invalid = append(rep.Invalid, tokens[i])
		}
	}
	return rep, nil
}

func (s *Sender) webMessage(token string, msg push.Message) *messaging.Message {
	m := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: msg.Title,
				Body:  msg.Body,
				Icon:  s.icon,
			},
		},
	}
	if msg.Link != "" {
		m.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: msg.Link}
	}
	return m
}
