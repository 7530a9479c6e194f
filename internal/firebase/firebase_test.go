package firebase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingapp/internal/config"
	"weddingapp/internal/push"
)

func TestNewAppRequiresConfig(t *testing.T) {
	_, err := NewApp(context.Background(), config.FirebaseConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestWebMessage(t *testing.T) {
	s := NewSender(nil)
	m := s.webMessage("tok", push.Message{
		Title: "Muhurtham",
		Body:  "Starts in 30 minutes.",
		Link:  "/#schedule",
		Data:  map[string]string{"type": "event"},
	})

	assert.Equal(t, "tok", m.Token)
	assert.Equal(t, "Muhurtham", m.Notification.Title)
	require.NotNil(t, m.Webpush)
	assert.Equal(t, "/wedding-icon.png", m.Webpush.Notification.Icon)
	require.NotNil(t, m.Webpush.FCMOptions)
	assert.Equal(t, "/#schedule", m.Webpush.FCMOptions.Link)
	assert.Equal(t, "event", m.Data["type"])

	m = s.webMessage("tok", push.Message{Title: "No link"})
	assert.Nil(t, m.Webpush.FCMOptions)
}

func TestSendRejectsOversizedBatch(t *testing.T) {
	tokens := make([]string, push.MaxBatch+1)
	_, err := NewSender(nil).Send(context.Background(), tokens, push.Message{Title: "x"})
	assert.Error(t, err)

	rep, err := NewSender(nil).Send(context.Background(), nil, push.Message{Title: "x"})
	require.NoError(t, err)
	assert.Zero(t, rep.Sent)
}

func TestStoresWithoutClient(t *testing.T) {
	_, err := NewDocumentStore(nil).Add(context.Background(), "rsvps", map[string]any{"name": "A"})
	assert.Error(t, err)

	_, err = NewTokenStore(nil, "").List(context.Background())
	assert.Error(t, err)
}
