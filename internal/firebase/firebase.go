// Package firebase connects the app to Firestore and Firebase Cloud
// Messaging with the Admin SDK.
package firebase

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"weddingapp/internal/config"
)

// ErrNotConfigured is returned by NewApp when neither a project id nor a
// credentials file is set.
var ErrNotConfigured = errors.New("firebase: not configured")

// App holds the Admin SDK clients the service uses.
type App struct {
	app       *firebase.App
	firestore *firestore.Client
	messaging *messaging.Client
}

// NewApp initializes the Admin SDK. With an empty credentials file the SDK
// falls back to application default credentials.
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*App, error) {
	if cfg.ProjectID == "" && cfg.CredentialsFile == "" {
		return nil, ErrNotConfigured
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}
	msg, err := app.Messaging(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &App{app: app, firestore: fs, messaging: msg}, nil
}

// Documents returns a document store over the app's Firestore client.
func (a *App) Documents() *DocumentStore {
	return NewDocumentStore(a.firestore)
}

// Tokens returns the push token registry kept in collection.
func (a *App) Tokens(collection string) *TokenStore {
	return NewTokenStore(a.firestore, collection)
}

// Sender returns an FCM sender.
func (a *App) Sender() *Sender {
	return NewSender(a.messaging)
}

func (a *App) Close() error {
	return a.firestore.Close()
}
