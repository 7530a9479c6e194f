package firebase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"weddingapp/internal/model"
)

// CreatedAtField is set to the server timestamp on every added document.
const CreatedAtField = "createdAt"

// DocumentStore appends documents to Firestore collections.
type DocumentStore struct {
	client *firestore.Client
}

func NewDocumentStore(client *firestore.Client) *DocumentStore {
	return &DocumentStore{client: client}
}

// Add stores a copy of doc with createdAt set by the server and returns
// the generated document id.
func (s *DocumentStore) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("firebase: firestore unavailable")
	}
	data := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		data[k] = v
	}
	data[CreatedAtField] = firestore.ServerTimestamp

	ref, _, err := s.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("firestore add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

// tokenDoc is the stored shape of a push token.
type tokenDoc struct {
	Token     string    `firestore:"token"`
	UserAgent string    `firestore:"userAgent"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// TokenStore keeps push tokens in a Firestore collection.
type TokenStore struct {
	docs       *DocumentStore
	collection string
}

func NewTokenStore(client *firestore.Client, collection string) *TokenStore {
	if collection == "" {
		collection = "notification_tokens"
	}
	return &TokenStore{docs: NewDocumentStore(client), collection: collection}
}

// Save appends t. Tokens are not deduplicated on write.
func (s *TokenStore) Save(ctx context.Context, t model.Token) error {
	_, err := s.docs.Add(ctx, s.collection, map[string]any{
		"token":     t.Token,
		"userAgent": t.UserAgent,
	})
	return err
}

// List returns every stored token, oldest first.
func (s *TokenStore) List(ctx context.Context) ([]model.Token, error) {
	if s.docs.client == nil {
		return nil, errors.New("firebase: firestore unavailable")
	}
	iter := s.docs.client.Collection(s.collection).OrderBy(CreatedAtField, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []model.Token
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list %s: %w", s.collection, err)
		}
		var d tokenDoc
		if err := snap.DataTo(&d); err != nil {
			continue
		}
		out = append(out, model.Token{Token: d.Token, UserAgent: d.UserAgent, CreatedAt: d.CreatedAt})
	}
	return out, nil
}
