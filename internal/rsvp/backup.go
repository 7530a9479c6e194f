package rsvp

import (
	"context"
	"fmt"
)

// DocumentStore appends documents to a named collection. Implementations
// stamp each document with a server-side createdAt.
type DocumentStore interface {
	Add(ctx context.Context, collection string, doc map[string]any) (string, error)
}

// SecondaryResult is the outcome of the backup write.
type SecondaryResult struct {
	DocID   string
	Err     error
	Skipped bool
}

// BackupWriter stores a copy of every RSVP in the document store.
type BackupWriter struct {
	store      DocumentStore
	collection string
}

// NewBackupWriter creates a writer. A nil store disables backups.
func NewBackupWriter(store DocumentStore, collection string) *BackupWriter {
	if collection == "" {
		collection = "rsvps"
	}
	return &BackupWriter{store: store, collection: collection}
}

func (b *BackupWriter) Write(ctx context.Context, f Form) SecondaryResult {
	if b == nil || b.store == nil {
		return SecondaryResult{Skipped: true}
	}
	id, err := b.store.Add(ctx, b.collection, f.document())
	if err != nil {
		return SecondaryResult{Err: fmt.Errorf("rsvp: backup to %s: %w", b.collection, err)}
	}
	return SecondaryResult{DocID: id}
}
