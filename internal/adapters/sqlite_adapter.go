package adapters

import (
	"context"
	"log/slog"

	"bilans/internal/core"
	"bilans/internal/sheets"
	"bilans/internal/storage"
)

// Publisher announces records that reached the primary store.
type Publisher interface {
	PublishRecordAppended(ctx context.Context, id string, kind core.Kind) error
}

// SQLiteAdapter makes the SQLite repository the ledger and tells the sync
// worker about every new record so it can be mirrored to Google Sheets.
type SQLiteAdapter struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
}

var (
	_ sheets.Ledger       = (*SQLiteAdapter)(nil)
	_ sheets.RecordFinder = (*SQLiteAdapter)(nil)
)

// NewSQLiteAdapter wires the repository to an optional publisher; a nil
// publisher disables mirroring.
func NewSQLiteAdapter(storage *storage.SQLiteRepository, publisher Publisher) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage:   storage,
		publisher: publisher,
	}
}

// Append saves the record locally first, then publishes. A publish failure
// is logged and never fails the append: the pending-sync sweep of the
// worker picks the record up later.
func (a *SQLiteAdapter) Append(ctx context.Context, r core.TransactionRecord) (string, error) {
	id, err := a.storage.Append(ctx, r)
	if err != nil {
		return "", err
	}

	if a.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping sync message", "id", id)
		return id, nil
	}
	if err := a.publisher.PublishRecordAppended(ctx, id, r.Kind); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
	return id, nil
}

func (a *SQLiteAdapter) ReadAll(ctx context.Context) ([]core.TransactionRecord, error) {
	return a.storage.ReadAll(ctx)
}

func (a *SQLiteAdapter) GetRecord(ctx context.Context, id string) (core.TransactionRecord, error) {
	return a.storage.GetRecord(ctx, id)
}

func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}
