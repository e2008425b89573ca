package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bilans/internal/amqp"
	"bilans/internal/core"
	"bilans/internal/metrics"
	"bilans/internal/sheets"
	"bilans/internal/storage"
)

// Source is the primary store records are mirrored from.
type Source interface {
	sheets.RecordFinder
	GetPendingSync(ctx context.Context, limit int) ([]string, error)
	SyncStatus(ctx context.Context, id string) (string, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker mirrors records from SQLite to the Google sheet.
type SyncWorker struct {
	source    Source
	mirror    sheets.Ledger
	batchSize int
	metrics   *metrics.Recorder
}

type Option func(*SyncWorker)

// WithMetrics counts mirrored and failed records.
func WithMetrics(m *metrics.Recorder) Option {
	return func(w *SyncWorker) { w.metrics = m }
}

func NewSyncWorker(source Source, mirror sheets.Ledger, batchSize int, opts ...Option) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	w := &SyncWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// HandleRecordAppended processes a single RecordAppended message from AMQP.
// Redelivered messages for records already mirrored are acknowledged
// without writing a second row.
func (w *SyncWorker) HandleRecordAppended(ctx context.Context, msg *amqp.RecordAppendedMessage) error {
	slog.InfoContext(ctx, "Processing record appended message", "id", msg.ID, "kind", msg.Kind)

	status, err := w.source.SyncStatus(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get sync status: %w", err)
	}
	if status == storage.SyncSynced {
		slog.InfoContext(ctx, "Record already mirrored, skipping", "id", msg.ID)
		return nil
	}

	rec, err := w.source.GetRecord(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}
	if err := w.syncRecord(ctx, rec); err != nil {
		return fmt.Errorf("sync record to sheets: %w", err)
	}
	return nil
}

// ProcessPending mirrors up to one batch of records that have not been
// synced yet. It backs up lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck reconciles the mirror with SQLite at worker start.
// Pending records whose ID is already in the sheet, for example after a
// crash between the append and the bookkeeping update, are only marked as
// synced; the rest are appended.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	var (
		pending  []string
		mirrored []core.TransactionRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := w.source.GetPendingSync(gctx, w.batchSize*5)
		if err != nil {
			return fmt.Errorf("get pending records for startup check: %w", err)
		}
		pending = ids
		return nil
	})
	g.Go(func() error {
		recs, err := w.mirror.ReadAll(gctx)
		if err != nil {
			return fmt.Errorf("read mirror for startup check: %w", err)
		}
		mirrored = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
		return nil
	}

	inMirror := make(map[string]struct{}, len(mirrored))
	for _, r := range mirrored {
		if r.ID != "" {
			inMirror[r.ID] = struct{}{}
		}
	}

	slog.InfoContext(ctx, "Found pending records on startup, processing...", "count", len(pending))

	var synced, reconciled, failed int
	for _, id := range pending {
		if _, ok := inMirror[id]; ok {
			if err := w.source.MarkSynced(ctx, id); err != nil {
				slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
				failed++
				continue
			}
			reconciled++
			continue
		}
		if err := w.syncByID(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync record during startup", "id", id, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"reconciled", reconciled,
		"errors", failed)
	return nil
}

// RunPendingSweep calls ProcessPending every interval until ctx is done.
func (w *SyncWorker) RunPendingSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	ids, err := w.source.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(ids))
	for _, id := range ids {
		if err := w.syncByID(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync record", "id", id, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncByID(ctx context.Context, id string) error {
	rec, err := w.source.GetRecord(ctx, id)
	if err != nil {
		if markErr := w.source.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("get record: %w", err)
	}
	return w.syncRecord(ctx, rec)
}

func (w *SyncWorker) syncRecord(ctx context.Context, rec core.TransactionRecord) error {
	ref, err := w.mirror.Append(ctx, rec)
	if err != nil {
		w.metrics.RecordSynced("error")
		if markErr := w.source.MarkSyncError(ctx, rec.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", rec.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	w.metrics.RecordSynced("ok")

	// The row is written; a bookkeeping failure only means a later
	// startup check will reconcile it.
	if err := w.source.MarkSynced(ctx, rec.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", rec.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced record",
		"id", rec.ID,
		"kind", rec.Kind,
		"sheets_ref", ref)
	return nil
}
