package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bilans/internal/core"
	"bilans/internal/sheets"

	_ "modernc.org/sqlite"
)

// Sync states of a record with respect to the Google Sheets mirror.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ sheets.Ledger       = (*SQLiteRepository)(nil)
	_ sheets.RecordFinder = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps appends serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append stores the record and its amounts in one transaction and returns
// the record ID. Records without an ID get a fresh one.
func (r *SQLiteRepository) Append(ctx context.Context, rec core.TransactionRecord) (string, error) {
	if !rec.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKind, rec.Kind)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, kind, created_at, actor, notes) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Timestamp.UTC().Format(time.RFC3339Nano), string(rec.Actor), rec.Notes)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	for p, m := range rec.Amounts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO record_amounts (record_id, participant, amount_cents) VALUES (?, ?, ?)`,
			rec.ID, string(p), m.Cents)
		if err != nil {
			return "", fmt.Errorf("insert amount for %s: %w", p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", rec.ID,
		"kind", rec.Kind,
		"actor", rec.Actor,
		"total_cents", rec.Total().Cents)

	return rec.ID, nil
}

// ReadAll returns every record in insertion order.
func (r *SQLiteRepository) ReadAll(ctx context.Context) ([]core.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, created_at, actor, notes FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionRecord
	byID := make(map[string]int)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		byID[rec.ID] = len(out)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}

	amounts, err := r.db.QueryContext(ctx,
		`SELECT record_id, participant, amount_cents FROM record_amounts`)
	if err != nil {
		return nil, fmt.Errorf("query amounts: %w", err)
	}
	defer amounts.Close()

	for amounts.Next() {
		var (
			id, participant string
			cents           int64
		)
		if err := amounts.Scan(&id, &participant, &cents); err != nil {
			return nil, fmt.Errorf("scan amount: %w", err)
		}
		if i, ok := byID[id]; ok {
			out[i].Amounts[core.Participant(participant)] = core.Money{Cents: cents}
		}
	}
	if err := amounts.Err(); err != nil {
		return nil, fmt.Errorf("iterate amounts: %w", err)
	}
	return out, nil
}

// GetRecord retrieves a single record by ID.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (core.TransactionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, created_at, actor, notes FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TransactionRecord{}, fmt.Errorf("get record %s: %w", id, sheets.ErrRecordNotFound)
	}
	if err != nil {
		return core.TransactionRecord{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT participant, amount_cents FROM record_amounts WHERE record_id = ?`, id)
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("query amounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			participant string
			cents       int64
		)
		if err := rows.Scan(&participant, &cents); err != nil {
			return core.TransactionRecord{}, fmt.Errorf("scan amount: %w", err)
		}
		rec.Amounts[core.Participant(participant)] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return core.TransactionRecord{}, fmt.Errorf("iterate amounts: %w", err)
	}
	return rec, nil
}

// GetPendingSync returns the IDs of records not yet mirrored to Google
// Sheets, oldest first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM records WHERE sync_status != ? ORDER BY seq LIMIT ?`, SyncSynced, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkSynced marks a record as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, SyncSynced); err != nil {
		return fmt.Errorf("mark record synced: %w", err)
	}
	slog.InfoContext(ctx, "Record marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a record whose mirroring failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return fmt.Errorf("mark record sync error: %w", err)
	}
	slog.WarnContext(ctx, "Record marked with sync error", "id", id)
	return nil
}

// SyncStatus returns the mirror state of a record.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM records WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sheets.ErrRecordNotFound
	}
	return status, err
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id, status string) error {
	var syncedAt any
	if status == SyncSynced {
		syncedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_status = ?, synced_at = ? WHERE id = ?`, status, syncedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sheets.ErrRecordNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (core.TransactionRecord, error) {
	var (
		rec       core.TransactionRecord
		kind      string
		createdAt string
		actor     string
	)
	if err := s.Scan(&rec.ID, &kind, &createdAt, &actor, &rec.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan record: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rec, fmt.Errorf("record %s: parse created_at %q: %w", rec.ID, createdAt, err)
	}
	rec.Kind = core.Kind(kind)
	rec.Timestamp = ts
	rec.Actor = core.Participant(actor)
	rec.Amounts = make(map[core.Participant]core.Money)
	return rec, nil
}
