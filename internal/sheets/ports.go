package sheets

import (
	"context"
	"errors"

	"bilans/internal/core"
)

// ErrRecordNotFound is returned by finders when no record has the given ID.
var ErrRecordNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	// RecordWriter appends one record at the end of the ledger. rowRef is an
	// adapter specific locator of the written row (sheet range, row id).
	RecordWriter interface {
		Append(ctx context.Context, r core.TransactionRecord) (rowRef string, err error)
	}

	// RecordReader returns every record in append order.
	RecordReader interface {
		ReadAll(ctx context.Context) ([]core.TransactionRecord, error)
	}

	Ledger interface {
		RecordWriter
		RecordReader
	}

	// RecordFinder looks up a single record by ID.
	RecordFinder interface {
		GetRecord(ctx context.Context, id string) (core.TransactionRecord, error)
	}
)
