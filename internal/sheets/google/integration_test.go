//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"bilans/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_LedgerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" && os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" {
		t.Skip("service account not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g := core.MustGroup("Alice", "Bob")
	client, err := NewFromEnv(ctx, g)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	before, err := client.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	rec := core.TransactionRecord{
		ID:        uuid.NewString(),
		Kind:      core.KindExpense,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Actor:     "Alice",
		Amounts:   map[core.Participant]core.Money{"Alice": {}, "Bob": core.Cents(1)},
		Notes:     "integration test",
	}
	ref, err := client.Append(ctx, rec)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	t.Logf("appended at %s", ref)

	after, err := client.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected %d records, got %d", len(before)+1, len(after))
	}
	if last := after[len(after)-1]; last.ID != rec.ID {
		t.Errorf("last record is %s, want %s", last.ID, rec.ID)
	}
}
