package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"bilans/internal/core"
	ports "bilans/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Ledger"

// Client stores the ledger in one tab of a Google spreadsheet, one row per
// record, with a header row naming the participant columns.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	group         core.Group

	mu     sync.Mutex
	layout *ports.Layout
}

// Ensure interface conformance
var _ ports.Ledger = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string, g core.Group) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = defaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName, group: g}
}

// NewFromConfig creates a Sheets client authenticated with a service account.
// Extra options are passed to the Sheets service after the credentials.
func NewFromConfig(ctx context.Context, cfg Config, g core.Group, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, cfg.SpreadsheetID, cfg.SheetName, g), nil
}

// NewFromEnv reads the configuration from the environment.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Ledger"), GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, g core.Group) (*Client, error) {
	return NewFromConfig(ctx, Config{
		SpreadsheetID:      strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:          strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		ServiceAccountJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		ServiceAccountFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}, g)
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config, extra ...goption.ClientOption) (*gsheet.Service, error) {
	serviceAccountJSON := cfg.ServiceAccountJSON
	serviceAccountFile := cfg.ServiceAccountFile
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	opts := append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, extra...)
	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Append writes r as a new row below the last one. The whole row goes out
// in a single values.append call so a failed request leaves no partial row.
func (c *Client) Append(ctx context.Context, r core.TransactionRecord) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	layout, err := c.ensureHeader(ctx)
	if err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: [][]any{ports.Cells(layout.Encode(r))}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A1"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return c.sheetName, nil
}

// ReadAll reads the whole tab and decodes every row below the header.
func (c *Client) ReadAll(ctx context.Context) ([]core.TransactionRecord, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.a1("")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = ports.CellStrings(row)
	}
	records, err := ports.DecodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.sheetName, err)
	}
	return records, nil
}

// ensureHeader maps the tab's title row onto the group, writing it when the
// tab is empty or lacks the Kind and ID columns. The layout is cached for
// the life of the client.
func (c *Client) ensureHeader(ctx context.Context) (ports.Layout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layout != nil {
		return *c.layout, nil
	}

	rng := c.a1("1:1")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return ports.Layout{}, fmt.Errorf("read header %s: %w", rng, err)
	}
	var header []string
	if len(resp.Values) > 0 {
		header = ports.CellStrings(resp.Values[0])
	}
	layout, extended, err := ports.NewLayout(header, c.group)
	if err != nil {
		return ports.Layout{}, fmt.Errorf("sheet %s: %w", c.sheetName, err)
	}
	if extended {
		vr := &gsheet.ValueRange{Values: [][]any{ports.Cells(layout.Header())}}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.a1("A1"), vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return ports.Layout{}, fmt.Errorf("write header to sheet %s: %w", c.sheetName, err)
		}
		slog.InfoContext(ctx, "Wrote ledger header", "sheet", c.sheetName, "participants", c.group.String())
	}
	c.layout = &layout
	return layout, nil
}

// a1 builds an A1 range on the ledger tab, quoting the tab name when needed.
func (c *Client) a1(cells string) string {
	name := c.sheetName
	if strings.ContainsAny(name, " '!:") {
		name = "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	if cells == "" {
		return name
	}
	return name + "!" + cells
}
