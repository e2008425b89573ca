// Package xlsx keeps the ledger in a local Excel workbook laid out like the
// shared Google sheet, so the file can be opened and audited by hand.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"bilans/internal/core"
	"bilans/internal/sheets"
)

const defaultSheet = "Ledger"

type Store struct {
	path  string
	sheet string
	group core.Group

	mu sync.Mutex
}

var _ sheets.Ledger = (*Store)(nil)

// New returns a store backed by the workbook at path. The file is created
// on first append.
func New(path, sheet string, g core.Group) *Store {
	if sheet == "" {
		sheet = defaultSheet
	}
	return &Store{path: path, sheet: sheet, group: g}
}

// Append writes r on the row below the last used one and saves the workbook.
func (s *Store) Append(_ context.Context, r core.TransactionRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", s.sheet, err)
	}

	// The header is the first non-blank row, as DecodeRows reads it.
	headerRow := 0
	for headerRow < len(rows) && sheets.IsBlank(rows[headerRow]) {
		headerRow++
	}
	var header []string
	if headerRow < len(rows) {
		header = rows[headerRow]
	} else {
		headerRow = 0
	}
	layout, extended, err := sheets.NewLayout(header, s.group)
	if err != nil {
		return "", fmt.Errorf("sheet %s: %w", s.sheet, err)
	}
	if extended {
		if err := setRow(f, s.sheet, headerRow+1, layout.Header()); err != nil {
			return "", err
		}
	}

	n := len(rows) + 1
	if n <= headerRow+1 {
		n = headerRow + 2
	}
	if err := setRow(f, s.sheet, n, layout.Encode(r)); err != nil {
		return "", err
	}
	if err := f.SaveAs(s.path); err != nil {
		return "", fmt.Errorf("save %s: %w", s.path, err)
	}
	return fmt.Sprintf("%s!A%d", s.sheet, n), nil
}

// ReadAll decodes every row of the ledger sheet. A missing workbook is an
// empty ledger.
func (s *Store) ReadAll(_ context.Context) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", s.sheet, err)
	}
	records, err := sheets.DecodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

// open loads the workbook, creating it with a single ledger sheet when the
// file does not exist yet.
func (s *Store) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		f := excelize.NewFile()
		if err := f.SetSheetName("Sheet1", s.sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", s.sheet, err)
		}
		return f, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	if idx, err := f.GetSheetIndex(s.sheet); err != nil || idx < 0 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", s.sheet, err)
		}
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := sheets.Cells(values)
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}
