// Package memory is an in-process workbook backend used by tests and by the
// "memory" storage backend for local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/stemsi/listening-survey/internal/storeerr"
	"github.com/stemsi/listening-survey/internal/workbook"
)

// Book holds worksheets in memory. Handles returned by Open snapshot the
// worksheet list, like a remote document whose metadata was loaded once.
type Book struct {
	mu     sync.Mutex
	title  string
	sheets []*sheet
	opens  int

	openErr   error
	rowsErr   error
	appendErr error
	createErr error
}

type sheet struct {
	title   string
	headers []string
	rows    [][]string
}

func New(title string) *Book {
	return &Book{title: title}
}

// Seed adds a worksheet with the given header and raw rows.
func (b *Book) Seed(title string, headers []string, rows ...[]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &sheet{title: title, headers: append([]string(nil), headers...)}
	for _, r := range rows {
		s.rows = append(s.rows, append([]string(nil), r...))
	}
	b.sheets = append(b.sheets, s)
}

// FailOpen makes every Open fail with err until reset with nil.
func (b *Book) FailOpen(err error) { b.mu.Lock(); b.openErr = err; b.mu.Unlock() }

// FailRows makes every row read fail with err.
func (b *Book) FailRows(err error) { b.mu.Lock(); b.rowsErr = err; b.mu.Unlock() }

// FailAppend makes every append fail with err.
func (b *Book) FailAppend(err error) { b.mu.Lock(); b.appendErr = err; b.mu.Unlock() }

// FailCreate makes every worksheet creation fail with err.
func (b *Book) FailCreate(err error) { b.mu.Lock(); b.createErr = err; b.mu.Unlock() }

// Opens reports how many handles were opened.
func (b *Book) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// SheetCount counts worksheets titled title.
func (b *Book) SheetCount(title string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.sheets {
		if s.title == title {
			n++
		}
	}
	return n
}

// RawRows returns a copy of the data rows of the first worksheet titled title.
func (b *Book) RawRows(title string) [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sheets {
		if s.title == title {
			out := make([][]string, len(s.rows))
			for i, r := range s.rows {
				out[i] = append([]string(nil), r...)
			}
			return out
		}
	}
	return nil
}

func (b *Book) Open(ctx context.Context) (workbook.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrStorageRead, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &document{book: b, sheets: append([]*sheet(nil), b.sheets...)}, nil
}

type document struct {
	book   *Book
	sheets []*sheet
}

func (d *document) Title() string { return d.book.title }

func (d *document) Worksheets() []workbook.Worksheet {
	out := make([]workbook.Worksheet, 0, len(d.sheets))
	for _, s := range d.sheets {
		out = append(out, &worksheet{book: d.book, sheet: s})
	}
	return out
}

func (d *document) WorksheetByTitle(title string) (workbook.Worksheet, bool) {
	for _, s := range d.sheets {
		if s.title == title {
			return &worksheet{book: d.book, sheet: s}, true
		}
	}
	return nil, false
}

func (d *document) CreateWorksheet(ctx context.Context, title string, headers []string) (workbook.Worksheet, error) {
	b := d.book
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	for _, s := range b.sheets {
		if s.title == title {
			return nil, fmt.Errorf("%w: %q", storeerr.ErrWorksheetExists, title)
		}
	}
	s := &sheet{title: title, headers: append([]string(nil), headers...)}
	b.sheets = append(b.sheets, s)
	d.sheets = append(d.sheets, s)
	return &worksheet{book: b, sheet: s}, nil
}

type worksheet struct {
	book  *Book
	sheet *sheet
}

func (w *worksheet) Title() string { return w.sheet.title }

func (w *worksheet) Headers() []string { return append([]string(nil), w.sheet.headers...) }

func (w *worksheet) Rows(ctx context.Context) ([]workbook.Row, error) {
	w.book.mu.Lock()
	defer w.book.mu.Unlock()
	if w.book.rowsErr != nil {
		return nil, w.book.rowsErr
	}
	rows := make([]workbook.Row, 0, len(w.sheet.rows))
	for _, cells := range w.sheet.rows {
		rows = append(rows, workbook.RowFromCells(w.sheet.headers, cells))
	}
	return rows, nil
}

func (w *worksheet) AppendRow(ctx context.Context, values map[string]string) error {
	w.book.mu.Lock()
	defer w.book.mu.Unlock()
	if w.book.appendErr != nil {
		return w.book.appendErr
	}
	cells, err := workbook.CellsFromValues(w.sheet.headers, values)
	if err != nil {
		return err
	}
	w.sheet.rows = append(w.sheet.rows, cells)
	return nil
}
