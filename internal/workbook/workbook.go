// Package workbook maps logical collections onto the worksheets of a single
// remote spreadsheet document.
//
// A Provider opens a fresh Document handle per call. Nothing is cached across
// calls: every operation sees the document as the backend reports it when the
// handle is opened, and consistency between concurrent writers is left to the
// backend's row-append semantics.
package workbook

import (
	"context"
	"fmt"

	"github.com/stemsi/listening-survey/internal/storeerr"
)

// QuestionnairesTitle is the shared worksheet holding questionnaire definitions.
const QuestionnairesTitle = "questionnaires"

// Header schemas of the two worksheet shapes.
var (
	QuestionnaireHeaders = []string{"id", "data"}
	ResponseHeaders      = []string{"timestamp", "qid", "tid", "data"}
)

// Provider opens the deployment's document. Each call is one backend round trip.
type Provider interface {
	Open(ctx context.Context) (Document, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Document, error)

func (f ProviderFunc) Open(ctx context.Context) (Document, error) { return f(ctx) }

// Document is a loaded handle on the remote workbook. The worksheet list is
// the one loaded at open time.
type Document interface {
	Title() string
	Worksheets() []Worksheet
	WorksheetByTitle(title string) (Worksheet, bool)
	CreateWorksheet(ctx context.Context, title string, headers []string) (Worksheet, error)
}

// Worksheet is a named grid whose first row is the header.
type Worksheet interface {
	Title() string
	Headers() []string
	Rows(ctx context.Context) ([]Row, error)
	AppendRow(ctx context.Context, values map[string]string) error
}

// Row is a data row keyed by header column.
type Row map[string]string

// Get returns the cell under column, or "" when the row has no such cell.
func (r Row) Get(column string) string {
	return r[column]
}

// RowFromCells zips cells with headers. Short rows leave trailing columns
// absent; cells beyond the header are dropped.
func RowFromCells(headers, cells []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		if h == "" || i >= len(cells) {
			continue
		}
		row[h] = cells[i]
	}
	return row
}

// CellsFromValues orders values by headers for an append. A key that is not
// a header column is rejected so no value is silently dropped.
func CellsFromValues(headers []string, values map[string]string) ([]string, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}
	cells := make([]string, len(headers))
	for k, v := range values {
		i, ok := index[k]
		if !ok {
			return nil, fmt.Errorf("%w: column %q is not in the header", storeerr.ErrStorageWrite, k)
		}
		cells[i] = v
	}
	return cells, nil
}
