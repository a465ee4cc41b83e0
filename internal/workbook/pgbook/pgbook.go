// Package pgbook stores worksheets in PostgreSQL with the same semantics as
// the Google Sheets backend: titled grids, a fixed header per grid and
// append-only rows kept in insertion order.
package pgbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/listening-survey/internal/storeerr"
	"github.com/stemsi/listening-survey/internal/workbook"
)

// Provider opens the workbook named name. Schema comes from migrations/.
type Provider struct {
	pool *pgxpool.Pool
	name string
}

func NewProvider(pool *pgxpool.Pool, name string) *Provider {
	return &Provider{pool: pool, name: name}
}

func (p *Provider) Open(ctx context.Context) (workbook.Document, error) {
	doc := &document{pool: p.pool, name: p.name}

	err := p.pool.QueryRow(ctx, `SELECT title FROM workbooks WHERE name = $1`, p.name).Scan(&doc.title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: workbook %q does not exist", storeerr.ErrConfiguration, p.name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load workbook: %v", storeerr.ErrStorageRead, err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, title, headers FROM worksheets WHERE workbook = $1 ORDER BY id ASC`, p.name)
	if err != nil {
		return nil, fmt.Errorf("%w: list worksheets: %v", storeerr.ErrStorageRead, err)
	}
	defer rows.Close()

	for rows.Next() {
		ws := &worksheet{pool: p.pool}
		if err := rows.Scan(&ws.id, &ws.title, &ws.headers); err != nil {
			return nil, fmt.Errorf("%w: scan worksheet: %v", storeerr.ErrStorageRead, err)
		}
		doc.sheets = append(doc.sheets, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list worksheets: %v", storeerr.ErrStorageRead, err)
	}
	return doc, nil
}

type document struct {
	pool   *pgxpool.Pool
	name   string
	title  string
	sheets []*worksheet
}

func (d *document) Title() string { return d.title }

func (d *document) Worksheets() []workbook.Worksheet {
	out := make([]workbook.Worksheet, len(d.sheets))
	for i, ws := range d.sheets {
		out[i] = ws
	}
	return out
}

func (d *document) WorksheetByTitle(title string) (workbook.Worksheet, bool) {
	for _, ws := range d.sheets {
		if ws.title == title {
			return ws, true
		}
	}
	return nil, false
}

// CreateWorksheet relies on the (workbook, title) unique key: the loser of a
// concurrent creation gets ErrWorksheetExists.
func (d *document) CreateWorksheet(ctx context.Context, title string, headers []string) (workbook.Worksheet, error) {
	ws := &worksheet{pool: d.pool, title: title, headers: append([]string(nil), headers...)}
	err := d.pool.QueryRow(ctx, `
		INSERT INTO worksheets (workbook, title, headers)
		VALUES ($1, $2, $3)
		ON CONFLICT (workbook, title) DO NOTHING
		RETURNING id`, d.name, title, ws.headers).Scan(&ws.id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", storeerr.ErrWorksheetExists, title)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create worksheet: %v", storeerr.ErrStorageWrite, err)
	}
	d.sheets = append(d.sheets, ws)
	return ws, nil
}

type worksheet struct {
	pool    *pgxpool.Pool
	id      int64
	title   string
	headers []string
}

func (w *worksheet) Title() string { return w.title }

func (w *worksheet) Headers() []string { return append([]string(nil), w.headers...) }

func (w *worksheet) Rows(ctx context.Context) ([]workbook.Row, error) {
	rows, err := w.pool.Query(ctx,
		`SELECT cells FROM worksheet_rows WHERE worksheet_id = $1 ORDER BY position ASC`, w.id)
	if err != nil {
		return nil, fmt.Errorf("%w: read rows of %s: %v", storeerr.ErrStorageRead, w.title, err)
	}
	defer rows.Close()

	out := []workbook.Row{}
	for rows.Next() {
		var cells []string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("%w: scan row of %s: %v", storeerr.ErrStorageRead, w.title, err)
		}
		out = append(out, workbook.RowFromCells(w.headers, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read rows of %s: %v", storeerr.ErrStorageRead, w.title, err)
	}
	return out, nil
}

func (w *worksheet) AppendRow(ctx context.Context, values map[string]string) error {
	cells, err := workbook.CellsFromValues(w.headers, values)
	if err != nil {
		return err
	}
	if _, err := w.pool.Exec(ctx,
		`INSERT INTO worksheet_rows (worksheet_id, cells) VALUES ($1, $2)`, w.id, cells); err != nil {
		return fmt.Errorf("%w: append row to %s: %v", storeerr.ErrStorageWrite, w.title, err)
	}
	return nil
}
