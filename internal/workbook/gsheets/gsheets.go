// Package gsheets implements the workbook backend on the Google Sheets API.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/credential"
	"github.com/stemsi/listening-survey/internal/storeerr"
	"github.com/stemsi/listening-survey/internal/workbook"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Config identifies the spreadsheet and the service account that may edit it.
type Config struct {
	SpreadsheetID string
	ClientEmail   string
	PrivateKey    string
	TokenURL      string
	// Endpoint overrides the Sheets API base URL; empty uses Google's.
	Endpoint string
	// HTTPClient carries both the token exchange and API calls; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// Provider opens the configured spreadsheet. It resolves a fresh token and
// loads metadata on every Open.
type Provider struct {
	cfg Config
	log zerolog.Logger
}

func NewProvider(cfg Config, log zerolog.Logger) *Provider {
	return &Provider{
		cfg: cfg,
		log: log.With().Str("component", "gsheets").Logger(),
	}
}

// Open authenticates, loads the spreadsheet title and worksheet list and the
// header row of every worksheet.
func (p *Provider) Open(ctx context.Context) (workbook.Document, error) {
	if p.cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheet id is not set", storeerr.ErrConfiguration)
	}

	var opts []credential.Option
	if p.cfg.HTTPClient != nil {
		opts = append(opts, credential.WithHTTPClient(p.cfg.HTTPClient))
	}
	sa, err := credential.NewServiceAccount(p.cfg.ClientEmail, p.cfg.PrivateKey, credential.DefaultScopes, p.cfg.TokenURL, opts...)
	if err != nil {
		return nil, err
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(sa.HTTPClient(ctx))}
	if p.cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(p.cfg.Endpoint))
	}
	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets client: %v", storeerr.ErrConfiguration, err)
	}

	ss, err := svc.Spreadsheets.Get(p.cfg.SpreadsheetID).
		Fields("spreadsheetId", "properties.title", "sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: spreadsheet %s not found", storeerr.ErrConfiguration, p.cfg.SpreadsheetID)
		}
		return nil, classify(storeerr.ErrStorageRead, "load spreadsheet", err)
	}

	doc := &document{
		svc: svc,
		id:  p.cfg.SpreadsheetID,
	}
	if ss.Properties != nil {
		doc.title = ss.Properties.Title
	}
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		doc.sheets = append(doc.sheets, &worksheet{doc: doc, title: s.Properties.Title})
	}

	if err := doc.loadHeaders(ctx); err != nil {
		return nil, err
	}

	p.log.Debug().
		Str("spreadsheet", doc.title).
		Int("worksheets", len(doc.sheets)).
		Msg("Spreadsheet loaded")
	return doc, nil
}

type document struct {
	svc    *sheets.Service
	id     string
	title  string
	sheets []*worksheet
}

func (d *document) loadHeaders(ctx context.Context) error {
	if len(d.sheets) == 0 {
		return nil
	}
	ranges := make([]string, len(d.sheets))
	for i, ws := range d.sheets {
		ranges[i] = quoteTitle(ws.title) + "!1:1"
	}
	resp, err := d.svc.Spreadsheets.Values.BatchGet(d.id).
		Ranges(ranges...).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify(storeerr.ErrStorageRead, "load header rows", err)
	}
	for i, vr := range resp.ValueRanges {
		if i >= len(d.sheets) || len(vr.Values) == 0 {
			continue
		}
		d.sheets[i].headers = cellStrings(vr.Values[0])
	}
	return nil
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

// CreateWorksheet adds a sheet with a frozen header row and writes headers.
// Google refuses duplicate titles; that refusal maps to ErrWorksheetExists.
func (d *document) CreateWorksheet(ctx context.Context, title string, headers []string) (workbook.Worksheet, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title:          title,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
			},
		}},
	}
	if _, err := d.svc.Spreadsheets.BatchUpdate(d.id, req).Context(ctx).Do(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "already exists") {
			return nil, fmt.Errorf("%w: %q", storeerr.ErrWorksheetExists, title)
		}
		return nil, classify(storeerr.ErrStorageWrite, "add worksheet", err)
	}

	header := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(headers)}}
	if _, err := d.svc.Spreadsheets.Values.Update(d.id, quoteTitle(title)+"!A1", header).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return nil, classify(storeerr.ErrStorageWrite, "write header row", err)
	}

	ws := &worksheet{doc: d, title: title, headers: append([]string(nil), headers...)}
	d.sheets = append(d.sheets, ws)
	return ws, nil
}

type worksheet struct {
	doc     *document
	title   string
	headers []string
}

func (w *worksheet) Title() string { return w.title }

func (w *worksheet) Headers() []string { return append([]string(nil), w.headers...) }

// Rows reads the whole grid; the first row is the header.
func (w *worksheet) Rows(ctx context.Context) ([]workbook.Row, error) {
	vr, err := w.doc.svc.Spreadsheets.Values.Get(w.doc.id, quoteTitle(w.title)).
		MajorDimension("ROWS").
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(storeerr.ErrStorageRead, "read rows of "+w.title, err)
	}
	if len(vr.Values) == 0 {
		return []workbook.Row{}, nil
	}

	w.headers = cellStrings(vr.Values[0])
	rows := make([]workbook.Row, 0, len(vr.Values)-1)
	for _, cells := range vr.Values[1:] {
		rows = append(rows, workbook.RowFromCells(w.headers, cellStrings(cells)))
	}
	return rows, nil
}

// AppendRow inserts one row after the last data row. A single append call
// is atomic on Google's side.
func (w *worksheet) AppendRow(ctx context.Context, values map[string]string) error {
	if len(w.headers) == 0 {
		return fmt.Errorf("%w: worksheet %q has no header row", storeerr.ErrStorageWrite, w.title)
	}
	cells, err := workbook.CellsFromValues(w.headers, values)
	if err != nil {
		return err
	}

	body := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(cells)}}
	if _, err := w.doc.svc.Spreadsheets.Values.Append(w.doc.id, quoteTitle(w.title)+"!A1", body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return classify(storeerr.ErrStorageWrite, "append row to "+w.title, err)
	}
	return nil
}

// quoteTitle renders a sheet title as an A1 sheet reference.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func cellStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if c == nil {
			continue
		}
		if s, ok := c.(string); ok {
			out[i] = s
			continue
		}
		out[i] = fmt.Sprint(c)
	}
	return out
}

func toInterfaces(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// classify wraps err with kind, except for authorisation failures (a rejected
// token or a sheet not shared with the service account) which are
// configuration errors whatever the operation.
func classify(kind error, op string, err error) error {
	if errors.Is(err, storeerr.ErrConfiguration) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if isStatus(err, http.StatusUnauthorized) || isStatus(err, http.StatusForbidden) {
		return fmt.Errorf("%w: %s: %v", storeerr.ErrConfiguration, op, err)
	}
	return fmt.Errorf("%w: %s: %v", kind, op, err)
}
