package workbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/storeerr"
)

// Provisioner resolves collection keys to worksheets.
type Provisioner struct {
	provider Provider
	log      zerolog.Logger
}

func NewProvisioner(provider Provider, log zerolog.Logger) *Provisioner {
	return &Provisioner{
		provider: provider,
		log:      log.With().Str("component", "worksheet_provisioner").Logger(),
	}
}

// Lookup returns the worksheet titled key without creating it. An absent
// worksheet is reported as storeerr.ErrWorksheetNotFound.
func (p *Provisioner) Lookup(ctx context.Context, key string) (Worksheet, error) {
	doc, err := p.provider.Open(ctx)
	if err != nil {
		return nil, err
	}
	ws, ok := doc.WorksheetByTitle(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", storeerr.ErrWorksheetNotFound, key, doc.Title())
	}
	return ws, nil
}

// GetOrCreate returns the response worksheet titled key, creating it with
// ResponseHeaders when absent. Titles match exactly and case-sensitively.
func (p *Provisioner) GetOrCreate(ctx context.Context, key string) (Worksheet, error) {
	return p.Ensure(ctx, key, ResponseHeaders)
}

// Ensure returns the worksheet titled key, creating it with headers when
// absent.
//
// Two callers racing on an unseen key may both try to create it. When the
// backend refuses the second creation as a duplicate, the document is
// reopened and the winner's worksheet returned.
func (p *Provisioner) Ensure(ctx context.Context, key string, headers []string) (Worksheet, error) {
	if key == "" {
		return nil, errors.New("collection key is required")
	}

	doc, err := p.provider.Open(ctx)
	if err != nil {
		return nil, err
	}
	if ws, ok := doc.WorksheetByTitle(key); ok {
		return ws, nil
	}

	ws, err := doc.CreateWorksheet(ctx, key, headers)
	if err == nil {
		p.log.Info().Str("worksheet", key).Msg("Worksheet created")
		return ws, nil
	}
	if !errors.Is(err, storeerr.ErrWorksheetExists) {
		return nil, err
	}

	p.log.Warn().Str("worksheet", key).Msg("Worksheet created concurrently, reusing it")
	ws, lookupErr := p.Lookup(ctx, key)
	if lookupErr != nil {
		return nil, fmt.Errorf("reload after duplicate create: %w", lookupErr)
	}
	return ws, nil
}
