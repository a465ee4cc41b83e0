// Package backend selects the workbook implementation named by STORAGE_BACKEND.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/config"
	"github.com/stemsi/listening-survey/internal/database"
	"github.com/stemsi/listening-survey/internal/storeerr"
	"github.com/stemsi/listening-survey/internal/workbook"
	"github.com/stemsi/listening-survey/internal/workbook/gsheets"
	"github.com/stemsi/listening-survey/internal/workbook/memory"
	"github.com/stemsi/listening-survey/internal/workbook/pgbook"
)

// Open validates cfg and builds the configured provider. The returned close
// function releases backend resources and is never nil.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (workbook.Provider, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, func() {}, err
	}

	switch cfg.StorageBackend {
	case config.BackendSheets:
		p := gsheets.NewProvider(gsheets.Config{
			SpreadsheetID: cfg.SpreadsheetID,
			ClientEmail:   cfg.ClientEmail,
			PrivateKey:    cfg.PrivateKey,
			TokenURL:      cfg.TokenURL,
			Endpoint:      cfg.SheetsEndpoint,
		}, log)
		return p, func() {}, nil

	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, func() {}, err
		}
		return pgbook.NewProvider(pool, cfg.WorkbookName), pool.Close, nil

	case config.BackendMemory:
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return memory.New("listening-survey"), func() {}, nil
	}

	return nil, func() {}, fmt.Errorf("%w: unknown STORAGE_BACKEND %q", storeerr.ErrConfiguration, cfg.StorageBackend)
}
