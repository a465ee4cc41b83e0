package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stemsi/listening-survey/internal/config"
	"github.com/stemsi/listening-survey/internal/logger"
	"github.com/stemsi/listening-survey/internal/model"
	"github.com/stemsi/listening-survey/internal/repository"
	"github.com/stemsi/listening-survey/internal/workbook"
	"github.com/stemsi/listening-survey/internal/workbook/backend"
)

func main() {
	var dir string
	flag.StringVar(&dir, "dir", "questionnaires", "Directory of questionnaire JSON files")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid questionnaire directory")
		}
		sort.Strings(matches)
		files = matches
	}
	if len(files) == 0 {
		log.Fatal().Str("dir", dir).Msg("No questionnaire files found")
	}

	provider, closeStorage, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure storage")
	}
	defer closeStorage()

	store := repository.NewRecordStore(workbook.NewProvisioner(provider, log), log)

	fmt.Printf("=== Seeding %d questionnaire file(s) ===\n", len(files))

	created, skipped, failed := 0, 0, 0
	for _, path := range files {
		q, err := readQuestionnaire(path)
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", path, err)
			failed++
			continue
		}

		ok, err := store.ImportQuestionnaire(ctx, q)
		switch {
		case err != nil:
			fmt.Printf("Error importing %s (%s): %v\n", q.ID, path, err)
			failed++
		case ok:
			fmt.Printf("Imported %s\n", q.ID)
			created++
		default:
			fmt.Printf("Skipped %s, already present\n", q.ID)
			skipped++
		}
	}

	fmt.Printf("\nSeed completed! created=%d skipped=%d failed=%d\n", created, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func readQuestionnaire(path string) (*model.Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var q model.Questionnaire
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &q, nil
}
