package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/model"
	"github.com/stemsi/listening-survey/internal/storeerr"
	"github.com/stemsi/listening-survey/internal/workbook"
)

// TimestampFormat is the sortable UTC instant written to the timestamp column.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// LookupStatus distinguishes why a questionnaire lookup produced no value.
type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
	LookupFailed
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupFailed:
		return "failed"
	default:
		return "not_found"
	}
}

// Lookup is the outcome of FindQuestionnaire. Err explains a LookupFailed,
// and a LookupNotFound caused by a missing questionnaires worksheet.
//
// Raw is the stored data column exactly as written. Questionnaire is its
// typed reading, nil when the blob does not fit the model.
type Lookup struct {
	Status        LookupStatus
	Raw           json.RawMessage
	Questionnaire *model.Questionnaire
	Err           error
}

func (l Lookup) Found() bool { return l.Status == LookupFound }

// RecordStore persists responses and reads questionnaire definitions.
// It holds no state between calls; every operation opens its own document.
type RecordStore struct {
	sheets *workbook.Provisioner
	log    zerolog.Logger
	now    func() time.Time
}

func NewRecordStore(sheets *workbook.Provisioner, log zerolog.Logger) *RecordStore {
	return &RecordStore{
		sheets: sheets,
		log:    log.With().Str("component", "record_store").Logger(),
		now:    time.Now,
	}
}

// SetClock replaces the time source used for row timestamps.
func (s *RecordStore) SetClock(now func() time.Time) {
	s.now = now
}

// SaveResponse appends resp as one row of the worksheet named resp.QID,
// creating that worksheet on first use. The whole response is stored as a
// JSON blob in the data column: the client's own body when resp carries one.
// Resubmissions are not deduplicated.
//
// Configuration errors are returned as-is; anything else wraps
// storeerr.ErrStorageWrite.
func (s *RecordStore) SaveResponse(ctx context.Context, resp *model.QuestionnaireResponse) error {
	if resp == nil || resp.QID == "" {
		return errors.New("response qid is required")
	}

	ws, err := s.sheets.GetOrCreate(ctx, resp.QID)
	if err != nil {
		return writeError("provision worksheet "+resp.QID, err)
	}

	data, err := resp.Document()
	if err != nil {
		return fmt.Errorf("%w: encode response: %w", storeerr.ErrStorageWrite, err)
	}

	row := map[string]string{
		"timestamp": s.now().UTC().Format(TimestampFormat),
		"qid":       resp.QID,
		"tid":       resp.TID,
		"data":      string(data),
	}
	if err := ws.AppendRow(ctx, row); err != nil {
		return writeError("append response", err)
	}

	s.log.Info().
		Str("qid", resp.QID).
		Str("tid", resp.TID).
		Msg("Response saved")
	return nil
}

func writeError(op string, err error) error {
	if errors.Is(err, storeerr.ErrConfiguration) || errors.Is(err, storeerr.ErrStorageWrite) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", storeerr.ErrStorageWrite, op, err)
}

// FindQuestionnaire scans the questionnaires worksheet for the first row
// whose id column equals id. A matching row with an empty data column counts
// as not found. Every non-found outcome is logged here.
func (s *RecordStore) FindQuestionnaire(ctx context.Context, id string) Lookup {
	lookup := s.findQuestionnaire(ctx, id)

	switch {
	case lookup.Status == LookupFailed:
		s.log.Error().
			Err(lookup.Err).
			Str("id", id).
			Str("kind", storeerr.Kind(lookup.Err)).
			Msg("Error fetching questionnaire")
	case lookup.Status == LookupNotFound && lookup.Err != nil:
		s.log.Warn().
			Err(lookup.Err).
			Str("id", id).
			Msg("Questionnaires worksheet not found")
	}
	return lookup
}

func (s *RecordStore) findQuestionnaire(ctx context.Context, id string) Lookup {
	ws, err := s.sheets.Lookup(ctx, workbook.QuestionnairesTitle)
	if errors.Is(err, storeerr.ErrWorksheetNotFound) {
		return Lookup{Status: LookupNotFound, Err: err}
	}
	if err != nil {
		return Lookup{Status: LookupFailed, Err: readError("open questionnaires", err)}
	}

	rows, err := ws.Rows(ctx)
	if err != nil {
		return Lookup{Status: LookupFailed, Err: readError("read questionnaires", err)}
	}

	for _, row := range rows {
		if row.Get("id") != id {
			continue
		}
		data := row.Get("data")
		if data == "" {
			return Lookup{Status: LookupNotFound}
		}

		raw := json.RawMessage(data)
		var object map[string]json.RawMessage
		if err := json.Unmarshal(raw, &object); err != nil || object == nil {
			if err == nil {
				err = errors.New("not a JSON object")
			}
			return Lookup{
				Status: LookupFailed,
				Err:    fmt.Errorf("%w: questionnaire %s: %w", storeerr.ErrDataCorruption, id, err),
			}
		}

		lookup := Lookup{Status: LookupFound, Raw: raw}
		var q model.Questionnaire
		if err := json.Unmarshal(raw, &q); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("Stored questionnaire does not match the questionnaire model")
			return lookup
		}
		if err := q.Validate(); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("Stored questionnaire violates invariants")
		}
		lookup.Questionnaire = &q
		return lookup
	}
	return Lookup{Status: LookupNotFound}
}

func readError(op string, err error) error {
	if errors.Is(err, storeerr.ErrConfiguration) || errors.Is(err, storeerr.ErrStorageRead) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", storeerr.ErrStorageRead, op, err)
}

// GetQuestionnaire collapses FindQuestionnaire to found or not found:
// backend and decode failures read as absent. The stored JSON object is
// returned unchanged.
func (s *RecordStore) GetQuestionnaire(ctx context.Context, id string) (json.RawMessage, bool) {
	lookup := s.FindQuestionnaire(ctx, id)
	if !lookup.Found() {
		return nil, false
	}
	return lookup.Raw, true
}

// ListQuestionnaireIDs returns the non-empty id column values in sheet order.
func (s *RecordStore) ListQuestionnaireIDs(ctx context.Context) ([]string, error) {
	ws, err := s.sheets.Lookup(ctx, workbook.QuestionnairesTitle)
	if err != nil {
		if errors.Is(err, storeerr.ErrWorksheetNotFound) {
			return nil, err
		}
		return nil, readError("open questionnaires", err)
	}

	rows, err := ws.Rows(ctx)
	if err != nil {
		return nil, readError("read questionnaires", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := row.Get("id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetAllQuestionnaireIDs is ListQuestionnaireIDs with failures logged and
// reported as an empty list.
func (s *RecordStore) GetAllQuestionnaireIDs(ctx context.Context) []string {
	ids, err := s.ListQuestionnaireIDs(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("kind", storeerr.Kind(err)).
			Msg("Error fetching questionnaire IDs")
		return []string{}
	}
	return ids
}

// ImportQuestionnaire appends q to the questionnaires worksheet, creating the
// worksheet if needed. It reports false without writing when a row with the
// same id already exists. This is admin tooling; the read path never creates
// the worksheet.
func (s *RecordStore) ImportQuestionnaire(ctx context.Context, q *model.Questionnaire) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}

	ws, err := s.sheets.Ensure(ctx, workbook.QuestionnairesTitle, workbook.QuestionnaireHeaders)
	if err != nil {
		return false, writeError("provision questionnaires", err)
	}

	rows, err := ws.Rows(ctx)
	if err != nil {
		return false, readError("read questionnaires", err)
	}
	for _, row := range rows {
		if row.Get("id") == q.ID {
			return false, nil
		}
	}

	data, err := json.Marshal(q)
	if err != nil {
		return false, fmt.Errorf("%w: encode questionnaire: %w", storeerr.ErrStorageWrite, err)
	}
	if err := ws.AppendRow(ctx, map[string]string{"id": q.ID, "data": string(data)}); err != nil {
		return false, writeError("append questionnaire", err)
	}

	s.log.Info().Str("id", q.ID).Msg("Questionnaire imported")
	return true, nil
}
