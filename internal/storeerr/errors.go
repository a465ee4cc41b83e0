// Package storeerr defines the error taxonomy shared by the workbook backends,
// the record store and the HTTP boundary.
package storeerr

import "errors"

var (
	// ErrConfiguration marks missing or malformed credentials or document settings.
	// It is a deployment defect and is never downgraded.
	ErrConfiguration = errors.New("configuration error")

	// ErrStorageRead marks a backend that was unreachable or rejected a query.
	ErrStorageRead = errors.New("storage read error")

	// ErrStorageWrite marks a backend that rejected or failed an append.
	ErrStorageWrite = errors.New("storage write error")

	// ErrDataCorruption marks a stored data blob that does not decode.
	ErrDataCorruption = errors.New("data corruption")

	// ErrWorksheetNotFound is returned when a required worksheet is absent.
	ErrWorksheetNotFound = errors.New("worksheet not found")

	// ErrWorksheetExists is returned by a backend that refuses a duplicate title.
	ErrWorksheetExists = errors.New("worksheet already exists")
)

// Kind returns a short label for err, suitable for a structured log field.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDataCorruption):
		return "data_corruption"
	case errors.Is(err, ErrWorksheetNotFound):
		return "worksheet_not_found"
	case errors.Is(err, ErrStorageWrite):
		return "storage_write"
	case errors.Is(err, ErrStorageRead):
		return "storage_read"
	default:
		return "unknown"
	}
}
