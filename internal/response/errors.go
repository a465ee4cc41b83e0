package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrQIDRequired    ErrCode = "QID_REQUIRED"
	ErrIDRequired     ErrCode = "ID_REQUIRED"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Storage ───────────────────────────────────────────────────────
	ErrSaveFailed           ErrCode = "SAVE_FAILED"
	ErrStorageMisconfigured ErrCode = "STORAGE_MISCONFIGURED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrQIDRequired:
		return "Missing questionnaire ID"
	case ErrIDRequired:
		return "Questionnaire ID is required"
	case ErrNotFound:
		return "Questionnaire not found"
	case ErrSaveFailed:
		return "Failed to process response"
	case ErrStorageMisconfigured:
		return "Storage backend is not configured"
	case ErrRateLimitExceeded:
		return "Too many submissions. Please try again later."
	case ErrInternal:
		return "Internal server error"
	default:
		return "Unexpected error"
	}
}
