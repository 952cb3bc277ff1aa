package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidSkill   ErrCode = "INVALID_SKILL"
	ErrInvalidLevel   ErrCode = "INVALID_LEVEL"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound   ErrCode = "NOT_FOUND"
	ErrConflict   ErrCode = "CONFLICT"
	ErrEmailTaken ErrCode = "EMAIL_TAKEN"

	// ─── Mock exam ─────────────────────────────────────────────────────
	ErrSkillNoExams       ErrCode = "SKILL_NO_EXAMS"
	ErrExamSetIncomplete  ErrCode = "EXAM_SET_INCOMPLETE"
	ErrExamNotInProgress  ErrCode = "EXAM_NOT_IN_PROGRESS"
	ErrResultNotAvailable ErrCode = "RESULT_NOT_AVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrInvalidSkill:
		return "The skill must be one of reading, listening, writing, speaking."
	case ErrInvalidLevel:
		return "The level must be one of B1, B2, C1."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."
	case ErrEmailTaken:
		return "An account with this email already exists."

	// ─── Mock exam ─────────────────────────────────────────────────────
	case ErrSkillNoExams:
		return "No eligible exam is available for one of the required skills."
	case ErrExamSetIncomplete:
		return "All four exam references must resolve to existing exams."
	case ErrExamNotInProgress:
		return "The exam is not in progress."
	case ErrResultNotAvailable:
		return "Results are not available yet."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
