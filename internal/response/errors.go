package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidTiming  ErrCode = "INVALID_TIMING"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrConflict       ErrCode = "CONFLICT"
	ErrExamNotFound   ErrCode = "EXAM_NOT_FOUND"
	ErrResultNotFound ErrCode = "RESULT_NOT_FOUND"
	ErrExamCodeTaken  ErrCode = "EXAM_CODE_TAKEN"
	ErrEmailTaken     ErrCode = "EMAIL_TAKEN"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrSubjectCodeMismatch ErrCode = "SUBJECT_CODE_MISMATCH"
	ErrParticipantRule     ErrCode = "PARTICIPANT_RULE_FAIL"
	ErrExamNotStarted      ErrCode = "EXAM_NOT_STARTED"
	ErrExamEnded           ErrCode = "EXAM_ENDED"
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrSubmissionClosed    ErrCode = "SUBMISSION_CLOSED"
	ErrNotExamOwner        ErrCode = "NOT_EXAM_OWNER"
	ErrCreatorMismatch     ErrCode = "CREATOR_MISMATCH"

	// ─── Result links ──────────────────────────────────────────────────
	ErrBadQuery         ErrCode = "BAD_QUERY"
	ErrStaleRequest     ErrCode = "STALE_REQUEST"
	ErrBadSignature     ErrCode = "BAD_SIGNATURE"
	ErrDecode           ErrCode = "DECODE_ERROR"
	ErrBadID            ErrCode = "BAD_ID"
	ErrReplayedRequest  ErrCode = "REPLAYED_REQUEST"
	ErrExamCodeMismatch ErrCode = "EXAM_CODE_MISMATCH"
	ErrEmailMismatch    ErrCode = "EMAIL_MISMATCH"
	ErrNotYetAvailable  ErrCode = "NOT_YET_AVAILABLE"
	ErrResultExpired    ErrCode = "RESULT_EXPIRED"
	ErrInvalidStatus    ErrCode = "INVALID_STATUS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal    ErrCode = "INTERNAL_ERROR"
	ErrServerError ErrCode = "SERVER_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidTiming:
		return "Exam timing configuration is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrExamNotFound:
		return "Exam not found."
	case ErrResultNotFound:
		return "Result not found."
	case ErrExamCodeTaken:
		return "This exam code is already in use."
	case ErrEmailTaken:
		return "This email is already registered."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrSubjectCodeMismatch:
		return "Subject code does not match."
	case ErrParticipantRule:
		return "Participant ID is not allowed for this exam."
	case ErrExamNotStarted:
		return "The exam has not started yet."
	case ErrExamEnded:
		return "The exam has already ended."
	case ErrAlreadySubmitted:
		return "Answers for this exam have already been submitted."
	case ErrSubmissionClosed:
		return "The submission window for this exam is closed."
	case ErrNotExamOwner:
		return "Only the exam owner can perform this action."
	case ErrCreatorMismatch:
		return "The exam was not created by this owner."

	// ─── Result links ──────────────────────────────────────────────────
	case ErrBadQuery:
		return "The result link is incomplete."
	case ErrStaleRequest:
		return "The result link has expired. Please request a new one."
	case ErrBadSignature:
		return "The result link is invalid."
	case ErrDecode:
		return "The result link is malformed."
	case ErrBadID:
		return "The result link refers to an invalid identifier."
	case ErrReplayedRequest:
		return "The result link has already been used."
	case ErrExamCodeMismatch:
		return "Exam code does not match."
	case ErrEmailMismatch:
		return "Email does not match the submitted result."
	case ErrNotYetAvailable:
		return "Results are not available yet."
	case ErrResultExpired:
		return "The result viewing period has ended."
	case ErrInvalidStatus:
		return "The result is not in a viewable state."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal, ErrServerError:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
