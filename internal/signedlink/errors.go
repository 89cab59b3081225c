package signedlink

// Error codes reported by link verification.
const (
	CodeBadQuery     = "BAD_QUERY"
	CodeStale        = "STALE_REQUEST"
	CodeBadSignature = "BAD_SIGNATURE"
	CodeDecode       = "DECODE_ERROR"
	CodeBadID        = "BAD_ID"
)

// Error is a link verification failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

var (
	ErrBadQuery     = &Error{Code: CodeBadQuery, Message: "link is missing required parameters"}
	ErrStale        = &Error{Code: CodeStale, Message: "link has expired"}
	ErrBadSignature = &Error{Code: CodeBadSignature, Message: "link signature is invalid"}
	ErrDecode       = &Error{Code: CodeDecode, Message: "link identifier is malformed"}
	ErrBadID        = &Error{Code: CodeBadID, Message: "link identifier is not a valid id"}
)
