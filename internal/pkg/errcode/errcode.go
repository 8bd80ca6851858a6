package errcode

// Request errors.
const (
	ErrUnknown      = 20100000
	ErrUnauthorized = 20100001
	ErrInvalid      = 20100002
	ErrNotFound     = 20100003
	ErrTooMany      = 20100004
	ErrBusy         = 20100005
)

// Backend errors.
const (
	ErrInternal           = 20200000
	ErrServiceUnavailable = 20200001
	ErrIndexFailed        = 20200002
	ErrMalformedDocument  = 20200003
)

var messages = map[int]string{
	ErrUnknown:            "unknown error",
	ErrUnauthorized:       "unauthorized",
	ErrInvalid:            "invalid request",
	ErrNotFound:           "not found",
	ErrTooMany:            "too many requests",
	ErrBusy:               "another reset or ingest is running",
	ErrInternal:           "internal error",
	ErrServiceUnavailable: "ai service unavailable",
	ErrIndexFailed:        "index operation failed",
	ErrMalformedDocument:  "malformed document",
}

func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ErrUnknown]
}
