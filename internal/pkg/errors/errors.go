package errors

import "errors"

var (
	ErrNotFound                   = errors.New("not found")
	ErrInvalid                    = errors.New("invalid")
	ErrUnauthorized               = errors.New("unauthorized")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	ErrIndexOperationFailed       = errors.New("index operation failed")
	ErrMalformedDocument          = errors.New("malformed document")
	ErrBusy                       = errors.New("busy")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsExternalServiceUnavailable(err error) bool {
	return errors.Is(err, ErrExternalServiceUnavailable)
}

func IsIndexOperationFailed(err error) bool {
	return errors.Is(err, ErrIndexOperationFailed)
}

func IsMalformedDocument(err error) bool {
	return errors.Is(err, ErrMalformedDocument)
}

func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
