package fitbit

import (
	"fmt"

	apperrors "github.com/fitglue/healthsync/pkg/errors"
)

// FetchError is returned when an endpoint never produced a usable 200
// response. It matches apperrors.ErrEndpointFetchExhausted, and also
// apperrors.ErrTransport when the final attempt failed below HTTP.
type FetchError struct {
	Endpoint   string
	LastStatus int // 0 when the last attempt got no response
	Attempts   int
	Body       string // truncated body of the last response
	Err        error
}

func (e *FetchError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s), last status %d: %v", e.Endpoint, e.Attempts, e.LastStatus, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return apperrors.GetCode(target) == apperrors.CodeEndpointFetchExhausted
}
