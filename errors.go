package deadline

import (
	"fmt"

	"github.com/pkg/errors"
)

// WebserviceError is returned when the farm web service cannot be reached at
// all. Responses with an unsuccessful status are not errors.
type WebserviceError struct {
	Endpoint string
	Err      error
}

func (e *WebserviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot connect to farm web service '%s'", e.Endpoint)
	}
	return fmt.Sprintf("cannot connect to farm web service '%s': %s", e.Endpoint, e.Err.Error())
}

func (e *WebserviceError) Cause() error { return e.Err }

func (e *WebserviceError) Unwrap() error { return e.Err }

// IsWebserviceError reports whether err, or anything it wraps, is a
// WebserviceError.
func IsWebserviceError(err error) bool {
	if err == nil {
		return false
	}
	var wsErr *WebserviceError
	if errors.As(err, &wsErr) {
		return true
	}
	_, ok := errors.Cause(err).(*WebserviceError)
	return ok
}
