package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goto/pulumi-marmot/core/asset"
)

// StatusError is a non 2xx answer from the catalog.
type StatusError struct {
	Method  string
	URL     string
	Code    int
	Message string
}

func (err *StatusError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("%s %s: %s", err.Method, err.URL, http.StatusText(err.Code))
	}
	return fmt.Sprintf("%s %s: %d %s", err.Method, err.URL, err.Code, err.Message)
}

// Temporary reports whether retrying the request may succeed.
func (err *StatusError) Temporary() bool {
	return err.Code == http.StatusTooManyRequests || err.Code >= 500
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// transportError classifies failures below HTTP. A done caller context wins
// over everything else so cancellation is never retried.
func transportError(ctx context.Context, method, endpoint string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, ctxErr)
	}
	return asset.BackendUnavailableError{Op: method + " " + endpoint, Err: err}
}

// unavailable lifts retryable status errors into BackendUnavailableError.
func unavailable(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Temporary() {
		return asset.BackendUnavailableError{Op: se.Method + " " + se.URL, Err: err}
	}
	return err
}
