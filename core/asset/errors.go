package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goto/pulumi-marmot/core/validator"
)

var (
	ErrEmptyID  = errors.New("asset does not have ID")
	ErrEmptyMRN = errors.New("asset does not have MRN")
)

type NotFoundError struct {
	AssetID string
	MRN     string
}

func (err NotFoundError) Error() string {
	if err.AssetID != "" {
		return fmt.Sprintf("no such asset: %q", err.AssetID)
	} else if err.MRN != "" {
		return fmt.Sprintf("could not find asset with mrn = %s", err.MRN)
	}

	return "could not find asset"
}

type AlreadyExistsError struct {
	MRN        string
	ExistingID string
}

func (err AlreadyExistsError) Error() string {
	if err.ExistingID != "" {
		return fmt.Sprintf("asset with mrn = %s already exists with id %q", err.MRN, err.ExistingID)
	}
	return fmt.Sprintf("asset with mrn = %s already exists", err.MRN)
}

// ImmutableFieldError is returned when an update tries to change a field
// that is part of the asset identity.
type ImmutableFieldError struct {
	AssetID string
	Fields  []string
}

func (err ImmutableFieldError) Error() string {
	return fmt.Sprintf("asset %q: cannot change immutable field(s) %s, replace the asset instead",
		err.AssetID, strings.Join(err.Fields, ", "))
}

// InvalidError carries every field that failed validation.
type InvalidError struct {
	AssetID string
	Fields  []validator.FieldError
}

func (err InvalidError) Error() string {
	msgs := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		msgs = append(msgs, f.Error())
	}
	if err.AssetID != "" {
		return fmt.Sprintf("invalid asset %q: %s", err.AssetID, strings.Join(msgs, "; "))
	}
	return "invalid asset: " + strings.Join(msgs, "; ")
}

type VersionConflictError struct {
	AssetID  string
	Expected string
	Actual   string
}

func (err VersionConflictError) Error() string {
	return fmt.Sprintf("asset %q was modified concurrently: expected version %s, found %s",
		err.AssetID, err.Expected, err.Actual)
}

// BackendUnavailableError wraps failures to reach the storage backend. It
// is temporary and worth retrying.
type BackendUnavailableError struct {
	Op  string
	Err error
}

func (err BackendUnavailableError) Error() string {
	if err.Op != "" {
		return fmt.Sprintf("backend unavailable: %s: %v", err.Op, err.Err)
	}
	return fmt.Sprintf("backend unavailable: %v", err.Err)
}

func (err BackendUnavailableError) Unwrap() error { return err.Err }

func (err BackendUnavailableError) Temporary() bool { return true }
