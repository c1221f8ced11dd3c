package lineage

import (
	"errors"
	"fmt"
)

var ErrEmptyID = errors.New("lineage does not have ID")

type NotFoundError struct {
	EdgeID string
	Source string
	Target string
}

func (err NotFoundError) Error() string {
	if err.EdgeID != "" {
		return fmt.Sprintf("no such lineage: %q", err.EdgeID)
	}
	return fmt.Sprintf("could not find lineage from %s to %s", err.Source, err.Target)
}

type AlreadyExistsError struct {
	Source     string
	Target     string
	ExistingID string
}

func (err AlreadyExistsError) Error() string {
	if err.ExistingID != "" {
		return fmt.Sprintf("lineage from %s to %s already exists with id %q", err.Source, err.Target, err.ExistingID)
	}
	return fmt.Sprintf("lineage from %s to %s already exists", err.Source, err.Target)
}

// UnresolvedReferenceError is returned when an endpoint MRN does not name a
// live asset.
type UnresolvedReferenceError struct {
	Role string
	MRN  string
}

func (err UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("lineage %s %s does not refer to an existing asset", err.Role, err.MRN)
}

type InvalidError struct {
	Field  string
	Reason string
}

func (err InvalidError) Error() string {
	if err.Field != "" {
		return fmt.Sprintf("invalid lineage: %s: %s", err.Field, err.Reason)
	}
	return "invalid lineage: " + err.Reason
}
