package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/core/validator"
	pulumirpc "github.com/pulumi/pulumi/sdk/v3/proto/go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errUnknownValue    = errors.New("value is not known yet")
	errNotConfigured   = errors.New("provider is not configured")
	errUnknownResource = errors.New("unknown resource type")
)

// checkFailuresError carries decoding failures so Check can return them as
// CheckFailures while the other RPCs fail with InvalidArgument.
type checkFailuresError []*pulumirpc.CheckFailure

func (errs checkFailuresError) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, f := range errs {
		msgs = append(msgs, f.Property+": "+f.Reason)
	}
	return strings.Join(msgs, "; ")
}

// checkFailures turns an input error into CheckFailures. ok is false when
// err is not an input problem and should fail the RPC instead.
func checkFailures(err error) (failures []*pulumirpc.CheckFailure, ok bool) {
	var decodeErr checkFailuresError
	if errors.As(err, &decodeErr) {
		return decodeErr, true
	}

	var invalidAsset asset.InvalidError
	if errors.As(err, &invalidAsset) {
		for _, f := range invalidAsset.Fields {
			failures = append(failures, &pulumirpc.CheckFailure{Property: f.Field, Reason: f.Message})
		}
		return failures, true
	}

	var fieldErrs validator.Errors
	if errors.As(err, &fieldErrs) {
		for _, f := range fieldErrs {
			failures = append(failures, &pulumirpc.CheckFailure{Property: f.Field, Reason: f.Message})
		}
		return failures, true
	}

	var invalidEdge lineage.InvalidError
	if errors.As(err, &invalidEdge) {
		return []*pulumirpc.CheckFailure{{Property: invalidEdge.Field, Reason: invalidEdge.Reason}}, true
	}
	return nil, false
}

// toStatus maps a domain error onto a gRPC status. subject names the urn or
// resourceId the call was about.
func toStatus(subject string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isDomainError(err) {
		return err
	}
	return status.Error(errorCode(err), fmt.Sprintf("%s: %v", subject, err))
}

func isDomainError(err error) bool {
	return errorCode(err) != codes.Unknown
}

func errorCode(err error) codes.Code {
	switch {
	case errors.As(err, new(asset.BackendUnavailableError)):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.As(err, new(asset.NotFoundError)), errors.As(err, new(lineage.NotFoundError)):
		return codes.NotFound
	case errors.As(err, new(asset.AlreadyExistsError)), errors.As(err, new(lineage.AlreadyExistsError)):
		return codes.AlreadyExists
	case errors.As(err, new(lineage.UnresolvedReferenceError)), errors.As(err, new(asset.ImmutableFieldError)):
		return codes.FailedPrecondition
	case errors.As(err, new(asset.VersionConflictError)):
		return codes.Aborted
	case errors.Is(err, errNotConfigured):
		return codes.FailedPrecondition
	case errors.Is(err, asset.ErrEmptyID), errors.Is(err, asset.ErrEmptyMRN), errors.Is(err, lineage.ErrEmptyID),
		errors.Is(err, errUnknownResource):
		return codes.InvalidArgument
	}
	if _, ok := checkFailures(err); ok {
		return codes.InvalidArgument
	}
	return codes.Unknown
}

// errorKind is the short error class used as a metric tag.
func errorKind(err error) string {
	switch errorCode(err) {
	case codes.Canceled:
		return "canceled"
	case codes.DeadlineExceeded:
		return "deadline_exceeded"
	case codes.NotFound:
		return "not_found"
	case codes.AlreadyExists:
		return "already_exists"
	case codes.FailedPrecondition:
		return "failed_precondition"
	case codes.Aborted:
		return "version_conflict"
	case codes.Unavailable:
		return "backend_unavailable"
	case codes.InvalidArgument:
		return "invalid"
	}
	return "unknown"
}

func isNotFound(err error) bool {
	return errorCode(err) == codes.NotFound
}

func sortFailures(failures []*pulumirpc.CheckFailure) {
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].Property < failures[j].Property
	})
}
