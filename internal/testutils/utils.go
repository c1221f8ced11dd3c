package testutils

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/testing/protocmp"
)

// AssertEqualProto compares two protobuf messages field by field, e.g. the
// responses of the provider RPCs.
func AssertEqualProto(t *testing.T, expected, actual proto.Message) bool {
	t.Helper()

	diff := cmp.Diff(expected, actual, protocmp.Transform())
	if diff == "" {
		return true
	}
	return assert.Fail(t, fmt.Sprintf("Not equal:\n"+
		"expected:\n\t'%s'\n"+
		"actual:\n\t'%s'\n"+
		"diff (-expected +actual):\n%s",
		expected, actual, diff,
	))
}
