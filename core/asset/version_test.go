package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersion(t *testing.T) {
	t.Run("parse invalid version will return non nil error", func(t *testing.T) {
		sv, err := ParseVersion("xx")
		assert.Error(t, err)
		assert.Nil(t, sv)
	})

	t.Run("parse version with patch will return non nil error", func(t *testing.T) {
		sv, err := ParseVersion("0.1.3")
		assert.Error(t, err)
		assert.Nil(t, sv)
	})

	t.Run("parse valid version with prefix 'v' will return nil error", func(t *testing.T) {
		sv, err := ParseVersion("v1.0")
		assert.NoError(t, err)
		assert.Equal(t, uint64(1), sv.Major())
		assert.Equal(t, uint64(0), sv.Minor())
	})
}

func TestIncreaseMinorVersion(t *testing.T) {
	cases := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{in: "xx", wantErr: true},
		{in: BaseVersion, expected: "0.2"},
		{in: "0.9", expected: "0.10"},
		{in: "v1.0", expected: "1.1"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := IncreaseMinorVersion(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Empty(t, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNextVersion(t *testing.T) {
	got, err := nextVersion("0.3", "0.1")
	assert.NoError(t, err)
	assert.Equal(t, "0.4", got)

	got, err = nextVersion("", "0.5")
	assert.NoError(t, err)
	assert.Equal(t, "0.6", got)

	got, err = nextVersion("", "")
	assert.NoError(t, err)
	assert.Equal(t, "0.2", got)
}
