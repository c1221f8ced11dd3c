package set_test

import (
	"encoding/json"
	"testing"

	"github.com/goto/pulumi-marmot/lib/set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSet(t *testing.T) {
	t.Run("json encode is sorted", func(t *testing.T) {
		data, err := json.Marshal(set.NewStringSet("kafka", "bigquery", "kafka"))
		require.NoError(t, err)
		assert.JSONEq(t, `["bigquery","kafka"]`, string(data))
	})

	t.Run("json decode replaces members", func(t *testing.T) {
		got := set.NewStringSet("420")
		require.NoError(t, json.Unmarshal([]byte(`["1337"]`), &got))
		assert.Equal(t, set.NewStringSet("1337"), got)
	})

	t.Run("difference", func(t *testing.T) {
		a := set.NewStringSet("pii", "gold", "finance")
		b := set.NewStringSet("gold")
		assert.Equal(t, []string{"finance", "pii"}, a.Difference(b))
		assert.Empty(t, b.Difference(a))
	})

	t.Run("equal ignores insertion order", func(t *testing.T) {
		assert.True(t, set.NewStringSet("a", "b").Equal(set.NewStringSet("b", "a", "a")))
		assert.False(t, set.NewStringSet("a").Equal(set.NewStringSet("a", "b")))
	})
}
