package value_test

import (
	"encoding/json"
	"testing"

	"github.com/goto/pulumi-marmot/core/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestJSONKeepsKeyOrder(t *testing.T) {
	var v value.Value
	err := json.Unmarshal([]byte(`{"zeta":1,"alpha":{"b":true,"a":null},"mid":["x",2.5]}`), &v)
	require.NoError(t, err)

	require.Equal(t, value.KindMap, v.Kind())
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, v.MapValue().Keys())

	inner, ok := v.MapValue().Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, inner.MapValue().Keys())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":{"b":true,"a":null},"mid":["x",2.5]}`, string(out))
}

func TestYAMLKeepsKeyOrder(t *testing.T) {
	doc := `
owner: team-data
retention: 7
compacted: false
fields:
  - name: id
    type: long
`
	var m value.Map
	require.NoError(t, yaml.Unmarshal([]byte(doc), &m))
	assert.Equal(t, []string{"owner", "retention", "compacted", "fields"}, m.Keys())

	retention, _ := m.Get("retention")
	assert.Equal(t, value.KindNumber, retention.Kind())
	assert.Equal(t, float64(7), retention.NumberValue())

	compacted, _ := m.Get("compacted")
	assert.Equal(t, value.Bool(false), compacted)

	out, err := yaml.Marshal(&m)
	require.NoError(t, err)

	var again value.Map
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.True(t, m.Equal(&again))
	assert.Equal(t, m.Keys(), again.Keys())
}

func TestValueEqual(t *testing.T) {
	type testCase struct {
		Description string
		A, B        value.Value
		Equal       bool
		Equivalent  bool
	}

	testCases := []testCase{
		{
			Description: "map key order is ignored",
			A:           value.Object(value.MapOf("a", "1", "b", "2")),
			B:           value.Object(value.MapOf("b", "2", "a", "1")),
			Equal:       true,
			Equivalent:  true,
		},
		{
			Description: "list order matters",
			A:           value.List(value.String("a"), value.String("b")),
			B:           value.List(value.String("b"), value.String("a")),
		},
		{
			Description: "string and number with the same text",
			A:           value.String("24"),
			B:           value.Number(24),
			Equivalent:  true,
		},
		{
			Description: "whole float equals integer",
			A:           value.Number(3.0),
			B:           mustFromInterface(t, int64(3)),
			Equal:       true,
			Equivalent:  true,
		},
		{
			Description: "null differs from empty string strictly",
			A:           value.Null(),
			B:           value.String(""),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Description, func(t *testing.T) {
			assert.Equal(t, tc.Equal, tc.A.Equal(tc.B))
			assert.Equal(t, tc.Equivalent, tc.A.Equivalent(tc.B))
		})
	}
}

func TestFromInterface(t *testing.T) {
	v, err := value.FromInterface(map[string]interface{}{
		"b":     []string{"x", "y"},
		"a":     3,
		"c":     map[string]string{"k": "v"},
		"empty": nil,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "empty"}, v.MapValue().Keys())
	assert.Equal(t, map[string]interface{}{
		"a":     int64(3),
		"b":     []interface{}{"x", "y"},
		"c":     map[string]interface{}{"k": "v"},
		"empty": nil,
	}, v.Interface())

	_, err = value.FromInterface(struct{}{})
	assert.Error(t, err)
}

func TestMapSetKeepsPosition(t *testing.T) {
	m := value.MapOf("a", "1", "b", "2", "c", "3")
	m.Set("a", value.String("changed"))
	m.Delete("b")

	assert.Equal(t, []string{"a", "c"}, m.Keys())
	got, _ := m.Get("a")
	assert.Equal(t, "changed", got.StringValue())

	var nilMap *value.Map
	assert.Equal(t, 0, nilMap.Len())
	assert.True(t, nilMap.Equal(value.NewMap()))
}

func mustFromInterface(t *testing.T, x interface{}) value.Value {
	t.Helper()
	v, err := value.FromInterface(x)
	require.NoError(t, err)
	return v
}
