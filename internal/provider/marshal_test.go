package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/core/value"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToValue(t *testing.T) {
	pv := resource.NewPropertyValue(map[string]interface{}{
		"owner":   "team-a",
		"retries": 3,
		"pii":     true,
		"fields":  []interface{}{"id", map[string]interface{}{"name": "amount"}},
	})

	v, err := toValue(pv)
	require.NoError(t, err)
	require.Equal(t, value.KindMap, v.Kind())

	m := v.MapValue()
	assert.Equal(t, []string{"fields", "owner", "pii", "retries"}, m.Keys())
	retries, _ := m.Get("retries")
	assert.Equal(t, float64(3), retries.NumberValue())

	secret, err := toValue(resource.MakeSecret(resource.NewStringProperty("s3cr3t")))
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", secret.StringValue())

	back := fromValue(v)
	assert.Equal(t, "amount", back.ObjectValue()["fields"].ArrayValue()[1].ObjectValue()["name"].StringValue())
}

func TestToValueUnknown(t *testing.T) {
	_, err := toValue(resource.NewObjectProperty(resource.PropertyMap{
		"owner": resource.MakeComputed(resource.NewStringProperty("")),
	}))
	assert.ErrorIs(t, err, errUnknownValue)
}

func TestDecodeAsset(t *testing.T) {
	pm := resource.NewPropertyMapFromMap(map[string]interface{}{
		"name":     "orders",
		"type":     "Topic",
		"services": []interface{}{"kafka"},
		"sources":  []interface{}{map[string]interface{}{"name": "optimus", "priority": 2}},
		"environments": map[string]interface{}{
			"prod": map[string]interface{}{"name": "Production", "path": "prod/orders", "metadata": map[string]interface{}{"cluster": "a"}},
		},
		"externalLinks": []interface{}{map[string]interface{}{"name": "docs", "url": "https://docs.example.com"}},
	})

	ast, err := decodeAsset(pm)
	require.NoError(t, err)
	assert.Equal(t, "orders", ast.Name)
	assert.Equal(t, asset.Type("Topic"), ast.Type)
	assert.Equal(t, []string{"kafka"}, ast.Services)
	require.Len(t, ast.Sources, 1)
	require.NotNil(t, ast.Sources[0].Priority)
	assert.Equal(t, 2, *ast.Sources[0].Priority)
	assert.Equal(t, "prod/orders", ast.Environments["prod"].Path)
	assert.Equal(t, "https://docs.example.com", ast.ExternalLinks[0].URL)

	again, err := decodeAsset(encodeAssetInputs(ast))
	require.NoError(t, err)
	result, err := asset.Diff(ast, again)
	require.NoError(t, err)
	assert.False(t, result.HasChanges())
}

func TestDecodeAssetFailures(t *testing.T) {
	pm := resource.NewPropertyMapFromMap(map[string]interface{}{
		"name":         7,
		"type":         "Topic",
		"metadata":     "owner",
		"environments": map[string]interface{}{"prod": "prod/orders"},
	})

	_, err := decodeAsset(pm)
	failures, ok := checkFailures(err)
	require.True(t, ok)

	var paths []string
	for _, f := range failures {
		paths = append(paths, f.Property)
	}
	assert.ElementsMatch(t, []string{"name", "metadata", "environments.prod"}, paths)
}

func TestPropertyPath(t *testing.T) {
	doc := resource.NewPropertyMapFromMap(map[string]interface{}{
		"schema": map[string]interface{}{
			"fields":  []interface{}{map[string]interface{}{"name": "id"}},
			"columns": map[string]interface{}{"0": map[string]interface{}{"name": "id"}},
		},
		"sources": []interface{}{
			map[string]interface{}{"name": "a"},
			map[string]interface{}{"name": "b", "priority": 2},
		},
	})

	cases := []struct {
		path     []string
		expected string
	}{
		{path: []string{"metadata", "owner"}, expected: "metadata.owner"},
		{path: []string{"schema", "fields", "0", "name"}, expected: "schema.fields[0].name"},
		{path: []string{"schema", "columns", "0", "name"}, expected: "schema.columns.0.name"},
		{path: []string{"sources", "1", "priority"}, expected: "sources[1].priority"},
		{path: []string{"metadata", "team.name"}, expected: `metadata["team.name"]`},
		{path: []string{"environments", "prod", "path"}, expected: "environments.prod.path"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, propertyPath(tc.path, doc), "%v", tc.path)
	}

	// a key that only exists on the added side is still resolved
	added := resource.NewPropertyMapFromMap(map[string]interface{}{
		"schema": map[string]interface{}{"fields": []interface{}{"a", "b"}},
	})
	assert.Equal(t, "schema.fields[1]", propertyPath([]string{"schema", "fields", "1"}, doc, added))

	assert.Equal(t, "externalLinks", diffKey([]string{"externalLinks", "docs", "url"}))
	assert.Equal(t, "tags", diffKey([]string{"tags"}))
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{err: asset.NotFoundError{AssetID: "a"}, code: codes.NotFound},
		{err: fmt.Errorf("get: %w", lineage.NotFoundError{EdgeID: "e"}), code: codes.NotFound},
		{err: asset.AlreadyExistsError{MRN: "m"}, code: codes.AlreadyExists},
		{err: lineage.AlreadyExistsError{}, code: codes.AlreadyExists},
		{err: lineage.UnresolvedReferenceError{Role: "target"}, code: codes.FailedPrecondition},
		{err: asset.ImmutableFieldError{Fields: []string{"type"}}, code: codes.FailedPrecondition},
		{err: asset.InvalidError{}, code: codes.InvalidArgument},
		{err: lineage.InvalidError{Reason: "self loop"}, code: codes.InvalidArgument},
		{err: asset.VersionConflictError{}, code: codes.Aborted},
		{err: asset.BackendUnavailableError{Err: errors.New("refused")}, code: codes.Unavailable},
		{err: fmt.Errorf("create: %w", errNotConfigured), code: codes.FailedPrecondition},
		{err: errors.New("boom"), code: codes.Unknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, errorCode(tc.err), "%v", tc.err)
	}

	st := status.Convert(toStatus("urn:x", asset.NotFoundError{AssetID: "a"}))
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, `urn:x: no such asset: "a"`, st.Message())
	assert.Equal(t, "not_found", errorKind(asset.NotFoundError{}))
}
