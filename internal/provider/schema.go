package provider

import (
	"bytes"
	"encoding/json"

	pschema "github.com/pulumi/pulumi/pkg/v3/codegen/schema"
)

const (
	packageName = "marmot"

	assetToken       = "marmot:index:Asset"
	lineageToken     = "marmot:index:Lineage"
	externalLinkType = "marmot:index:ExternalLink"
	sourceType       = "marmot:index:AssetSource"
	environmentType  = "marmot:index:AssetEnvironment"
)

var (
	stringType = pschema.TypeSpec{Type: "string"}
	numberType = pschema.TypeSpec{Type: "integer"}
	boolType   = pschema.TypeSpec{Type: "boolean"}
	anyType    = pschema.TypeSpec{Ref: "pulumi.json#/Any"}
)

func arrayOf(items pschema.TypeSpec) pschema.TypeSpec {
	return pschema.TypeSpec{Type: "array", Items: &items}
}

func mapOf(values pschema.TypeSpec) pschema.TypeSpec {
	return pschema.TypeSpec{Type: "object", AdditionalProperties: &values}
}

func ref(token string) pschema.TypeSpec {
	return pschema.TypeSpec{Ref: "#/types/" + token}
}

func prop(t pschema.TypeSpec, description string) pschema.PropertySpec {
	return pschema.PropertySpec{TypeSpec: t, Description: description}
}

// Schema describes the package to the engine and to SDK generators.
func Schema(version string) pschema.PackageSpec {
	assetInputs := map[string]pschema.PropertySpec{
		propName: {
			TypeSpec:         stringType,
			Description:      "Name of the asset, unique within its type and namespace.",
			ReplaceOnChanges: true,
		},
		propType: {
			TypeSpec:         stringType,
			Description:      "Kind of asset such as Topic, Table or Bucket.",
			ReplaceOnChanges: true,
		},
		propNamespace: {
			TypeSpec:         stringType,
			Description:      "Namespace of the asset. Defaults to \"default\".",
			ReplaceOnChanges: true,
		},
		propDescription:   prop(stringType, "Free form description."),
		propServices:      prop(arrayOf(stringType), "Services the asset is provided by. Omitting them keeps the stored ones."),
		propTags:          prop(arrayOf(stringType), "Tags attached to the asset."),
		propMetadata:      prop(mapOf(anyType), "Arbitrary metadata."),
		propSchema:        prop(mapOf(anyType), "Structured schema document of the asset."),
		propExternalLinks: prop(arrayOf(ref(externalLinkType)), "Links to related pages."),
		propSources:       prop(arrayOf(ref(sourceType)), "Systems the asset was discovered from."),
		propEnvironments:  prop(mapOf(ref(environmentType)), "Per environment location of the asset."),
	}

	assetOutputs := map[string]pschema.PropertySpec{
		propResourceID: prop(stringType, "Identifier assigned by the catalog."),
		propMRN:        prop(stringType, "Marmot resource name, mrn://<namespace>/<type>/<name>."),
		propVersion:    prop(stringType, "Version of the stored asset, bumped on every change."),
		propCreatedAt:  prop(stringType, "Creation time, RFC 3339."),
		propUpdatedAt:  prop(stringType, "Last update time, RFC 3339."),
	}
	for k, v := range assetInputs {
		assetOutputs[k] = v
	}

	lineageInputs := map[string]pschema.PropertySpec{
		propSource: prop(stringType, "MRN of the upstream asset."),
		propTarget: prop(stringType, "MRN of the downstream asset."),
	}
	lineageOutputs := map[string]pschema.PropertySpec{
		propResourceID: prop(stringType, "Identifier assigned by the catalog."),
		propType:       prop(stringType, "Edge type reported by the catalog."),
		propStale:      prop(boolType, "True when an endpoint no longer refers to a live asset."),
	}
	for k, v := range lineageInputs {
		lineageOutputs[k] = v
	}

	return pschema.PackageSpec{
		Name:        packageName,
		DisplayName: "Marmot",
		Version:     version,
		Description: "Manage Marmot data catalog assets and their lineage.",
		Keywords:    []string{"pulumi", "marmot", "category/utility", "kind/native"},
		License:     "Apache-2.0",
		Repository:  "https://github.com/goto/pulumi-marmot",
		Config: pschema.ConfigSpec{
			Variables: map[string]pschema.PropertySpec{
				"host":   prop(stringType, "Catalog host, optionally prefixed with http:// or https://."),
				"apiKey": {TypeSpec: stringType, Description: "API key sent as X-API-Key.", Secret: true},
			},
			Required: []string{"host", "apiKey"},
		},
		Provider: pschema.ResourceSpec{
			ObjectTypeSpec: pschema.ObjectTypeSpec{
				Description: "The provider type for the marmot package.",
				Type:        "object",
			},
			InputProperties: map[string]pschema.PropertySpec{
				"host":   prop(stringType, "Catalog host, optionally prefixed with http:// or https://."),
				"apiKey": {TypeSpec: stringType, Description: "API key sent as X-API-Key.", Secret: true},
			},
		},
		Types: map[string]pschema.ComplexTypeSpec{
			externalLinkType: {ObjectTypeSpec: pschema.ObjectTypeSpec{
				Type: "object",
				Properties: map[string]pschema.PropertySpec{
					"name": prop(stringType, "Label of the link, unique within the asset."),
					"url":  prop(stringType, "Target URL."),
					"icon": prop(stringType, "Optional icon name."),
				},
				Required: []string{"name", "url"},
			}},
			sourceType: {ObjectTypeSpec: pschema.ObjectTypeSpec{
				Type: "object",
				Properties: map[string]pschema.PropertySpec{
					"name":       prop(stringType, "Name of the source system."),
					"priority":   prop(numberType, "Precedence among sources."),
					"properties": prop(mapOf(anyType), "Source specific properties."),
				},
				Required: []string{"name"},
			}},
			environmentType: {ObjectTypeSpec: pschema.ObjectTypeSpec{
				Type: "object",
				Properties: map[string]pschema.PropertySpec{
					"name":     prop(stringType, "Display name of the environment."),
					"path":     prop(stringType, "Location of the asset, unique across environments."),
					"metadata": prop(mapOf(anyType), "Environment specific metadata."),
				},
				Required: []string{"name", "path"},
			}},
		},
		Resources: map[string]pschema.ResourceSpec{
			assetToken: {
				ObjectTypeSpec: pschema.ObjectTypeSpec{
					Description: "A data catalog asset such as a topic, table or bucket.",
					Type:        "object",
					Properties:  assetOutputs,
					Required:    []string{propName, propType, propNamespace, propResourceID, propMRN, propVersion},
				},
				InputProperties: assetInputs,
				RequiredInputs:  []string{propName, propType},
			},
			lineageToken: {
				ObjectTypeSpec: pschema.ObjectTypeSpec{
					Description: "A directed data flow from one asset to another.",
					Type:        "object",
					Properties:  lineageOutputs,
					Required:    []string{propSource, propTarget, propResourceID, propType, propStale},
				},
				InputProperties: lineageInputs,
				RequiredInputs:  []string{propSource, propTarget},
			},
		},
		Language: map[string]pschema.RawMessage{
			"go":     pschema.RawMessage(`{"importBasePath":"github.com/goto/pulumi-marmot/sdk/go/marmot"}`),
			"nodejs": pschema.RawMessage(`{"packageName":"@goto/pulumi-marmot"}`),
			"python": pschema.RawMessage(`{"packageName":"pulumi_marmot"}`),
			"csharp": pschema.RawMessage(`{"rootNamespace":"Goto","namespaces":{"marmot":"Marmot"}}`),
		},
	}
}

// MarshalSchema renders the package schema as indented JSON.
func MarshalSchema(version string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Schema(version)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
