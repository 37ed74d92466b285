package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseConfigSchema_IsValidJSON(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(ReleaseConfigSchema()), &doc))
	assert.Equal(t, "object", doc["type"])
}

func TestValidateReleaseConfig_Valid(t *testing.T) {
	doc := map[string]any{
		"trigger": map[string]any{"pattern": "v*", "require_semver": true},
		"platforms": []any{
			map[string]any{
				"platform_id":          "linux-amd64",
				"raw_artifact_name":    "boot",
				"published_asset_name": "boot-linux-amd64",
				"target":               "x86_64-unknown-linux-gnu",
			},
		},
		"build":     map[string]any{"command": []any{"make", "{{.Target}}"}, "env": map[string]any{"CGO_ENABLED": "0"}},
		"store":     map[string]any{"kind": "disk", "dir": "/tmp/artifacts"},
		"publisher": map[string]any{"kind": "github", "github": map[string]any{"repository": "acme/boot"}},
		"log":       map[string]any{"format": "json"},
	}
	assert.NoError(t, ValidateReleaseConfig(doc))
}

func TestValidateReleaseConfig_Empty(t *testing.T) {
	assert.NoError(t, ValidateReleaseConfig(map[string]any{}))
}

func TestValidateReleaseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		doc   map[string]any
		field string
	}{
		{
			name:  "unknown top-level key",
			doc:   map[string]any{"matrix": []any{}},
			field: "(root)",
		},
		{
			name:  "bad store kind",
			doc:   map[string]any{"store": map[string]any{"kind": "s3"}},
			field: "store.kind",
		},
		{
			name: "platform missing published name",
			doc: map[string]any{"platforms": []any{
				map[string]any{"platform_id": "linux-amd64", "raw_artifact_name": "boot"},
			}},
			field: "platforms.0",
		},
		{
			name: "published name with path separator",
			doc: map[string]any{"platforms": []any{
				map[string]any{"platform_id": "x", "raw_artifact_name": "boot", "published_asset_name": "dist/boot"},
			}},
			field: "platforms.0.published_asset_name",
		},
		{
			name:  "wrong type",
			doc:   map[string]any{"trigger": map[string]any{"require_semver": "yes"}},
			field: "trigger.require_semver",
		},
		{
			name:  "repository without owner",
			doc:   map[string]any{"publisher": map[string]any{"github": map[string]any{"repository": "boot"}}},
			field: "publisher.github.repository",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReleaseConfig(tt.doc)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.NotEmpty(t, validationErr.Errors)

			fields := make([]string, 0, len(validationErr.Errors))
			for _, e := range validationErr.Errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name":"boot"}`))

	err := ValidateJSONString(schema, `{}`)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "name")
}

func TestValidateJSONString_BadSchema(t *testing.T) {
	err := ValidateJSONString(`{ invalid`, `{}`)
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
}
