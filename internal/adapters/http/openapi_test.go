package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// loadOpenAPISpec finds api/openapi.yaml by walking up from the test directory.
func loadOpenAPISpec(t *testing.T) *openapi3.T {
	t.Helper()
	dir, _ := os.Getwd()

	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			data, err := os.ReadFile(candidate)
			if err != nil {
				t.Fatalf("failed to read openapi.yaml: %v", err)
			}
			loader := &openapi3.Loader{IsExternalRefsAllowed: false}
			spec, err := loader.LoadFromData(data)
			if err != nil {
				t.Fatalf("failed to parse OpenAPI description: %v", err)
			}
			return spec
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return nil
}

func TestOpenAPISpec(t *testing.T) {
	spec := loadOpenAPISpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/soil",
		"/v1/health",
		"/v1/ready",
		"/v1/map/config",
		"/v1/clicks",
		"/v1/clicks/current",
		"/v1/clicks/status",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	expectedSchemas := []string{
		"Coordinate",
		"ClickResult",
		"ClickResponse",
		"ClickStatus",
		"MapConfig",
		"SoilData",
		"SoilMessage",
		"ValidationError",
		"UpstreamError",
		"APIError",
	}
	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI description valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

func TestOpenAPIInfo(t *testing.T) {
	spec := loadOpenAPISpec(t)

	if spec.Info.Title != "Soilmap API" {
		t.Errorf("expected title 'Soilmap API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}
}

func TestOpenAPIClickSourceEnum(t *testing.T) {
	spec := loadOpenAPISpec(t)

	source := spec.Components.Schemas["ClickResult"].Value.Properties["source"].Value
	want := map[string]bool{"lookup": false, "fallback": false, "point": false}
	for _, v := range source.Enum {
		if s, ok := v.(string); ok {
			want[s] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("source enum missing %q", name)
		}
	}
}
