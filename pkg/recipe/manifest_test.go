package recipe

import (
	"errors"
	"strings"
	"testing"
)

func validManifestJSON() string {
	return `{
		"name": "demo recipe",
		"version": "1.2.0",
		"steps": [["plugins"], ["courses", "customfields"], ["localdata"]],
		"plugins": {"required": [{"url": "https://example.com/repo", "type": "mod"}]},
		"courses": {"path": "courses"},
		"customfields": {"path": "customfields"},
		"localdata": {"path": "localdata", "duplicatefields": {"tests": ["shortname", "fullname"]}}
	}`
}

func TestParseManifest_Valid(t *testing.T) {
	m, err := ParseManifest([]byte(validManifestJSON()))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if m.Name != "demo recipe" {
		t.Errorf("Expected name 'demo recipe', got %q", m.Name)
	}

	if m.MaxStep() != 3 {
		t.Errorf("Expected 3 steps, got %d", m.MaxStep())
	}

	if m.Steps[1][1] != AssetCustomFields {
		t.Errorf("Expected customfields in step 1, got %s", m.Steps[1][1])
	}

	if got := m.LocalData.DuplicateFields["tests"]; len(got) != 2 {
		t.Errorf("Expected 2 duplicate fields, got %v", got)
	}
}

func TestParseManifest_MalformedJSON(t *testing.T) {
	_, err := ParseManifest([]byte(`{"name": "broken"`))
	if err == nil {
		t.Fatal("Expected error for malformed JSON")
	}

	var merr *ManifestError
	if !errors.As(err, &merr) {
		t.Fatalf("Expected *ManifestError, got %T", err)
	}
}

func TestParseManifest_UnknownAssetType(t *testing.T) {
	_, err := ParseManifest([]byte(`{"name": "x", "steps": [["widgets"]]}`))
	if err == nil {
		t.Fatal("Expected error for unknown asset type in steps")
	}

	var merr *ManifestError
	if !errors.As(err, &merr) {
		t.Fatalf("Expected *ManifestError, got %T", err)
	}

	if len(merr.Issues) == 0 {
		t.Fatal("Expected schema issues for unknown asset type")
	}

	if !strings.HasPrefix(merr.Issues[0].Path, "/steps/0") {
		t.Errorf("Expected issue path under /steps/0, got %s", merr.Issues[0].Path)
	}
}

func TestParseManifest_MissingSteps(t *testing.T) {
	_, err := ParseManifest([]byte(`{"name": "x"}`))
	if err == nil {
		t.Fatal("Expected error when steps are missing")
	}
}

func TestManifest_HasEntry(t *testing.T) {
	m, err := ParseManifest([]byte(validManifestJSON()))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	tests := []struct {
		asset AssetType
		want  bool
	}{
		{AssetCourses, true},
		{AssetPlugins, true},
		{AssetCustomFields, true},
		{AssetLocalData, true},
		{AssetLearningPaths, false},
		{AssetQuestions, false},
		{AssetItemParams, false},
		{AssetConfig, false},
	}

	for _, tc := range tests {
		if got := m.HasEntry(tc.asset); got != tc.want {
			t.Errorf("HasEntry(%s) = %v, want %v", tc.asset, got, tc.want)
		}
	}
}

func TestAssetType_Validate(t *testing.T) {
	for _, a := range AllAssetTypes() {
		if err := a.Validate(); err != nil {
			t.Errorf("Expected %s to validate, got: %v", a, err)
		}
	}

	if err := AssetType("widgets").Validate(); err == nil {
		t.Error("Expected validation error for unknown asset type")
	}
}
