package installers

import (
	"testing"
)

func TestFieldPath_GetShapes(t *testing.T) {
	row := map[string]any{
		"json": map[string]any{
			"steps": map[string]any{
				"courseid": float64(42),
			},
			"nullfield": nil,
		},
	}

	tests := []struct {
		name      string
		expr      string
		want      any
		wantFound bool
	}{
		{"arrow separators", "json->steps->courseid", float64(42), true},
		{"dot separators", "json.steps.courseid", float64(42), true},
		{"mixed separators", "json->steps.courseid", float64(42), true},
		{"missing leaf", "json.steps.missing", nil, false},
		{"missing branch", "nope.steps", nil, false},
		{"null value is found", "json.nullfield", nil, true},
		{"empty expression", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ParseFieldPath(tt.expr).Get(row)
			if found != tt.wantFound {
				t.Fatalf("Expected found=%v, got %v", tt.wantFound, found)
			}
			if found && got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFieldPath_Set(t *testing.T) {
	row := map[string]any{
		"json": map[string]any{
			"courseid": float64(42),
		},
	}

	if !ParseFieldPath("json.courseid").Set(row, "142") {
		t.Fatal("Expected set to succeed")
	}
	got, _ := ParseFieldPath("json.courseid").Get(row)
	if got != "142" {
		t.Errorf("Expected 142, got %v", got)
	}

	// Set never creates missing containers or keys.
	if ParseFieldPath("json.other").Set(row, "x") {
		t.Error("Expected set on missing key to fail")
	}
	if ParseFieldPath("json.courseid.deeper").Set(row, "x") {
		t.Error("Expected set through a scalar to fail")
	}
}
