package installers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// newExecContext builds an ExecContext around the in-memory platform with
// fresh bookkeeping sinks and a package rooted in a temp dir.
func newExecContext(t *testing.T, mem *platform.Memory, m *recipe.Manifest) *engine.ExecContext {
	t.Helper()
	return &engine.ExecContext{
		Package: &recipe.Package{
			Root:        t.TempDir(),
			Manifest:    m,
			Fingerprint: "test",
		},
		Platform:       mem.Services(),
		Registry:       engine.NewRegistry(),
		Feedback:       engine.NewFeedback(),
		Status:         engine.NewStatusTracker(),
		BaseURL:        "https://target.example.org",
		WorkDir:        t.TempDir(),
		UpgradeCommand: []string{"php", "admin/cli/upgrade.php", "--non-interactive"},
		Logger:         zerolog.Nop(),
	}
}

// writeAsset writes a file under the package root, creating directories.
func writeAsset(t *testing.T, ec *engine.ExecContext, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(ec.Package.Root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return path
}

// messages flattens all feedback messages of one severity for an entity.
func messages(ec *engine.ExecContext, asset, entity string, severity engine.Severity) []string {
	return ec.Feedback.Snapshot()[asset][entity][string(severity)]
}

// entityCount counts entities under an asset carrying at least one message
// of the severity.
func entityCount(ec *engine.ExecContext, asset string, severity engine.Severity) int {
	n := 0
	for _, bySeverity := range ec.Feedback.Snapshot()[asset] {
		if len(bySeverity[string(severity)]) > 0 {
			n++
		}
	}
	return n
}
