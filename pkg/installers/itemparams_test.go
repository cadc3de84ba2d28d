package installers

import (
	"context"
	"testing"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
)

func itemParamsManifest(strategy string) *recipe.Manifest {
	return &recipe.Manifest{
		Name:       "demo",
		Steps:      [][]recipe.AssetType{{recipe.AssetItemParams}},
		ItemParams: &recipe.ItemParamsConfig{Path: "params", Strategy: strategy},
	}
}

func TestItemParams_DispatchesCSVFiles(t *testing.T) {
	mem := platform.NewMemory()
	mem.QuestionCount = 5
	mem.Strategies["raschbirnbaum"] = true
	ec := newExecContext(t, mem, itemParamsManifest("raschbirnbaum"))

	writeAsset(t, ec, "params/a.csv", []byte("item,difficulty\n1,0.5\n"))
	writeAsset(t, ec, "params/b.csv", []byte("item,difficulty\n2,0.7\n"))
	writeAsset(t, ec, "params/notes.txt", []byte("ignored"))

	inst := &ItemParamsInstaller{}
	if err := inst.Execute(context.Background(), ec); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if mem.StrategyRuns["raschbirnbaum"] != 2 {
		t.Errorf("Expected 2 dispatches, got %d", mem.StrategyRuns["raschbirnbaum"])
	}
}

func TestItemParams_UnknownStrategy(t *testing.T) {
	tests := []struct {
		name         string
		mutate       bool
		wantSeverity engine.Severity
	}{
		{"check warns", false, engine.SeverityWarning},
		{"execute errors", true, engine.SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := platform.NewMemory()
			mem.QuestionCount = 5
			ec := newExecContext(t, mem, itemParamsManifest("missing"))
			writeAsset(t, ec, "params/a.csv", []byte("item\n1\n"))

			inst := &ItemParamsInstaller{}
			var err error
			if tt.mutate {
				err = inst.Execute(context.Background(), ec)
			} else {
				err = inst.Check(context.Background(), ec)
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}

			if n := len(messages(ec, "itemparams", "itemparams", tt.wantSeverity)); n != 1 {
				t.Errorf("Expected one %s message, got %v", tt.wantSeverity, ec.Feedback.Snapshot())
			}
			if len(mem.StrategyRuns) != 0 {
				t.Errorf("Expected no dispatch, got %v", mem.StrategyRuns)
			}
		})
	}
}

func TestItemParams_RequiresExistingQuestions(t *testing.T) {
	mem := platform.NewMemory()
	mem.Strategies["raschbirnbaum"] = true
	ec := newExecContext(t, mem, itemParamsManifest("raschbirnbaum"))
	writeAsset(t, ec, "params/a.csv", []byte("item\n1\n"))

	inst := &ItemParamsInstaller{}
	if err := inst.Execute(context.Background(), ec); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if n := len(messages(ec, "itemparams", "itemparams", engine.SeverityError)); n != 1 {
		t.Errorf("Expected precondition error, got %v", ec.Feedback.Snapshot())
	}
	if mem.StrategyRuns["raschbirnbaum"] != 0 {
		t.Error("Expected no dispatch without questions")
	}
}
