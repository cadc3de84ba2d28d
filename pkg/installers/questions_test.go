package installers

import (
	"context"
	"testing"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
)

func questionsManifest() *recipe.Manifest {
	return &recipe.Manifest{
		Name:      "demo",
		Steps:     [][]recipe.AssetType{{recipe.AssetQuestions}},
		Questions: &recipe.QuestionsConfig{Path: "questions", CourseID: 42},
	}
}

func TestQuestions_ImportsPerFileErrorsIsolated(t *testing.T) {
	mem := platform.NewMemory()
	ec := newExecContext(t, mem, questionsManifest())

	writeAsset(t, ec, "questions/bank-a.xml", []byte("<quiz/>"))
	broken := writeAsset(t, ec, "questions/bank-b.xml", []byte("<quiz/>"))
	mem.QuestionErrors[broken] = []string{"question 3 is malformed", "grade mismatch"}

	inst := &QuestionsInstaller{}
	if err := inst.Execute(context.Background(), ec); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if n := len(messages(ec, "questions", "bank-a.xml", engine.SeveritySuccess)); n != 1 {
		t.Errorf("Expected success for the clean file, got %v", ec.Feedback.Snapshot())
	}
	if n := len(messages(ec, "questions", "bank-b.xml", engine.SeverityError)); n != 2 {
		t.Errorf("Expected both import errors captured, got %v", ec.Feedback.Snapshot())
	}

	has, _ := mem.HasQuestions(context.Background())
	if !has {
		t.Error("Expected the clean import to land in the bank")
	}
}

func TestQuestions_CheckDoesNotImport(t *testing.T) {
	mem := platform.NewMemory()
	ec := newExecContext(t, mem, questionsManifest())

	writeAsset(t, ec, "questions/bank.xml", []byte("<quiz/>"))

	inst := &QuestionsInstaller{}
	if err := inst.Check(context.Background(), ec); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	has, _ := mem.HasQuestions(context.Background())
	if has {
		t.Error("Expected dry run not to import questions")
	}
	if n := len(messages(ec, "questions", "bank.xml", engine.SeveritySuccess)); n != 1 {
		t.Errorf("Expected readiness success, got %v", ec.Feedback.Snapshot())
	}
}
