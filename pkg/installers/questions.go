package installers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// QuestionsInstaller feeds question bank export files to the platform's
// question-format importer, one file at a time, in a fixed course context.
// Errors are captured per file; sibling files keep importing.
type QuestionsInstaller struct{}

// AssetType implements engine.Installer.
func (q *QuestionsInstaller) AssetType() recipe.AssetType { return recipe.AssetQuestions }

// Check implements engine.Installer.
func (q *QuestionsInstaller) Check(ctx context.Context, ec *engine.ExecContext) error {
	asset := string(recipe.AssetQuestions)
	cfg := ec.Package.Manifest.Questions

	files, err := listFiles(ec.Package.AssetDir(cfg.Path))
	if err != nil {
		return engine.NewEntityError("listing question files", err).WithAsset(asset)
	}

	for _, file := range files {
		entity := filepath.Base(file)
		if _, err := os.Stat(file); err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError, "unreadable: %v", err)
			continue
		}
		ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess, "ready to import")
	}

	return nil
}

// Execute implements engine.Installer.
func (q *QuestionsInstaller) Execute(ctx context.Context, ec *engine.ExecContext) error {
	asset := string(recipe.AssetQuestions)
	cfg := ec.Package.Manifest.Questions

	files, err := listFiles(ec.Package.AssetDir(cfg.Path))
	if err != nil {
		return engine.NewEntityError("listing question files", err).WithAsset(asset)
	}

	opts := platform.ImportOptions{
		CourseID:          cfg.CourseID,
		StopOnError:       true,
		MatchGradesStrict: true,
		CategoryFromFile:  true,
		ContextFromFile:   true,
	}

	for _, file := range files {
		entity := filepath.Base(file)

		result, err := ec.Platform.Questions.Import(ctx, file, opts)
		if err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError, "import failed: %v", err)
			continue
		}
		if len(result.Errors) > 0 {
			for _, e := range result.Errors {
				ec.Feedback.Report(asset, entity, engine.SeverityError, e)
			}
			continue
		}
		ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
			"%d questions imported", result.Imported)
	}

	return nil
}
