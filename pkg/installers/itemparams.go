package installers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// ItemParamsInstaller dispatches CSV item parameter files to a named
// importer strategy. The strategy must be resolvable and at least one
// question must already exist in the bank before anything is dispatched.
type ItemParamsInstaller struct{}

// AssetType implements engine.Installer.
func (p *ItemParamsInstaller) AssetType() recipe.AssetType { return recipe.AssetItemParams }

// Check implements engine.Installer.
func (p *ItemParamsInstaller) Check(ctx context.Context, ec *engine.ExecContext) error {
	return p.run(ctx, ec, false)
}

// Execute implements engine.Installer.
func (p *ItemParamsInstaller) Execute(ctx context.Context, ec *engine.ExecContext) error {
	return p.run(ctx, ec, true)
}

func (p *ItemParamsInstaller) run(ctx context.Context, ec *engine.ExecContext, mutate bool) error {
	asset := string(recipe.AssetItemParams)
	cfg := ec.Package.Manifest.ItemParams

	// An unavailable importer is only a warning in the dry run; the
	// execute pass treats it as an error.
	degraded := engine.SeverityWarning
	if mutate {
		degraded = engine.SeverityError
	}

	hasQuestions, err := ec.Platform.Questions.HasQuestions(ctx)
	if err != nil {
		return engine.NewEntityError("question bank lookup failed", err).WithAsset(asset)
	}
	if !hasQuestions {
		ec.Feedback.Reportf(asset, asset, degraded,
			"no questions exist yet, item parameters need an imported question bank")
		return nil
	}

	if cfg.Strategy == "" || !ec.Platform.ItemParams.Known(cfg.Strategy) {
		ec.Feedback.Reportf(asset, asset, degraded,
			"importer strategy %q is not available", cfg.Strategy)
		return nil
	}

	files, err := listFiles(ec.Package.AssetDir(cfg.Path), ".csv")
	if err != nil {
		return engine.NewEntityError("listing item parameter files", err).WithAsset(asset)
	}

	for _, file := range files {
		entity := filepath.Base(file)

		content, err := os.ReadFile(file)
		if err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError, "unreadable: %v", err)
			continue
		}

		if !mutate {
			ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
				"ready for importer %q", cfg.Strategy)
			continue
		}

		if err := ec.Platform.ItemParams.Run(ctx, cfg.Strategy, cfg.Options, content); err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError, "import failed: %v", err)
			continue
		}
		ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
			"dispatched to importer %q", cfg.Strategy)
	}

	return nil
}
