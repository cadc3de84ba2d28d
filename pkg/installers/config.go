package installers

import (
	"context"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// ConfigInstaller writes plugin configuration values. A value is only
// written when the plugin already exposes the key, so a recipe can never
// create stray config entries; a missing key is a warning in the dry run and
// an error on execute, with no write attempted.
type ConfigInstaller struct{}

// AssetType implements engine.Installer.
func (c *ConfigInstaller) AssetType() recipe.AssetType { return recipe.AssetConfig }

// Check implements engine.Installer.
func (c *ConfigInstaller) Check(ctx context.Context, ec *engine.ExecContext) error {
	return c.run(ctx, ec, false)
}

// Execute implements engine.Installer.
func (c *ConfigInstaller) Execute(ctx context.Context, ec *engine.ExecContext) error {
	return c.run(ctx, ec, true)
}

func (c *ConfigInstaller) run(ctx context.Context, ec *engine.ExecContext, mutate bool) error {
	asset := string(recipe.AssetConfig)

	for _, entry := range ec.Package.Manifest.Config.Entries {
		_, exposed, err := ec.Platform.Config.Get(ctx, entry.Plugin, entry.Key)
		if err != nil {
			ec.Feedback.Reportf(asset, entry.Plugin, engine.SeverityError,
				"reading config key %q: %v", entry.Key, err)
			continue
		}

		if !exposed {
			severity := engine.SeverityWarning
			if mutate {
				severity = engine.SeverityError
			}
			ec.Feedback.Reportf(asset, entry.Plugin, severity,
				"plugin does not expose config key %q", entry.Key)
			continue
		}

		if !mutate {
			ec.Feedback.Reportf(asset, entry.Plugin, engine.SeveritySuccess,
				"config key %q present", entry.Key)
			continue
		}

		if err := ec.Platform.Config.Set(ctx, entry.Plugin, entry.Key, entry.Value); err != nil {
			ec.Feedback.Reportf(asset, entry.Plugin, engine.SeverityError,
				"writing config key %q: %v", entry.Key, err)
			continue
		}
		ec.Feedback.Reportf(asset, entry.Plugin, engine.SeveritySuccess,
			"config key %q updated", entry.Key)
	}

	return nil
}
