package installers

import (
	"context"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// fieldCategoryFile is one JSON file under the customfields path: a field
// category plus the field definitions it holds.
type fieldCategoryFile struct {
	Component string                     `json:"component"`
	Area      string                     `json:"area"`
	Name      string                     `json:"name"`
	Fields    []platform.FieldDefinition `json:"fields"`
}

// CustomFieldsInstaller creates or reuses named field categories and adds
// the field definitions they are missing. Fields whose shortname already
// exists in the category are skipped as duplicates.
type CustomFieldsInstaller struct{}

// AssetType implements engine.Installer.
func (c *CustomFieldsInstaller) AssetType() recipe.AssetType { return recipe.AssetCustomFields }

// Check implements engine.Installer.
func (c *CustomFieldsInstaller) Check(ctx context.Context, ec *engine.ExecContext) error {
	return c.run(ctx, ec, false)
}

// Execute implements engine.Installer.
func (c *CustomFieldsInstaller) Execute(ctx context.Context, ec *engine.ExecContext) error {
	return c.run(ctx, ec, true)
}

func (c *CustomFieldsInstaller) run(ctx context.Context, ec *engine.ExecContext, mutate bool) error {
	asset := string(recipe.AssetCustomFields)
	cfg := ec.Package.Manifest.CustomFields

	files, err := listFiles(ec.Package.AssetDir(cfg.Path), ".json")
	if err != nil {
		return engine.NewEntityError("listing custom field files", err).WithAsset(asset)
	}

	for _, file := range files {
		entity := baseName(file)

		var group fieldCategoryFile
		if err := readJSONFile(file, &group); err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError, "%v", err)
			continue
		}
		if group.Name == "" || group.Component == "" {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"field category file needs component and name")
			continue
		}

		if !mutate {
			ec.Feedback.Reportf(asset, group.Name, engine.SeveritySuccess,
				"category %q with %d field definitions ready", group.Name, len(group.Fields))
			continue
		}

		// Category creation failure takes the whole group down.
		categoryID, err := ec.Platform.Fields.EnsureCategory(ctx, group.Component, group.Area, group.Name)
		if err != nil {
			ec.Feedback.Reportf(asset, group.Name, engine.SeverityError,
				"creating field category: %v", err)
			continue
		}

		for _, def := range group.Fields {
			existing, err := ec.Platform.Fields.FieldByShortname(ctx, categoryID, def.Shortname)
			if err != nil {
				ec.Feedback.Reportf(asset, def.Shortname, engine.SeverityError,
					"field lookup failed: %v", err)
				continue
			}
			if existing != nil {
				ec.Feedback.Reportf(asset, def.Shortname, engine.SeveritySuccess,
					"field %q already exists, skipped", def.Shortname)
				continue
			}

			if err := ec.Platform.Fields.SaveField(ctx, categoryID, def); err != nil {
				ec.Feedback.Reportf(asset, def.Shortname, engine.SeverityError,
					"saving field: %v", err)
				continue
			}
			ec.Feedback.Reportf(asset, def.Shortname, engine.SeveritySuccess,
				"field %q created in category %q", def.Shortname, group.Name)
		}
	}

	return nil
}
