package installers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// LearningPathsInstaller imports learning path table rows. Each JSON file
// holds one table's rows; configured path expressions locate the nested ID
// references inside each row, which resolve against the registry before the
// row may be inserted. Dependent records pointing at the old path ID are
// re-pointed after insert.
type LearningPathsInstaller struct{}

// AssetType implements engine.Installer.
func (l *LearningPathsInstaller) AssetType() recipe.AssetType { return recipe.AssetLearningPaths }

// Check implements engine.Installer.
func (l *LearningPathsInstaller) Check(ctx context.Context, ec *engine.ExecContext) error {
	return l.run(ctx, ec, false)
}

// Execute implements engine.Installer.
func (l *LearningPathsInstaller) Execute(ctx context.Context, ec *engine.ExecContext) error {
	return l.run(ctx, ec, true)
}

func (l *LearningPathsInstaller) run(ctx context.Context, ec *engine.ExecContext, mutate bool) error {
	asset := string(recipe.AssetLearningPaths)
	cfg := ec.Package.Manifest.LearningPaths

	files, err := listFiles(ec.Package.AssetDir(cfg.Path), ".json")
	if err != nil {
		return engine.NewEntityError("listing learning path files", err).WithAsset(asset)
	}

	nameField := cfg.NameField
	if nameField == "" {
		nameField = "name"
	}

	for _, file := range files {
		table := baseName(file)

		exists, err := ec.Platform.Data.TableExists(ctx, table)
		if err != nil {
			ec.Feedback.Reportf(asset, table, engine.SeverityError, "table lookup failed: %v", err)
			continue
		}
		if !exists {
			ec.Feedback.Reportf(asset, table, engine.SeverityError,
				"target table %q does not exist", table)
			continue
		}

		var rows []map[string]any
		if err := readJSONFile(file, &rows); err != nil {
			ec.Feedback.Reportf(asset, table, engine.SeverityError, "%v", err)
			continue
		}

		for i, row := range rows {
			l.processRow(ctx, ec, asset, cfg, table, nameField, i, row, mutate)
		}
	}

	return nil
}

func (l *LearningPathsInstaller) processRow(
	ctx context.Context,
	ec *engine.ExecContext,
	asset string,
	cfg *recipe.LearningPathsConfig,
	table, nameField string,
	index int,
	row map[string]any,
	mutate bool,
) {
	entity := fmt.Sprintf("%s[%d]", table, index)
	if name, ok := row[nameField].(string); ok && name != "" {
		entity = name
	}

	if name, ok := row[nameField]; ok {
		dup, err := ec.Platform.Data.Exists(ctx, table, map[string]any{nameField: name})
		if err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError, "duplicate check failed: %v", err)
			return
		}
		if dup {
			ec.Feedback.Reportf(asset, entity, engine.SeverityWarning,
				"a %q row named %v already exists, skipping", table, name)
			return
		}
	}

	for nsName, exprs := range cfg.Paths {
		ns := engine.Namespace(nsName)
		for _, expr := range exprs {
			l.resolvePath(ec, asset, entity, ns, expr, row, mutate)
		}
	}

	if !mutate {
		if !ec.Feedback.HasError(asset, entity) {
			ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess, "row resolves cleanly")
		}
		return
	}

	if ec.Feedback.HasError(asset, entity) {
		// Never insert a row whose dependency already errored.
		return
	}

	oldID, hasOldID := idString(row["id"])

	record := make(map[string]any, len(row))
	for k, v := range row {
		record[k] = v
	}
	delete(record, "id")

	newID, err := ec.Platform.Data.Insert(ctx, table, record)
	if err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError, "inserting row: %v", err)
		return
	}
	ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess, "row inserted as id %d", newID)

	if hasOldID {
		ec.Registry.Put(engine.NamespaceLearningPaths, oldID, strconv.FormatInt(newID, 10))
		l.repointDependents(ctx, ec, asset, entity, cfg, oldID, newID)
	}
}

// resolvePath resolves one path expression inside a row against a registry
// namespace. Three reference shapes are accepted: a list of scalar IDs, a
// single scalar ID, or an object exposing an "id" back-reference. In update
// mode the resolved values are rewritten in place.
func (l *LearningPathsInstaller) resolvePath(
	ec *engine.ExecContext,
	asset, entity string,
	ns engine.Namespace,
	expr string,
	row map[string]any,
	mutate bool,
) {
	path := ParseFieldPath(expr)
	value, found := path.Get(row)
	if !found {
		return
	}

	switch node := value.(type) {
	case []any:
		out := make([]any, len(node))
		for i, raw := range node {
			resolved, ok := l.resolveScalar(ec, asset, entity, ns, expr, raw)
			if !ok {
				return
			}
			out[i] = resolved
		}
		if mutate {
			path.Set(row, out)
		}
	case map[string]any:
		raw, ok := node["id"]
		if !ok {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"path %s points at an object without an id", path)
			return
		}
		resolved, ok := l.resolveScalar(ec, asset, entity, ns, expr, raw)
		if !ok {
			return
		}
		if mutate {
			node["id"] = resolved
		}
	case nil:
		// Present but null: nothing to resolve.
	default:
		resolved, ok := l.resolveScalar(ec, asset, entity, ns, expr, value)
		if !ok {
			return
		}
		if mutate {
			path.Set(row, resolved)
		}
	}
}

func (l *LearningPathsInstaller) resolveScalar(
	ec *engine.ExecContext,
	asset, entity string,
	ns engine.Namespace,
	expr string,
	raw any,
) (string, bool) {
	oldID, ok := idString(raw)
	if !ok {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"path %s holds a non-ID value: %v", expr, raw)
		return "", false
	}
	newID, ok := ec.Registry.Get(ns, oldID)
	if !ok {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"unresolved %s reference %s at %s", ns, oldID, expr)
		return "", false
	}
	return newID, true
}

// repointDependents re-points records that reference the learning path by
// its old ID to the newly inserted ID, warning when none were found.
func (l *LearningPathsInstaller) repointDependents(
	ctx context.Context,
	ec *engine.ExecContext,
	asset, entity string,
	cfg *recipe.LearningPathsConfig,
	oldID string,
	newID int64,
) {
	if cfg.DependentTable == "" || cfg.DependentField == "" {
		return
	}

	dependents, err := ec.Platform.Data.Query(ctx, cfg.DependentTable,
		map[string]any{cfg.DependentField: oldID})
	if err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"querying dependent records: %v", err)
		return
	}
	if len(dependents) == 0 {
		ec.Feedback.Reportf(asset, entity, engine.SeverityWarning,
			"no %s records referenced old id %s", cfg.DependentTable, oldID)
		return
	}

	for _, dep := range dependents {
		depID, ok := idString(dep["id"])
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(depID, 10, 64)
		if err != nil {
			continue
		}
		if err := ec.Platform.Data.Update(ctx, cfg.DependentTable, id,
			map[string]any{cfg.DependentField: newID}); err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"re-pointing dependent record %s: %v", depID, err)
		}
	}
}
