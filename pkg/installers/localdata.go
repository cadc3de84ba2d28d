package installers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// scaleKeyPattern matches JSON object keys that encode an old scale ID:
// prefix_<oldId> with an optional _<suffix> tail.
var scaleKeyPattern = regexp.MustCompile(`^([A-Za-z]+)_(\d+)((?:_[A-Za-z0-9]+)?)$`)

// LocalDataInstaller imports local data in two phases. First every CSV
// matcher file is processed, binding old scale IDs to installed scale IDs by
// name; only this phase writes the catscales namespace. Then every JSON data
// file is processed, each row resolving its course and component references
// through the registry before translation and insert. An unresolved required
// reference aborts the remaining rows of that file, not the run.
type LocalDataInstaller struct{}

// AssetType implements engine.Installer.
func (l *LocalDataInstaller) AssetType() recipe.AssetType { return recipe.AssetLocalData }

// Check implements engine.Installer.
func (l *LocalDataInstaller) Check(ctx context.Context, ec *engine.ExecContext) error {
	return l.run(ctx, ec, false)
}

// Execute implements engine.Installer.
func (l *LocalDataInstaller) Execute(ctx context.Context, ec *engine.ExecContext) error {
	return l.run(ctx, ec, true)
}

func (l *LocalDataInstaller) run(ctx context.Context, ec *engine.ExecContext, mutate bool) error {
	asset := string(recipe.AssetLocalData)
	cfg := ec.Package.Manifest.LocalData
	dir := ec.Package.AssetDir(cfg.Path)

	csvFiles, err := listFiles(dir, ".csv")
	if err != nil {
		return engine.NewEntityError("listing local data files", err).WithAsset(asset)
	}
	jsonFiles, err := listFiles(dir, ".json")
	if err != nil {
		return engine.NewEntityError("listing local data files", err).WithAsset(asset)
	}

	for _, file := range csvFiles {
		l.processMatcherFile(ctx, ec, asset, file)
	}
	for _, file := range jsonFiles {
		l.processDataFile(ctx, ec, asset, cfg, file, mutate)
	}

	return nil
}

// processMatcherFile binds old scale IDs to installed scale IDs. The CSV
// carries an "id" and a "name" column; the name is looked up against the
// installed scales. This runs identically in check and execute so sibling
// checks can already resolve scale references.
func (l *LocalDataInstaller) processMatcherFile(ctx context.Context, ec *engine.ExecContext, asset, file string) {
	entity := baseName(file)

	f, err := os.Open(file)
	if err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError, "opening matcher file: %v", err)
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError, "parsing matcher file: %v", err)
		return
	}
	if len(records) < 2 {
		ec.Feedback.Reportf(asset, entity, engine.SeverityWarning, "matcher file has no data rows")
		return
	}

	idCol, nameCol := -1, -1
	for i, col := range records[0] {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "id":
			idCol = i
		case "name":
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError,
			"matcher file needs id and name columns, got %v", records[0])
		return
	}

	matched := 0
	for _, rec := range records[1:] {
		if len(rec) <= idCol || len(rec) <= nameCol {
			continue
		}
		oldID := strings.TrimSpace(rec[idCol])
		name := strings.TrimSpace(rec[nameCol])

		scaleID, ok, err := ec.Platform.Scales.ScaleIDByName(ctx, name)
		if err != nil {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"scale lookup for %q failed: %v", name, err)
			continue
		}
		if !ok {
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"no installed scale named %q for old id %s", name, oldID)
			continue
		}

		ec.Registry.Put(engine.NamespaceCatScales, oldID, strconv.FormatInt(scaleID, 10))
		matched++
	}

	if matched > 0 {
		ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
			"%d scales matched", matched)
	}
}

// processDataFile imports one JSON data file into the table named after it.
func (l *LocalDataInstaller) processDataFile(
	ctx context.Context,
	ec *engine.ExecContext,
	asset string,
	cfg *recipe.LocalDataConfig,
	file string,
	mutate bool,
) {
	entity := baseName(file)
	table := entity

	var rows []map[string]any
	if err := readJSONFile(file, &rows); err != nil {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError, "%v", err)
		return
	}

	inserted := 0
	for i, row := range rows {
		didInsert, ok := l.processRow(ctx, ec, asset, cfg, table, entity, i, row, mutate)
		if !ok {
			// The rest of the file shares the unresolved dependency.
			ec.Feedback.Reportf(asset, entity, engine.SeverityError,
				"aborting %d remaining rows of %s", len(rows)-i-1, entity)
			return
		}
		if didInsert {
			inserted++
		}
	}

	if mutate && inserted > 0 {
		ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
			"%d rows inserted", inserted)
	}
}

// processRow handles one data row. It reports whether a row was actually
// inserted, and false in the second return only for an unresolved required
// reference, which aborts the file's remaining rows.
func (l *LocalDataInstaller) processRow(
	ctx context.Context,
	ec *engine.ExecContext,
	asset string,
	cfg *recipe.LocalDataConfig,
	table, entity string,
	index int,
	row map[string]any,
	mutate bool,
) (inserted, cont bool) {
	rowName := fmt.Sprintf("%s[%d]", entity, index)

	// Required references resolve through the registry before anything
	// else can happen to the row.
	newCourse, ok := l.resolveRef(ec, asset, rowName, row, "courseid", engine.NamespaceCourses)
	if !ok {
		return false, false
	}
	newComponent, ok := l.resolveRef(ec, asset, rowName, row, "componentid", engine.NamespaceComponents)
	if !ok {
		return false, false
	}

	oldID, hasOldID := idString(row["id"])

	if !mutate {
		// The dry run preloads testid mappings from rows that already
		// exist on the platform, so later checks resolve them.
		if hasOldID {
			l.preloadExisting(ctx, ec, cfg, table, oldID, row)
		}
		return false, true
	}

	translated := make(map[string]any, len(row))
	for k, v := range row {
		translated[k] = v
	}
	delete(translated, "id")
	if newCourse != "" {
		translated["courseid"] = newCourse
	}
	if newComponent != "" {
		translated["componentid"] = newComponent
	}
	l.translateEmbedded(ec, asset, rowName, translated)

	if ec.Feedback.HasError(asset, rowName) {
		// An errored entity must not be inserted.
		return false, true
	}

	if fields := cfg.DuplicateFields[table]; len(fields) > 0 {
		dup, err := l.duplicateExists(ctx, ec, table, translated, fields)
		if err != nil {
			ec.Feedback.Reportf(asset, rowName, engine.SeverityError,
				"duplicate check failed: %v", err)
			return false, true
		}
		if dup {
			ec.Feedback.Reportf(asset, rowName, engine.SeverityWarning,
				"row already exists by %v, skipping insert", fields)
			return false, true
		}
	}

	newID, err := ec.Platform.Data.Insert(ctx, table, translated)
	if err != nil {
		ec.Feedback.Reportf(asset, rowName, engine.SeverityError, "inserting row: %v", err)
		return false, true
	}
	if hasOldID {
		ec.Registry.Put(engine.NamespaceTestID, oldID, strconv.FormatInt(newID, 10))
	}
	return true, true
}

// resolveRef resolves one registry-backed reference field. It returns the
// new ID (empty when the field is absent) and whether processing of the file
// may continue.
func (l *LocalDataInstaller) resolveRef(
	ec *engine.ExecContext,
	asset, rowName string,
	row map[string]any,
	field string,
	ns engine.Namespace,
) (string, bool) {
	raw, present := row[field]
	if !present {
		return "", true
	}
	oldID, ok := idString(raw)
	if !ok {
		ec.Feedback.Reportf(asset, rowName, engine.SeverityError,
			"field %q is not an ID: %v", field, raw)
		return "", false
	}

	newID, ok := ec.Registry.Get(ns, oldID)
	if !ok {
		ec.Feedback.Reportf(asset, rowName, engine.SeverityError,
			"unresolved %s reference %s", field, oldID)
		return "", false
	}
	return newID, true
}

// preloadExisting maps an old row ID to an already-installed row found by
// the duplicate field set, making the testid namespace available to sibling
// checks before any install ran.
func (l *LocalDataInstaller) preloadExisting(
	ctx context.Context,
	ec *engine.ExecContext,
	cfg *recipe.LocalDataConfig,
	table, oldID string,
	row map[string]any,
) {
	fields := cfg.DuplicateFields[table]
	if len(fields) == 0 {
		return
	}

	probe := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := row[f]
		if !ok {
			return
		}
		probe[f] = v
	}

	existing, err := ec.Platform.Data.Query(ctx, table, probe)
	if err != nil || len(existing) == 0 {
		return
	}
	if existingID, ok := idString(existing[0]["id"]); ok {
		ec.Registry.Put(engine.NamespaceTestID, oldID, existingID)
	}
}

// duplicateExists reports whether a row matching the configured field set
// already exists in the table.
func (l *LocalDataInstaller) duplicateExists(
	ctx context.Context,
	ec *engine.ExecContext,
	table string,
	row map[string]any,
	fields []string,
) (bool, error) {
	probe := make(map[string]any, len(fields))
	for _, f := range fields {
		probe[f] = row[f]
	}
	return ec.Platform.Data.Exists(ctx, table, probe)
}

// translateEmbedded rewrites the translatable content inside a row's
// values: embedded JSON blobs get their scale-ID-suffixed keys re-keyed and
// their nested course arrays remapped, and plain strings get embedded
// course links rewritten.
func (l *LocalDataInstaller) translateEmbedded(ec *engine.ExecContext, asset, rowName string, row map[string]any) {
	for k, v := range row {
		s, isString := v.(string)
		if !isString {
			continue
		}

		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var tree any
			if err := json.Unmarshal([]byte(s), &tree); err == nil {
				rewritten := l.rewriteTree(ec, asset, rowName, tree)
				encoded, err := json.Marshal(rewritten)
				if err == nil {
					row[k] = string(encoded)
					continue
				}
			}
		}

		if courseLinkPattern.MatchString(s) {
			row[k] = TranslateCourseLinks(s, ec, asset, rowName)
		}
	}
}

// rewriteTree recursively rewrites a decoded JSON blob: object keys of the
// form prefix_<oldScaleId>[_<suffix>] are re-keyed through the catscales
// namespace, "courses" arrays of IDs are remapped through the courses
// namespace, and embedded links in string leaves are translated.
func (l *LocalDataInstaller) rewriteTree(ec *engine.ExecContext, asset, rowName string, v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			newKey := l.rewriteScaleKey(ec, k)

			if k == "courses" {
				if ids, ok := child.([]any); ok {
					out[newKey] = l.rewriteCourseArray(ec, asset, rowName, ids)
					continue
				}
			}
			out[newKey] = l.rewriteTree(ec, asset, rowName, child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = l.rewriteTree(ec, asset, rowName, child)
		}
		return out
	case string:
		if courseLinkPattern.MatchString(node) {
			return TranslateCourseLinks(node, ec, asset, rowName)
		}
		return node
	default:
		return v
	}
}

// rewriteScaleKey re-keys one prefix_<oldId>[_<suffix>] key through the
// catscales namespace. Keys whose ID has no mapping stay unchanged; the CSV
// matcher phase already reported unmatched scales.
func (l *LocalDataInstaller) rewriteScaleKey(ec *engine.ExecContext, key string) string {
	m := scaleKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return key
	}
	newID, ok := ec.Registry.Get(engine.NamespaceCatScales, m[2])
	if !ok {
		return key
	}
	return m[1] + "_" + newID + m[3]
}

// rewriteCourseArray remaps a nested array of course IDs. Unresolved IDs
// stay in place and are reported.
func (l *LocalDataInstaller) rewriteCourseArray(ec *engine.ExecContext, asset, rowName string, ids []any) []any {
	out := make([]any, len(ids))
	for i, raw := range ids {
		oldID, ok := idString(raw)
		if !ok {
			out[i] = raw
			continue
		}
		newID, ok := ec.Registry.Get(engine.NamespaceCourses, oldID)
		if !ok {
			ec.Feedback.Reportf(asset, rowName, engine.SeverityError,
				"nested course reference %s is unresolved", oldID)
			out[i] = raw
			continue
		}
		out[i] = newID
	}
	return out
}

// idString normalizes a decoded JSON value into an ID string. JSON numbers
// decode as float64.
func idString(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		if n == "" {
			return "", false
		}
		return n, true
	case float64:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case int:
		return strconv.Itoa(n), true
	case json.Number:
		return n.String(), true
	default:
		return "", false
	}
}
