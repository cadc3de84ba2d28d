// Package installers holds the per-asset-type installers the engine
// dispatches to. Each installer consumes its slice of the manifest plus the
// extracted package files, resolves identifiers through the shared registry,
// and reports outcomes through the feedback sink.
package installers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// Default returns the full installer registration map.
func Default() engine.InstallerSet {
	return engine.InstallerSet{
		recipe.AssetCourses:       func() engine.Installer { return &CoursesInstaller{} },
		recipe.AssetCustomFields:  func() engine.Installer { return &CustomFieldsInstaller{} },
		recipe.AssetPlugins:       func() engine.Installer { return &PluginsInstaller{} },
		recipe.AssetConfig:        func() engine.Installer { return &ConfigInstaller{} },
		recipe.AssetLocalData:     func() engine.Installer { return &LocalDataInstaller{} },
		recipe.AssetLearningPaths: func() engine.Installer { return &LearningPathsInstaller{} },
		recipe.AssetQuestions:     func() engine.Installer { return &QuestionsInstaller{} },
		recipe.AssetItemParams:    func() engine.Installer { return &ItemParamsInstaller{} },
	}
}

// listFiles returns the regular files directly under dir, sorted by name.
// When extensions are given only matching files are returned.
func listFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading asset directory %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if len(exts) > 0 {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			matched := false
			for _, want := range exts {
				if ext == want {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}

	sort.Strings(out)
	return out, nil
}

// readJSONFile decodes one JSON file into v.
func readJSONFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// baseName returns the file name without its extension, used as the entity
// or table name for file-grained assets.
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
