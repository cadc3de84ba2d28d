package recipe

import (
	"fmt"
)

// AssetType identifies one category of installable content.
type AssetType string

const (
	// AssetCourses installs course backup archives.
	AssetCourses AssetType = "courses"

	// AssetCustomFields installs custom field categories and definitions.
	AssetCustomFields AssetType = "customfields"

	// AssetPlugins installs platform plugins from remote sources.
	AssetPlugins AssetType = "plugins"

	// AssetConfig writes plugin configuration key/value pairs.
	AssetConfig AssetType = "config"

	// AssetLocalData imports CSV matcher files and JSON data rows.
	AssetLocalData AssetType = "localdata"

	// AssetLearningPaths imports learning path table rows with nested
	// ID references.
	AssetLearningPaths AssetType = "learningpaths"

	// AssetQuestions imports question bank export files.
	AssetQuestions AssetType = "questions"

	// AssetItemParams dispatches CSV item parameter files to an external
	// importer strategy.
	AssetItemParams AssetType = "itemparams"
)

// AllAssetTypes lists every known asset type.
func AllAssetTypes() []AssetType {
	return []AssetType{
		AssetCourses,
		AssetCustomFields,
		AssetPlugins,
		AssetConfig,
		AssetLocalData,
		AssetLearningPaths,
		AssetQuestions,
		AssetItemParams,
	}
}

// Validate checks if the asset type is one of the known categories.
func (a AssetType) Validate() error {
	switch a {
	case AssetCourses, AssetCustomFields, AssetPlugins, AssetConfig,
		AssetLocalData, AssetLearningPaths, AssetQuestions, AssetItemParams:
		return nil
	default:
		return fmt.Errorf("unknown asset type: %s", a)
	}
}

// Manifest is the parsed recipe document. Steps reference asset types by
// tag; every referenced tag must have a matching top-level entry or the
// engine records a recoverable per-step error.
type Manifest struct {
	// Name is the human-readable recipe name.
	Name string `json:"name" validate:"required"`

	// Version is the recipe revision string.
	Version string `json:"version,omitempty"`

	// Steps is the ordered sequence of asset type sets. Each inner set is
	// executed together as one resumable unit.
	Steps [][]AssetType `json:"steps" validate:"required,min=1,dive,min=1"`

	// Courses configures the course backup installer.
	Courses *CoursesConfig `json:"courses,omitempty"`

	// CustomFields configures the custom field installer.
	CustomFields *CustomFieldsConfig `json:"customfields,omitempty"`

	// Plugins configures the plugin installer.
	Plugins *PluginsConfig `json:"plugins,omitempty"`

	// Config lists plugin configuration values to write.
	Config *ConfigConfig `json:"config,omitempty"`

	// LocalData configures the CSV/JSON local data installer.
	LocalData *LocalDataConfig `json:"localdata,omitempty"`

	// LearningPaths configures the learning path installer.
	LearningPaths *LearningPathsConfig `json:"learningpaths,omitempty"`

	// Questions configures the question bank installer.
	Questions *QuestionsConfig `json:"questions,omitempty"`

	// ItemParams configures the item parameter installer.
	ItemParams *ItemParamsConfig `json:"itemparams,omitempty"`

	// Subplugins maps plugin types to relative paths inside a parent
	// plugin directory.
	Subplugins map[string]string `json:"subplugins,omitempty"`
}

// MaxStep returns the number of steps in the manifest.
func (m *Manifest) MaxStep() int {
	return len(m.Steps)
}

// HasEntry reports whether the manifest carries a top-level entry for the
// given asset type.
func (m *Manifest) HasEntry(a AssetType) bool {
	switch a {
	case AssetCourses:
		return m.Courses != nil
	case AssetCustomFields:
		return m.CustomFields != nil
	case AssetPlugins:
		return m.Plugins != nil
	case AssetConfig:
		return m.Config != nil
	case AssetLocalData:
		return m.LocalData != nil
	case AssetLearningPaths:
		return m.LearningPaths != nil
	case AssetQuestions:
		return m.Questions != nil
	case AssetItemParams:
		return m.ItemParams != nil
	default:
		return false
	}
}

// CoursesConfig configures the course backup installer.
type CoursesConfig struct {
	// Path is the directory inside the package holding backup archives,
	// one archive per course.
	Path string `json:"path" validate:"required"`

	// Category is the name of the course category that placeholder
	// courses are created in. Empty selects a generated name.
	Category string `json:"category,omitempty"`
}

// CustomFieldsConfig configures the custom field installer.
type CustomFieldsConfig struct {
	// Path is the directory holding one JSON array file per field
	// category group.
	Path string `json:"path" validate:"required"`
}

// PluginSource declares one remote plugin source.
type PluginSource struct {
	// URL is the plugin source repository or release URL.
	URL string `json:"url" validate:"required,url"`

	// Type is the plugin type (e.g. "mod", "local") used to resolve the
	// installation directory. Empty means the type is derived from the
	// detected component name.
	Type string `json:"type,omitempty"`
}

// PluginsConfig configures the plugin installer.
type PluginsConfig struct {
	// Required plugins must install; failures escalate run status.
	Required []PluginSource `json:"required,omitempty" validate:"dive"`

	// Optional plugins report errors without escalating.
	Optional []PluginSource `json:"optional,omitempty" validate:"dive"`

	// Subplugins install into a parent plugin's subplugin directory.
	Subplugins []PluginSource `json:"subplugins,omitempty" validate:"dive"`
}

// Sources returns all plugin sources with their bucket name, in
// required, optional, subplugin order.
func (c *PluginsConfig) Sources() []BucketedSource {
	out := make([]BucketedSource, 0, len(c.Required)+len(c.Optional)+len(c.Subplugins))
	for _, s := range c.Required {
		out = append(out, BucketedSource{Source: s, Bucket: BucketRequired})
	}
	for _, s := range c.Optional {
		out = append(out, BucketedSource{Source: s, Bucket: BucketOptional})
	}
	for _, s := range c.Subplugins {
		out = append(out, BucketedSource{Source: s, Bucket: BucketSubplugin})
	}
	return out
}

// Bucket classifies a plugin source.
type Bucket string

const (
	BucketRequired  Bucket = "required"
	BucketOptional  Bucket = "optional"
	BucketSubplugin Bucket = "subplugin"
)

// BucketedSource pairs a plugin source with its bucket.
type BucketedSource struct {
	Source PluginSource
	Bucket Bucket
}

// ConfigEntry is one (plugin, key, value) configuration triple.
type ConfigEntry struct {
	Plugin string `json:"plugin" validate:"required"`
	Key    string `json:"key" validate:"required"`
	Value  string `json:"value"`
}

// ConfigConfig configures the plugin configuration installer.
type ConfigConfig struct {
	Entries []ConfigEntry `json:"entries" validate:"required,min=1,dive"`
}

// LocalDataConfig configures the local data installer.
type LocalDataConfig struct {
	// Path is the directory holding .csv matcher files and .json data
	// files.
	Path string `json:"path" validate:"required"`

	// DuplicateFields maps a table name to the field set used for
	// duplicate detection before insert.
	DuplicateFields map[string][]string `json:"duplicatefields,omitempty"`
}

// LearningPathsConfig configures the learning path installer.
type LearningPathsConfig struct {
	// Path is the directory holding one JSON array file per table.
	Path string `json:"path" validate:"required"`

	// Paths maps an identifier namespace to the path expressions that
	// locate references of that namespace inside each row. Expressions
	// use "->" or "." separated key traversal.
	Paths map[string][]string `json:"paths,omitempty"`

	// NameField is the row field checked for duplicate names before
	// insert. Defaults to "name".
	NameField string `json:"namefield,omitempty"`

	// DependentTable and DependentField describe records that reference a
	// learning path by its old ID and must be re-pointed after insert.
	DependentTable string `json:"dependenttable,omitempty"`
	DependentField string `json:"dependentfield,omitempty"`
}

// QuestionsConfig configures the question bank installer.
type QuestionsConfig struct {
	// Path is the directory holding one question export file per file.
	Path string `json:"path" validate:"required"`

	// CourseID is the fixed course context questions are imported into.
	CourseID int64 `json:"courseid,omitempty"`
}

// ItemParamsConfig configures the item parameter installer.
type ItemParamsConfig struct {
	// Path is the directory holding .csv item parameter files.
	Path string `json:"path" validate:"required"`

	// Strategy names the importer strategy the files are dispatched to.
	Strategy string `json:"strategy,omitempty"`

	// Options are passed through to the importer strategy.
	Options map[string]any `json:"options,omitempty"`
}
