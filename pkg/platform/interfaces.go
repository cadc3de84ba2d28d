package platform

import (
	"context"
)

// Course is an installed course record.
type Course struct {
	// ID is the platform course ID.
	ID int64 `json:"id"`

	// Shortname is the unique course short name.
	Shortname string `json:"shortname"`

	// Fullname is the course display name.
	Fullname string `json:"fullname"`

	// Summary is the course description, may embed course-view links.
	Summary string `json:"summary"`

	// Visible reports whether the course is published.
	Visible bool `json:"visible"`

	// CategoryID is the category the course lives in.
	CategoryID int64 `json:"category_id"`
}

// BackupInfo is the metadata parsed from a course backup archive.
type BackupInfo struct {
	// OriginalCourseID is the course ID in the system the backup was
	// exported from.
	OriginalCourseID int64 `json:"original_course_id"`

	// Shortname is the original course short name.
	Shortname string `json:"shortname"`

	// Fullname is the original course display name.
	Fullname string `json:"fullname"`

	// Activities maps a module type (e.g. "adaptivequiz", "quiz") to the
	// original activity IDs of that type, in backup order.
	Activities map[string][]int64 `json:"activities"`
}

// RestoreResult reports the outcome of restoring a backup into a course.
type RestoreResult struct {
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// BackupService reads course backup archives. Archive extraction mechanics
// live behind this interface.
type BackupService interface {
	// Inspect parses backup metadata without restoring.
	Inspect(ctx context.Context, archivePath string) (*BackupInfo, error)
}

// CourseService manages courses on the host platform.
type CourseService interface {
	// CourseByShortname finds an installed course by short name. A nil
	// course with nil error means no such course exists.
	CourseByShortname(ctx context.Context, shortname string) (*Course, error)

	// CreatePlaceholder creates an empty course in the named category
	// (creating the category if needed) and returns its ID.
	CreatePlaceholder(ctx context.Context, category string) (int64, error)

	// Restore restores a backup archive into the target course.
	Restore(ctx context.Context, archivePath string, courseID int64) (*RestoreResult, error)

	// Publish force-sets the course visible.
	Publish(ctx context.Context, courseID int64) error

	// ActivityInstances lists the instance IDs of the given module type
	// inside a course, in creation order.
	ActivityInstances(ctx context.Context, courseID int64, modType string) ([]int64, error)

	// CourseSummary returns the current course summary text.
	CourseSummary(ctx context.Context, courseID int64) (string, error)

	// UpdateSummary replaces the course summary text.
	UpdateSummary(ctx context.Context, courseID int64, summary string) error
}

// Field is an installed custom field definition.
type Field struct {
	ID        int64  `json:"id"`
	Shortname string `json:"shortname"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

// FieldDefinition describes a custom field to create.
type FieldDefinition struct {
	Shortname  string `json:"shortname"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	ConfigData string `json:"configdata,omitempty"`
}

// FieldService manages custom field categories and definitions.
type FieldService interface {
	// EnsureCategory creates or reuses a named field category for the
	// given component and area, returning its ID.
	EnsureCategory(ctx context.Context, component, area, name string) (int64, error)

	// FieldByShortname finds a field in a category. Nil with nil error
	// means absent.
	FieldByShortname(ctx context.Context, categoryID int64, shortname string) (*Field, error)

	// SaveField creates a field in the category.
	SaveField(ctx context.Context, categoryID int64, def FieldDefinition) error
}

// ConfigStore reads and writes plugin configuration values.
type ConfigStore interface {
	// Get returns the value of a plugin config key and whether the
	// plugin exposes that key at all.
	Get(ctx context.Context, plugin, key string) (string, bool, error)

	// Set writes a plugin config value.
	Set(ctx context.Context, plugin, key, value string) error
}

// RemoteVersion is the version metadata advertised by a plugin source.
type RemoteVersion struct {
	// Component is the frankenstyle component name.
	Component string `json:"component"`

	// Version is the integer plugin version number.
	Version int64 `json:"version"`

	// Release is the human release string, often semver.
	Release string `json:"release,omitempty"`

	// DownloadURL is where the plugin archive is fetched from.
	DownloadURL string `json:"download_url"`
}

// PluginFetcher retrieves remote plugin metadata and archives. Network
// mechanics live behind this interface.
type PluginFetcher interface {
	// FetchVersion retrieves remote version metadata for a source URL.
	FetchVersion(ctx context.Context, sourceURL string) (*RemoteVersion, error)

	// Download fetches the plugin archive into destDir and returns the
	// archive path.
	Download(ctx context.Context, sourceURL, destDir string) (string, error)

	// Unpack extracts the archive into destDir and returns the single
	// top-level directory it produced.
	Unpack(ctx context.Context, archivePath, destDir string) (string, error)
}

// InstalledVersion describes a component already present on the target.
type InstalledVersion struct {
	// Version is the integer plugin version number.
	Version int64 `json:"version"`

	// Release is the human release string, often semver.
	Release string `json:"release,omitempty"`
}

// PluginManager queries and registers installed plugins.
type PluginManager interface {
	// InstalledVersion returns the installed version of a component, and
	// whether it is installed at all.
	InstalledVersion(ctx context.Context, component string) (*InstalledVersion, bool, error)

	// TypeRoot resolves the installation directory for a plugin type.
	TypeRoot(pluginType string) (string, bool)

	// Registered reports whether a component is registered with the
	// platform after the upgrade process ran.
	Registered(ctx context.Context, component string) (bool, error)
}

// DataStore is generic row storage for local data and learning path tables.
type DataStore interface {
	// TableExists reports whether the table is present.
	TableExists(ctx context.Context, table string) (bool, error)

	// Exists reports whether a row matching all fields exists.
	Exists(ctx context.Context, table string, fields map[string]any) (bool, error)

	// Insert adds a row and returns its new ID.
	Insert(ctx context.Context, table string, record map[string]any) (int64, error)

	// Update replaces fields of the row with the given ID.
	Update(ctx context.Context, table string, id int64, record map[string]any) error

	// Query returns all rows matching the fields. An empty field map
	// matches every row.
	Query(ctx context.Context, table string, fields map[string]any) ([]map[string]any, error)
}

// ScaleResolver looks up installed cat scales by name.
type ScaleResolver interface {
	// ScaleIDByName returns the installed scale ID for a scale name and
	// whether it exists.
	ScaleIDByName(ctx context.Context, name string) (int64, bool, error)
}

// ImportOptions configures a question bank import.
type ImportOptions struct {
	// CourseID is the course context the import runs in.
	CourseID int64 `json:"course_id"`

	// StopOnError aborts the file on the first broken question.
	StopOnError bool `json:"stop_on_error"`

	// MatchGradesStrict errors on grades that do not match exactly.
	MatchGradesStrict bool `json:"match_grades_strict"`

	// CategoryFromFile takes the question category from the file.
	CategoryFromFile bool `json:"category_from_file"`

	// ContextFromFile takes the question context from the file.
	ContextFromFile bool `json:"context_from_file"`
}

// ImportResult reports the outcome of one question import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}

// QuestionImporter runs the platform question-format importer.
type QuestionImporter interface {
	// Import imports one question export file.
	Import(ctx context.Context, file string, opts ImportOptions) (*ImportResult, error)

	// HasQuestions reports whether at least one question exists.
	HasQuestions(ctx context.Context) (bool, error)
}

// ItemParamsImporter dispatches CSV content to a named importer strategy.
type ItemParamsImporter interface {
	// Known reports whether the strategy can be resolved.
	Known(strategy string) bool

	// Run dispatches the CSV content to the strategy.
	Run(ctx context.Context, strategy string, options map[string]any, csv []byte) error
}

// RunOutput is the result of a subprocess invocation.
type RunOutput struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// ProcessRunner executes subprocesses (version control bootstrap, platform
// upgrade trigger) so core logic stays testable without real shells.
type ProcessRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (*RunOutput, error)
}

// Services bundles every collaborator the engine consumes.
type Services struct {
	Backups    BackupService
	Courses    CourseService
	Fields     FieldService
	Config     ConfigStore
	Fetcher    PluginFetcher
	Plugins    PluginManager
	Data       DataStore
	Scales     ScaleResolver
	Questions  QuestionImporter
	ItemParams ItemParamsImporter
	Runner     ProcessRunner
}
