package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Memory is an in-memory implementation of every platform service. It backs
// the dev mode of the CLI and the engine tests. All methods are safe for
// concurrent use, although the engine itself is single-threaded.
type Memory struct {
	mu sync.Mutex

	nextID int64

	// Backup metadata keyed by archive path.
	BackupInfos map[string]*BackupInfo

	// RestoreResults keyed by archive path; absent means clean restore.
	RestoreResults map[string]*RestoreResult

	// RestoreSummaries seeds the summary a restore writes into the course,
	// keyed by archive path.
	RestoreSummaries map[string]string

	// Activities created by a restore: archivePath -> modType -> count.
	RestoredActivities map[string]map[string]int

	courses    map[int64]*Course
	activities map[int64]map[string][]int64

	fieldCategories map[string]int64
	fields          map[int64][]Field

	config map[string]map[string]string

	// RemoteVersions keyed by source URL.
	RemoteVersions map[string]*RemoteVersion

	// InstalledPlugins maps component name to installed version.
	InstalledPlugins map[string]int64

	// InstalledReleases maps component name to its release string.
	InstalledReleases map[string]string

	// TypeRoots maps plugin type to its installation directory.
	TypeRoots map[string]string

	// RegisteredComponents tracks components known after upgrade.
	RegisteredComponents map[string]bool

	tables map[string][]map[string]any

	// ScaleIDs maps scale name to installed scale ID.
	ScaleIDs map[string]int64

	// QuestionCount is the number of questions in the bank.
	QuestionCount int

	// QuestionErrors keyed by file path; absent means clean import.
	QuestionErrors map[string][]string

	// Strategies lists resolvable item-param importer strategies.
	Strategies map[string]bool

	// StrategyRuns records dispatched item-param imports by strategy.
	StrategyRuns map[string]int

	// Commands records every subprocess invocation.
	Commands []string

	// CommandErr, when set, fails every subprocess invocation.
	CommandErr error
}

// NewMemory creates an empty in-memory platform.
func NewMemory() *Memory {
	return &Memory{
		nextID:               100,
		BackupInfos:          make(map[string]*BackupInfo),
		RestoreResults:       make(map[string]*RestoreResult),
		RestoreSummaries:     make(map[string]string),
		RestoredActivities:   make(map[string]map[string]int),
		courses:              make(map[int64]*Course),
		activities:           make(map[int64]map[string][]int64),
		fieldCategories:      make(map[string]int64),
		fields:               make(map[int64][]Field),
		config:               make(map[string]map[string]string),
		RemoteVersions:       make(map[string]*RemoteVersion),
		InstalledPlugins:     make(map[string]int64),
		InstalledReleases:    make(map[string]string),
		TypeRoots:            make(map[string]string),
		RegisteredComponents: make(map[string]bool),
		tables:               make(map[string][]map[string]any),
		ScaleIDs:             make(map[string]int64),
		QuestionErrors:       make(map[string][]string),
		Strategies:           make(map[string]bool),
		StrategyRuns:         make(map[string]int),
	}
}

// Services returns the memory platform wired into a Services bundle.
func (m *Memory) Services() *Services {
	return &Services{
		Backups:    m,
		Courses:    m,
		Fields:     m,
		Config:     m,
		Fetcher:    m,
		Plugins:    m,
		Data:       m,
		Scales:     m,
		Questions:  m,
		ItemParams: m,
		Runner:     memoryRunner{m},
	}
}

func (m *Memory) allocID() int64 {
	m.nextID++
	return m.nextID
}

// Inspect implements BackupService.
func (m *Memory) Inspect(_ context.Context, archivePath string) (*BackupInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.BackupInfos[archivePath]
	if !ok {
		return nil, fmt.Errorf("unreadable backup archive: %s", archivePath)
	}
	return info, nil
}

// CourseByShortname implements CourseService.
func (m *Memory) CourseByShortname(_ context.Context, shortname string) (*Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.courses {
		if c.Shortname == shortname {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

// AddCourse seeds an installed course and returns its ID.
func (m *Memory) AddCourse(c Course) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.allocID()
	}
	stored := c
	m.courses[c.ID] = &stored
	return c.ID
}

// CreatePlaceholder implements CourseService.
func (m *Memory) CreatePlaceholder(_ context.Context, category string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.allocID()
	m.courses[id] = &Course{ID: id, Shortname: fmt.Sprintf("placeholder-%d", id)}
	return id, nil
}

// Restore implements CourseService. The restored course adopts the backup's
// shortname and gains the configured number of activity instances.
func (m *Memory) Restore(_ context.Context, archivePath string, courseID int64) (*RestoreResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	course, ok := m.courses[courseID]
	if !ok {
		return nil, fmt.Errorf("course not found: %d", courseID)
	}

	if info, ok := m.BackupInfos[archivePath]; ok {
		course.Shortname = info.Shortname
		course.Fullname = info.Fullname
	}
	if summary, ok := m.RestoreSummaries[archivePath]; ok {
		course.Summary = summary
	}

	counts := m.RestoredActivities[archivePath]
	instances := make(map[string][]int64, len(counts))
	for modType, n := range counts {
		for i := 0; i < n; i++ {
			instances[modType] = append(instances[modType], m.allocID())
		}
	}
	m.activities[courseID] = instances

	if res, ok := m.RestoreResults[archivePath]; ok {
		return res, nil
	}
	return &RestoreResult{}, nil
}

// Publish implements CourseService.
func (m *Memory) Publish(_ context.Context, courseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[courseID]
	if !ok {
		return fmt.Errorf("course not found: %d", courseID)
	}
	course.Visible = true
	return nil
}

// ActivityInstances implements CourseService.
func (m *Memory) ActivityInstances(_ context.Context, courseID int64, modType string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.activities[courseID][modType]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out, nil
}

// CourseSummary implements CourseService.
func (m *Memory) CourseSummary(_ context.Context, courseID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[courseID]
	if !ok {
		return "", fmt.Errorf("course not found: %d", courseID)
	}
	return course.Summary, nil
}

// UpdateSummary implements CourseService.
func (m *Memory) UpdateSummary(_ context.Context, courseID int64, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[courseID]
	if !ok {
		return fmt.Errorf("course not found: %d", courseID)
	}
	course.Summary = summary
	return nil
}

// SetSummary seeds a course summary.
func (m *Memory) SetSummary(courseID int64, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.courses[courseID]; ok {
		c.Summary = summary
	}
}

func categoryKey(component, area, name string) string {
	return component + "/" + area + "/" + name
}

// EnsureCategory implements FieldService.
func (m *Memory) EnsureCategory(_ context.Context, component, area, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := categoryKey(component, area, name)
	if id, ok := m.fieldCategories[key]; ok {
		return id, nil
	}
	id := m.allocID()
	m.fieldCategories[key] = id
	return id, nil
}

// FieldByShortname implements FieldService.
func (m *Memory) FieldByShortname(_ context.Context, categoryID int64, shortname string) (*Field, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.fields[categoryID] {
		if f.Shortname == shortname {
			copied := f
			return &copied, nil
		}
	}
	return nil, nil
}

// SaveField implements FieldService.
func (m *Memory) SaveField(_ context.Context, categoryID int64, def FieldDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[categoryID] = append(m.fields[categoryID], Field{
		ID:        m.allocID(),
		Shortname: def.Shortname,
		Name:      def.Name,
		Type:      def.Type,
	})
	return nil
}

// SeedConfig declares that a plugin exposes a config key with a value.
func (m *Memory) SeedConfig(plugin, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config[plugin] == nil {
		m.config[plugin] = make(map[string]string)
	}
	m.config[plugin][key] = value
}

// Get implements ConfigStore.
func (m *Memory) Get(_ context.Context, plugin, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.config[plugin][key]
	return v, ok, nil
}

// Set implements ConfigStore.
func (m *Memory) Set(_ context.Context, plugin, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.config[plugin][key]; !ok {
		return fmt.Errorf("plugin %s does not expose config key %s", plugin, key)
	}
	m.config[plugin][key] = value
	return nil
}

// FetchVersion implements PluginFetcher.
func (m *Memory) FetchVersion(_ context.Context, sourceURL string) (*RemoteVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.RemoteVersions[sourceURL]
	if !ok {
		return nil, fmt.Errorf("no version metadata at %s", sourceURL)
	}
	return rv, nil
}

// Download implements PluginFetcher. The archive is a placeholder file so
// downstream filesystem moves behave like the real fetcher.
func (m *Memory) Download(_ context.Context, sourceURL, destDir string) (string, error) {
	path := filepath.Join(destDir, "plugin.zip")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Unpack implements PluginFetcher. It materializes the single top-level
// directory a real extraction would produce.
func (m *Memory) Unpack(_ context.Context, archivePath, destDir string) (string, error) {
	dir := filepath.Join(destDir, "plugin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// InstalledVersion implements PluginManager.
func (m *Memory) InstalledVersion(_ context.Context, component string) (*InstalledVersion, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.InstalledPlugins[component]
	if !ok {
		return nil, false, nil
	}
	return &InstalledVersion{Version: v, Release: m.InstalledReleases[component]}, true, nil
}

// TypeRoot implements PluginManager.
func (m *Memory) TypeRoot(pluginType string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, ok := m.TypeRoots[pluginType]
	return root, ok
}

// Registered implements PluginManager.
func (m *Memory) Registered(_ context.Context, component string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RegisteredComponents[component], nil
}

// SeedRows seeds table rows.
func (m *Memory) SeedRows(table string, rows ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], rows...)
}

// EnsureTable declares a table without rows.
func (m *Memory) EnsureTable(table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = []map[string]any{}
	}
}

// TableExists implements DataStore.
func (m *Memory) TableExists(_ context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[table]
	return ok, nil
}

func rowMatches(row, fields map[string]any) bool {
	for k, want := range fields {
		if fmt.Sprint(row[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Exists implements DataStore.
func (m *Memory) Exists(_ context.Context, table string, fields map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tables[table] {
		if rowMatches(row, fields) {
			return true, nil
		}
	}
	return false, nil
}

// Insert implements DataStore.
func (m *Memory) Insert(_ context.Context, table string, record map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		return 0, fmt.Errorf("table not found: %s", table)
	}
	id := m.allocID()
	stored := make(map[string]any, len(record)+1)
	for k, v := range record {
		stored[k] = v
	}
	stored["id"] = id
	m.tables[table] = append(m.tables[table], stored)
	return id, nil
}

// Update implements DataStore.
func (m *Memory) Update(_ context.Context, table string, id int64, record map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tables[table] {
		if fmt.Sprint(row["id"]) == fmt.Sprint(id) {
			for k, v := range record {
				row[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("row %d not found in %s", id, table)
}

// Query implements DataStore.
func (m *Memory) Query(_ context.Context, table string, fields map[string]any) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]any
	for _, row := range m.tables[table] {
		if rowMatches(row, fields) {
			copied := make(map[string]any, len(row))
			for k, v := range row {
				copied[k] = v
			}
			out = append(out, copied)
		}
	}
	return out, nil
}

// Rows returns a copy of all rows in a table, for test assertions.
func (m *Memory) Rows(table string) []map[string]any {
	out, _ := m.Query(context.Background(), table, nil)
	return out
}

// ScaleIDByName implements ScaleResolver.
func (m *Memory) ScaleIDByName(_ context.Context, name string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ScaleIDs[name]
	return id, ok, nil
}

// Import implements QuestionImporter.
func (m *Memory) Import(_ context.Context, file string, _ ImportOptions) (*ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errs, ok := m.QuestionErrors[file]; ok {
		return &ImportResult{Errors: errs}, nil
	}
	m.QuestionCount++
	return &ImportResult{Imported: 1}, nil
}

// HasQuestions implements QuestionImporter.
func (m *Memory) HasQuestions(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.QuestionCount > 0, nil
}

// Known implements ItemParamsImporter.
func (m *Memory) Known(strategy string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Strategies[strategy]
}

// Run implements ItemParamsImporter.
func (m *Memory) Run(_ context.Context, strategy string, _ map[string]any, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Strategies[strategy] {
		return fmt.Errorf("unknown importer strategy: %s", strategy)
	}
	m.StrategyRuns[strategy]++
	return nil
}

// RunCommand satisfies ProcessRunner via the Run method name collision with
// ItemParamsImporter, so Memory routes subprocesses through this wrapper.
type memoryRunner struct {
	m *Memory
}

// Run implements ProcessRunner.
func (r memoryRunner) Run(_ context.Context, dir, name string, args ...string) (*RunOutput, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	cmdLine := name
	for _, a := range args {
		cmdLine += " " + a
	}
	r.m.Commands = append(r.m.Commands, cmdLine)

	if r.m.CommandErr != nil {
		return &RunOutput{ExitCode: 1, Stderr: r.m.CommandErr.Error()}, r.m.CommandErr
	}
	return &RunOutput{ExitCode: 0}, nil
}
