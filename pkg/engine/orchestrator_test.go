package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// memProgressStore is a map-backed ProgressStore for orchestrator tests.
type memProgressStore struct {
	mu      sync.Mutex
	records map[string]*ProgressRecord
}

func newMemProgressStore() *memProgressStore {
	return &memProgressStore{records: make(map[string]*ProgressRecord)}
}

func (s *memProgressStore) Get(_ context.Context, fingerprint string) (*ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[fingerprint]
	if !ok {
		return nil, ErrProgressNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *memProgressStore) Create(_ context.Context, fingerprint string, maxStep int) (*ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[fingerprint]; ok {
		return nil, fmt.Errorf("record exists: %s", fingerprint)
	}
	now := time.Now().UTC()
	rec := &ProgressRecord{
		Fingerprint: fingerprint,
		CurrentStep: 0,
		MaxStep:     maxStep,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	s.records[fingerprint] = rec
	copied := *rec
	return &copied, nil
}

func (s *memProgressStore) Advance(_ context.Context, fingerprint string, currentStep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[fingerprint]
	if !ok {
		return ErrProgressNotFound
	}
	rec.CurrentStep = currentStep
	rec.ModifiedAt = time.Now().UTC()
	return nil
}

func (s *memProgressStore) Delete(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[fingerprint]; !ok {
		return ErrProgressNotFound
	}
	delete(s.records, fingerprint)
	return nil
}

// recordingInstaller logs every invocation to a shared trace and optionally
// fails, reports feedback, or writes registry entries.
type recordingInstaller struct {
	asset   recipe.AssetType
	trace   *[]string
	execErr error
	onExec  func(ec *ExecContext)
}

func (r *recordingInstaller) AssetType() recipe.AssetType { return r.asset }

func (r *recordingInstaller) Check(_ context.Context, ec *ExecContext) error {
	*r.trace = append(*r.trace, "check:"+string(r.asset))
	if r.onExec != nil {
		r.onExec(ec)
	}
	return r.execErr
}

func (r *recordingInstaller) Execute(_ context.Context, ec *ExecContext) error {
	*r.trace = append(*r.trace, "exec:"+string(r.asset))
	if r.onExec != nil {
		r.onExec(ec)
	}
	return r.execErr
}

func installerSetFor(installers ...*recordingInstaller) InstallerSet {
	set := make(InstallerSet)
	for _, inst := range installers {
		inst := inst
		set[inst.asset] = func() Installer { return inst }
	}
	return set
}

func testPackage(steps [][]recipe.AssetType) *recipe.Package {
	m := &recipe.Manifest{Name: "demo", Version: "1.0.0", Steps: steps}
	// Give every referenced asset type a manifest entry.
	for _, step := range steps {
		for _, a := range step {
			switch a {
			case recipe.AssetCourses:
				m.Courses = &recipe.CoursesConfig{Path: "courses"}
			case recipe.AssetCustomFields:
				m.CustomFields = &recipe.CustomFieldsConfig{Path: "fields.json"}
			case recipe.AssetPlugins:
				m.Plugins = &recipe.PluginsConfig{}
			case recipe.AssetConfig:
				m.Config = &recipe.ConfigConfig{}
			case recipe.AssetLocalData:
				m.LocalData = &recipe.LocalDataConfig{Path: "data"}
			case recipe.AssetLearningPaths:
				m.LearningPaths = &recipe.LearningPathsConfig{Path: "paths.json"}
			case recipe.AssetQuestions:
				m.Questions = &recipe.QuestionsConfig{Path: "questions.xml"}
			case recipe.AssetItemParams:
				m.ItemParams = &recipe.ItemParamsConfig{Path: "params.csv", Strategy: "simple"}
			}
		}
	}
	return &recipe.Package{Root: "/tmp/unused", Manifest: m, Fingerprint: "fp-" + m.Name}
}

func testOrchestrator(t *testing.T, store ProgressStore, set InstallerSet) *Orchestrator {
	t.Helper()
	orch, err := New(Options{
		Platform:   platform.NewMemory().Services(),
		Progress:   store,
		Installers: set,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return orch
}

func TestNew_RequiresPlatformAndInstallers(t *testing.T) {
	if _, err := New(Options{Installers: make(InstallerSet)}); err == nil {
		t.Error("Expected error for missing platform")
	}
	if _, err := New(Options{Platform: platform.NewMemory().Services()}); err == nil {
		t.Error("Expected error for empty installer set")
	}
}

func TestInstallStep_ResumesAcrossInvocations(t *testing.T) {
	var trace []string
	set := installerSetFor(
		&recordingInstaller{asset: recipe.AssetPlugins, trace: &trace},
		&recordingInstaller{asset: recipe.AssetCourses, trace: &trace},
		&recordingInstaller{asset: recipe.AssetConfig, trace: &trace},
	)
	pkg := testPackage([][]recipe.AssetType{
		{recipe.AssetPlugins},
		{recipe.AssetCourses},
		{recipe.AssetConfig},
	})
	store := newMemProgressStore()
	orch := testOrchestrator(t, store, set)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		result, err := orch.InstallStep(ctx, pkg)
		if err != nil {
			t.Fatalf("Invocation %d: expected no error, got: %v", i, err)
		}
		wantFinished := i == 2
		if result.Finished.Status != wantFinished {
			t.Errorf("Invocation %d: expected finished=%v, got %v", i, wantFinished, result.Finished.Status)
		}
		if result.Finished.CurrentStep != i+1 {
			t.Errorf("Invocation %d: expected currentstep %d, got %d", i, i+1, result.Finished.CurrentStep)
		}
		if result.Finished.MaxStep != 3 {
			t.Errorf("Invocation %d: expected maxstep 3, got %d", i, result.Finished.MaxStep)
		}
		if result.Status != StatusOK {
			t.Errorf("Invocation %d: expected status ok, got %s", i, result.Status)
		}
	}

	// Each resumed invocation replays the check passes of the steps before
	// its own to rebuild the registry, then executes its step.
	want := []string{
		"exec:plugins",
		"check:plugins", "exec:courses",
		"check:plugins", "check:courses", "exec:config",
	}
	if len(trace) != len(want) {
		t.Fatalf("Expected trace %v, got %v", want, trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("Trace[%d]: expected %q, got %q", i, want[i], trace[i])
		}
	}

	// Terminal step deletes the record.
	if _, err := store.Get(ctx, pkg.Fingerprint); !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("Expected record deleted after completion, got: %v", err)
	}
}

func TestInstallStep_MissingManifestEntryDegrades(t *testing.T) {
	var trace []string
	set := installerSetFor(
		&recordingInstaller{asset: recipe.AssetCourses, trace: &trace},
	)
	// Step references courses but the manifest carries no entry for it.
	pkg := testPackage(nil)
	pkg.Manifest.Steps = [][]recipe.AssetType{{recipe.AssetCourses}}
	store := newMemProgressStore()
	orch := testOrchestrator(t, store, set)

	result, err := orch.InstallStep(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Status != StatusPartial {
		t.Errorf("Expected partial status, got %s", result.Status)
	}
	if !result.Finished.Status {
		t.Error("Expected single-step run to finish despite degraded asset")
	}
	if len(trace) != 0 {
		t.Errorf("Expected installer not to run, got trace %v", trace)
	}
	if _, ok := result.Feedback["courses"]; !ok {
		t.Error("Expected error feedback under the courses asset")
	}
}

func TestInstallStep_UnknownInstallerDegrades(t *testing.T) {
	var trace []string
	// Only a config installer registered; the step wants courses too.
	set := installerSetFor(
		&recordingInstaller{asset: recipe.AssetConfig, trace: &trace},
	)
	pkg := testPackage([][]recipe.AssetType{{recipe.AssetCourses, recipe.AssetConfig}})
	orch := testOrchestrator(t, newMemProgressStore(), set)

	result, err := orch.InstallStep(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Status != StatusPartial {
		t.Errorf("Expected partial status, got %s", result.Status)
	}
	if len(trace) != 1 || trace[0] != "exec:config" {
		t.Errorf("Expected remaining installer to run, got trace %v", trace)
	}
}

func TestInstallStep_FatalErrorStillAdvances(t *testing.T) {
	var trace []string
	set := installerSetFor(
		&recordingInstaller{
			asset:   recipe.AssetPlugins,
			trace:   &trace,
			execErr: NewFatalError("plugin upgrade failed", nil),
		},
		&recordingInstaller{asset: recipe.AssetConfig, trace: &trace},
	)
	pkg := testPackage([][]recipe.AssetType{
		{recipe.AssetPlugins},
		{recipe.AssetConfig},
	})
	store := newMemProgressStore()
	orch := testOrchestrator(t, store, set)

	ctx := context.Background()
	result, err := orch.InstallStep(ctx, pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Status != StatusFatal {
		t.Errorf("Expected fatal status, got %s", result.Status)
	}

	// The cursor still moved: the next invocation runs step 1.
	rec, err := store.Get(ctx, pkg.Fingerprint)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if rec.CurrentStep != 1 {
		t.Errorf("Expected progress at step 1, got %d", rec.CurrentStep)
	}

	result, err = orch.InstallStep(ctx, pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Status != StatusOK {
		t.Errorf("Expected clean status for second step, got %s", result.Status)
	}
}

func TestInstallStep_InstallerErrorBecomesFeedback(t *testing.T) {
	var trace []string
	set := installerSetFor(
		&recordingInstaller{
			asset:   recipe.AssetConfig,
			trace:   &trace,
			execErr: errors.New("backend unavailable"),
		},
	)
	pkg := testPackage([][]recipe.AssetType{{recipe.AssetConfig}})
	orch := testOrchestrator(t, newMemProgressStore(), set)

	result, err := orch.InstallStep(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Status != StatusPartial {
		t.Errorf("Expected partial status for non-fatal error, got %s", result.Status)
	}
	entries := result.Feedback["config"]["config"][string(SeverityError)]
	if len(entries) != 1 {
		t.Fatalf("Expected one error entry, got %v", entries)
	}
}

func TestInstallStep_RegistryFlowsBetweenInstallers(t *testing.T) {
	var trace []string
	var seenByCourses string
	set := installerSetFor(
		&recordingInstaller{
			asset: recipe.AssetPlugins,
			trace: &trace,
			onExec: func(ec *ExecContext) {
				ec.Registry.Put(NamespaceComponents, "old-quiz", "new-quiz")
			},
		},
		&recordingInstaller{
			asset: recipe.AssetCourses,
			trace: &trace,
			onExec: func(ec *ExecContext) {
				seenByCourses, _ = ec.Registry.Get(NamespaceComponents, "old-quiz")
			},
		},
	)
	pkg := testPackage([][]recipe.AssetType{
		{recipe.AssetPlugins, recipe.AssetCourses},
	})
	orch := testOrchestrator(t, newMemProgressStore(), set)

	result, err := orch.InstallStep(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if seenByCourses != "new-quiz" {
		t.Errorf("Expected courses installer to see plugin mapping, got %q", seenByCourses)
	}
	if result.MatchingIDs[string(NamespaceComponents)]["old-quiz"] != "new-quiz" {
		t.Errorf("Expected mapping in result, got %v", result.MatchingIDs)
	}
}

func TestInstallStep_RegistryRebuiltAcrossInvocations(t *testing.T) {
	var trace []string
	var seenByLocalData string
	set := installerSetFor(
		&recordingInstaller{
			asset: recipe.AssetCourses,
			trace: &trace,
			onExec: func(ec *ExecContext) {
				// The install records the mapping; the replayed check pass
				// reads the same mapping back from installed state.
				ec.Registry.Put(NamespaceCourses, "10", "101")
			},
		},
		&recordingInstaller{
			asset: recipe.AssetLocalData,
			trace: &trace,
			onExec: func(ec *ExecContext) {
				seenByLocalData, _ = ec.Registry.Get(NamespaceCourses, "10")
			},
		},
	)
	pkg := testPackage([][]recipe.AssetType{
		{recipe.AssetCourses},
		{recipe.AssetLocalData},
	})
	store := newMemProgressStore()
	orch := testOrchestrator(t, store, set)

	ctx := context.Background()
	if _, err := orch.InstallStep(ctx, pkg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Second process invocation starts with an empty registry; the courses
	// mapping must be rebuilt before local data executes.
	result, err := orch.InstallStep(ctx, pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if seenByLocalData != "101" {
		t.Errorf("Expected local data to resolve course 10 to 101, got %q", seenByLocalData)
	}
	if result.MatchingIDs[string(NamespaceCourses)]["10"] != "101" {
		t.Errorf("Expected rebuilt mapping in result, got %v", result.MatchingIDs)
	}
	// The replayed check pass keeps its feedback out of this step's result.
	if _, ok := result.Feedback["courses"]; ok {
		t.Errorf("Expected no courses feedback in the second step, got %v", result.Feedback["courses"])
	}
}

func TestInstallStep_RegistryConflictReportsWarning(t *testing.T) {
	var trace []string
	set := installerSetFor(
		&recordingInstaller{
			asset: recipe.AssetPlugins,
			trace: &trace,
			onExec: func(ec *ExecContext) {
				ec.Registry.Put(NamespaceCourses, "10", "20")
			},
		},
		&recordingInstaller{
			asset: recipe.AssetCourses,
			trace: &trace,
			onExec: func(ec *ExecContext) {
				// Conflicts with the mapping the plugins installer wrote.
				ec.Registry.Put(NamespaceCourses, "10", "99")
			},
		},
	)
	pkg := testPackage([][]recipe.AssetType{
		{recipe.AssetPlugins, recipe.AssetCourses},
	})
	orch := testOrchestrator(t, newMemProgressStore(), set)

	result, err := orch.InstallStep(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.MatchingIDs[string(NamespaceCourses)]["10"] != "20" {
		t.Errorf("Expected first write to win, got %v", result.MatchingIDs)
	}
	warnings := result.Feedback[ReservedAsset]["courses"][string(SeverityWarning)]
	if len(warnings) != 1 {
		t.Fatalf("Expected one conflict warning, got %v", result.Feedback[ReservedAsset])
	}
}

func TestCheck_RunsAllStepsWithoutProgress(t *testing.T) {
	var trace []string
	set := installerSetFor(
		&recordingInstaller{asset: recipe.AssetPlugins, trace: &trace},
		&recordingInstaller{asset: recipe.AssetCourses, trace: &trace},
	)
	pkg := testPackage([][]recipe.AssetType{
		{recipe.AssetPlugins},
		{recipe.AssetCourses},
	})

	// No progress store: Check must not need one.
	orch := testOrchestrator(t, nil, set)

	result, err := orch.Check(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Finished.Status {
		t.Error("Expected check to report finished")
	}
	if result.Finished.MaxStep != 2 {
		t.Errorf("Expected maxstep 2, got %d", result.Finished.MaxStep)
	}
	want := []string{"check:plugins", "check:courses"}
	if len(trace) != 2 || trace[0] != want[0] || trace[1] != want[1] {
		t.Errorf("Expected trace %v, got %v", want, trace)
	}
}

func TestInstallStep_RequiresProgressStore(t *testing.T) {
	set := installerSetFor(&recordingInstaller{asset: recipe.AssetConfig, trace: new([]string)})
	orch := testOrchestrator(t, nil, set)

	pkg := testPackage([][]recipe.AssetType{{recipe.AssetConfig}})
	if _, err := orch.InstallStep(context.Background(), pkg); err == nil {
		t.Error("Expected error without a progress store")
	}
}

func TestProgress_NotFoundBeforeFirstStep(t *testing.T) {
	set := installerSetFor(&recordingInstaller{asset: recipe.AssetConfig, trace: new([]string)})
	orch := testOrchestrator(t, newMemProgressStore(), set)

	pkg := testPackage([][]recipe.AssetType{{recipe.AssetConfig}})
	if _, err := orch.Progress(context.Background(), pkg); !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("Expected ErrProgressNotFound, got: %v", err)
	}
}

func TestStructuralResult(t *testing.T) {
	result := StructuralResult(errors.New("manifest unreadable"))

	if result.Status != StatusFatal {
		t.Errorf("Expected fatal status, got %s", result.Status)
	}
	if !result.Finished.Status {
		t.Error("Expected structural result to report finished")
	}
	entries := result.Feedback[ReservedAsset][ReservedAsset][string(SeverityError)]
	if len(entries) != 1 || entries[0] != "manifest unreadable" {
		t.Errorf("Unexpected feedback: %v", result.Feedback)
	}
}
