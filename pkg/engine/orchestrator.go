package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
	"github.com/recipekit/recipekit/pkg/telemetry"
)

// Finished reports step completion state to the caller.
type Finished struct {
	// Status is true when no further invocation is needed.
	Status bool `json:"status"`

	// CurrentStep is the next step to execute (or MaxStep when done).
	CurrentStep int `json:"currentstep"`

	// MaxStep is the total number of steps.
	MaxStep int `json:"maxstep"`
}

// Result is the exit contract of both orchestrators.
type Result struct {
	// Feedback is the nested per-asset outcome map.
	Feedback map[string]map[string]map[string][]string `json:"feedback"`

	// Status is the aggregate run severity.
	Status RunStatus `json:"status"`

	// Finished reports resumability state.
	Finished Finished `json:"finished"`

	// MatchingIDs is the identifier registry built during this call.
	MatchingIDs map[string]map[string]string `json:"matchingids,omitempty"`
}

// Options configures an orchestrator.
type Options struct {
	// Platform bundles the host platform collaborators.
	Platform *platform.Services

	// Progress persists install progress. Required for installs, unused
	// by checks.
	Progress ProgressStore

	// Installers maps asset types to installer constructors.
	Installers InstallerSet

	// BaseURL is the platform base URL for link rewriting.
	BaseURL string

	// WorkDir is the scratch directory, cleaned before and after runs.
	WorkDir string

	// UpgradeCommand triggers the platform upgrade process after plugin
	// installation.
	UpgradeCommand []string

	// Metrics is the optional metrics collector.
	Metrics *telemetry.Metrics

	// Logger is the structured logger.
	Logger zerolog.Logger
}

// Orchestrator drives the step plan: Check runs every step's check pass
// over the full manifest in one synchronous call; InstallStep executes
// exactly one step per invocation and persists progress so a long install
// resumes across invocations.
type Orchestrator struct {
	opts Options
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("platform services are required")
	}
	if len(opts.Installers) == 0 {
		return nil, fmt.Errorf("installer set is required")
	}
	return &Orchestrator{opts: opts}, nil
}

// Check runs the non-mutating validation pass over the entire manifest in
// one call. It mirrors the install pass's resolution logic and produces the
// same feedback and registry shape.
func (o *Orchestrator) Check(ctx context.Context, pkg *recipe.Package) (*Result, error) {
	o.cleanWorkDir()
	defer o.cleanWorkDir()

	o.opts.Metrics.RunStarted("check")

	feedback := NewFeedback()
	registry := NewRegistry()
	status := NewStatusTracker()

	plan := NewStepPlan(pkg.Manifest)
	for _, step := range plan.Steps() {
		o.runStep(ctx, pkg, step, false, feedback, registry, status)
	}

	result := &Result{
		Feedback:    feedback.Snapshot(),
		Status:      status.Current(),
		Finished:    Finished{Status: true, CurrentStep: 0, MaxStep: plan.MaxStep()},
		MatchingIDs: registry.Snapshot(),
	}

	o.opts.Metrics.RegistryEntries(registry.Len())
	o.opts.Metrics.RunCompleted("check", status.Current().String())
	return result, nil
}

// InstallStep executes exactly one step of the install for the package's
// manifest fingerprint. The first invocation creates the progress record at
// step 0; each later invocation resumes at the stored step, first rebuilding
// the identifier registry from already-installed platform state so mappings
// produced by earlier steps stay resolvable across process restarts. When
// the final step completes the record is deleted and Finished.Status is
// true.
func (o *Orchestrator) InstallStep(ctx context.Context, pkg *recipe.Package) (*Result, error) {
	if o.opts.Progress == nil {
		return nil, fmt.Errorf("progress store is required for installs")
	}

	o.cleanWorkDir()
	defer o.cleanWorkDir()

	plan := NewStepPlan(pkg.Manifest)

	rec, err := o.opts.Progress.Get(ctx, pkg.Fingerprint)
	switch {
	case errors.Is(err, ErrProgressNotFound):
		rec, err = o.opts.Progress.Create(ctx, pkg.Fingerprint, plan.MaxStep())
		if err != nil {
			return nil, fmt.Errorf("creating progress record: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("loading progress record: %w", err)
	}

	step, ok := plan.Step(rec.CurrentStep)
	if !ok {
		return nil, fmt.Errorf("progress record step %d out of range [0,%d)",
			rec.CurrentStep, plan.MaxStep())
	}

	o.opts.Metrics.RunStarted("install")
	started := time.Now()

	feedback := NewFeedback()
	registry := NewRegistry()
	status := NewStatusTracker()

	// Each invocation starts with an empty registry, so the mappings earlier
	// steps recorded live only in the platform itself. Re-running those
	// steps' non-mutating check passes reads them back (installed courses by
	// shortname, existing data rows, resolved scales) before the current
	// step executes. Their feedback and status stay out of this step's
	// result.
	for i := 0; i < rec.CurrentStep; i++ {
		prior, ok := plan.Step(i)
		if !ok {
			continue
		}
		o.runStep(ctx, pkg, prior, false, NewFeedback(), registry, NewStatusTracker())
	}

	o.runStep(ctx, pkg, step, true, feedback, registry, status)

	o.opts.Metrics.StepExecuted("install", time.Since(started))

	// The step always advances, even after a fatal error; the status in
	// the result tells the caller whether to keep re-invoking.
	next := rec.CurrentStep + 1
	finished := Finished{Status: false, CurrentStep: next, MaxStep: rec.MaxStep}

	if next >= rec.MaxStep {
		if err := o.opts.Progress.Delete(ctx, pkg.Fingerprint); err != nil {
			return nil, fmt.Errorf("deleting completed progress record: %w", err)
		}
		finished.Status = true
	} else {
		if err := o.opts.Progress.Advance(ctx, pkg.Fingerprint, next); err != nil {
			return nil, fmt.Errorf("advancing progress record: %w", err)
		}
	}

	result := &Result{
		Feedback:    feedback.Snapshot(),
		Status:      status.Current(),
		Finished:    finished,
		MatchingIDs: registry.Snapshot(),
	}

	o.opts.Metrics.RegistryEntries(registry.Len())
	o.opts.Metrics.RunCompleted("install", status.Current().String())
	return result, nil
}

// Progress reports the stored progress for a package, or
// ErrProgressNotFound when no record exists (never started, or completed
// and deleted).
func (o *Orchestrator) Progress(ctx context.Context, pkg *recipe.Package) (*ProgressRecord, error) {
	if o.opts.Progress == nil {
		return nil, fmt.Errorf("progress store is required")
	}
	return o.opts.Progress.Get(ctx, pkg.Fingerprint)
}

// runStep invokes each installer of the step, merging feedback, registry,
// and status into the run-wide sinks. An error escaping an installer is
// caught here and converted to per-asset error feedback; one broken asset
// type never aborts the step.
func (o *Orchestrator) runStep(
	ctx context.Context,
	pkg *recipe.Package,
	step Step,
	mutate bool,
	feedback *Feedback,
	registry *Registry,
	status *StatusTracker,
) {
	logger := o.opts.Logger.With().Int("step", step.Index).Logger()

	for _, asset := range step.Assets {
		name := string(asset)

		if !pkg.Manifest.HasEntry(asset) {
			feedback.Reportf(name, name, SeverityError,
				"manifest has no %q entry for step %d", name, step.Index)
			status.Raise(StatusPartial)
			continue
		}

		ctor, ok := o.opts.Installers.Resolve(asset)
		if !ok {
			feedback.Reportf(name, name, SeverityError,
				"no installer registered for asset type %q", name)
			status.Raise(StatusPartial)
			continue
		}

		sub := &ExecContext{
			Package:        pkg,
			Platform:       o.opts.Platform,
			Registry:       registry.Clone(),
			Feedback:       NewFeedback(),
			Status:         NewStatusTracker(),
			BaseURL:        o.opts.BaseURL,
			WorkDir:        o.opts.WorkDir,
			UpgradeCommand: o.opts.UpgradeCommand,
			Logger:         logger.With().Str("asset", name).Logger(),
		}

		inst := ctor()
		var err error
		if mutate {
			err = inst.Execute(ctx, sub)
		} else {
			err = inst.Check(ctx, sub)
		}
		if err != nil {
			sub.Feedback.Reportf(name, name, SeverityError, "installer failed: %v", err)
			if IsFatal(err) {
				sub.Status.Raise(StatusFatal)
			}
			logger.Error().Err(err).Str("asset", name).Msg("Installer failed")
		}

		feedback.Merge(sub.Feedback)
		for _, c := range registry.Merge(sub.Registry) {
			feedback.Report(ReservedAsset, name, SeverityWarning, c.String())
		}
		status.Raise(sub.Status.Current())
		if sub.Feedback.ErrorCount() > 0 {
			status.Raise(StatusPartial)
		}

		for assetName, counts := range sub.Feedback.SeverityCounts() {
			for severity, n := range counts {
				o.opts.Metrics.AssetFeedback(assetName, string(severity), n)
			}
		}
	}
}

// StructuralResult builds the result returned when a structural failure
// (unreadable manifest, undecodable blob, unopenable package) aborts an
// orchestrator call before any step executes.
func StructuralResult(err error) *Result {
	feedback := NewFeedback()
	feedback.Report(ReservedAsset, ReservedAsset, SeverityError, err.Error())
	return &Result{
		Feedback: feedback.Snapshot(),
		Status:   StatusFatal,
		Finished: Finished{Status: true},
	}
}

// cleanWorkDir resets the scratch directory so stale files from one run
// never leak into the next.
func (o *Orchestrator) cleanWorkDir() {
	if o.opts.WorkDir == "" {
		return
	}
	if err := os.RemoveAll(o.opts.WorkDir); err != nil {
		o.opts.Logger.Warn().Err(err).Str("dir", o.opts.WorkDir).Msg("Failed to clean work dir")
		return
	}
	if err := os.MkdirAll(o.opts.WorkDir, 0o755); err != nil {
		o.opts.Logger.Warn().Err(err).Str("dir", o.opts.WorkDir).Msg("Failed to recreate work dir")
	}
}
