package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// ExecContext carries everything an installer call needs: the extracted
// package, resolved platform services, the shared bookkeeping sinks, and
// ambient run settings. It replaces ambient globals; every installer
// receives it explicitly.
type ExecContext struct {
	// Package is the extracted recipe bundle under execution.
	Package *recipe.Package

	// Platform bundles the host platform collaborators.
	Platform *platform.Services

	// Registry is the old-to-new identifier mapping store for this call.
	Registry *Registry

	// Feedback collects per-entity outcome messages for this call.
	Feedback *Feedback

	// Status tracks the run severity for this call.
	Status *StatusTracker

	// BaseURL is the platform base URL used when rewriting course links.
	BaseURL string

	// WorkDir is the scratch directory for downloads and extraction.
	WorkDir string

	// UpgradeCommand triggers the platform's non-interactive upgrade and
	// registration process, e.g. ["php", "admin/cli/upgrade.php",
	// "--non-interactive"].
	UpgradeCommand []string

	// Logger is the structured logger for this call.
	Logger zerolog.Logger
}

// Installer is the per-asset-type installer contract. Check performs
// read-only validation with the same discovery and resolution logic as
// Execute; several variants also populate registry entries needed by
// sibling installers during the check pass. Execute commits platform
// changes, but only for entities with no recorded error.
//
// Per-entity problems go to the feedback sink; a returned error is treated
// as a failure of the whole asset type and converted to feedback at the
// invocation boundary by the orchestrator.
type Installer interface {
	// AssetType returns the asset type this installer handles.
	AssetType() recipe.AssetType

	// Check validates the installer's slice of the manifest without
	// mutating platform state.
	Check(ctx context.Context, ec *ExecContext) error

	// Execute installs the installer's slice of the manifest.
	Execute(ctx context.Context, ec *ExecContext) error
}

// Constructor builds a fresh installer instance.
type Constructor func() Installer

// InstallerSet is the closed registration map from asset type to installer
// constructor. Unknown asset types are a normal map-miss case handled by
// the orchestrator, not a dynamic lookup failure.
type InstallerSet map[recipe.AssetType]Constructor

// Resolve returns the constructor for an asset type.
func (s InstallerSet) Resolve(a recipe.AssetType) (Constructor, bool) {
	c, ok := s[a]
	return c, ok
}
