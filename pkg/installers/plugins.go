package installers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// PluginsInstaller installs platform plugins from remote sources. A plugin
// is installed only when its component is not yet present; an installed
// version is never replaced regardless of direction, with a warning for any
// version difference. After all installs of a batch the platform upgrade
// process runs once, and every installed component must come out registered.
type PluginsInstaller struct{}

// AssetType implements engine.Installer.
func (p *PluginsInstaller) AssetType() recipe.AssetType { return recipe.AssetPlugins }

// Check implements engine.Installer.
func (p *PluginsInstaller) Check(ctx context.Context, ec *engine.ExecContext) error {
	return p.run(ctx, ec, false)
}

// Execute implements engine.Installer.
func (p *PluginsInstaller) Execute(ctx context.Context, ec *engine.ExecContext) error {
	return p.run(ctx, ec, true)
}

func (p *PluginsInstaller) run(ctx context.Context, ec *engine.ExecContext, mutate bool) error {
	asset := string(recipe.AssetPlugins)
	cfg := ec.Package.Manifest.Plugins

	var installed []string

	for _, src := range cfg.Sources() {
		component, didInstall := p.processSource(ctx, ec, asset, src, mutate)
		if didInstall {
			installed = append(installed, component)
		}
	}

	if !mutate || len(installed) == 0 {
		return nil
	}

	// One upgrade run for the whole batch, never per plugin.
	if err := p.triggerUpgrade(ctx, ec); err != nil {
		return err
	}

	var unregistered []string
	for _, component := range installed {
		ok, err := ec.Platform.Plugins.Registered(ctx, component)
		if err != nil {
			ec.Feedback.Reportf(asset, component, engine.SeverityError,
				"registration lookup failed: %v", err)
			unregistered = append(unregistered, component)
			continue
		}
		if !ok {
			ec.Feedback.Reportf(asset, component, engine.SeverityError,
				"component %s not registered after upgrade", component)
			unregistered = append(unregistered, component)
			continue
		}
		ec.Feedback.Reportf(asset, component, engine.SeveritySuccess,
			"component %s installed and registered", component)
	}

	if len(unregistered) > 0 {
		return engine.NewFatalError(
			fmt.Sprintf("components not registered after upgrade: %s", strings.Join(unregistered, ", ")),
			nil).WithAsset(asset).WithCode(engine.ErrCodeNotRegistered)
	}
	return nil
}

// processSource handles one declared plugin source. It returns the resolved
// component name and whether an install was performed.
func (p *PluginsInstaller) processSource(
	ctx context.Context,
	ec *engine.ExecContext,
	asset string,
	src recipe.BucketedSource,
	mutate bool,
) (string, bool) {
	entity := src.Source.URL

	// Optional plugin failures report without escalating run status;
	// required ones degrade the run.
	fail := func(format string, args ...any) {
		ec.Feedback.Reportf(asset, entity, engine.SeverityError, format, args...)
		if src.Bucket != recipe.BucketOptional {
			ec.Status.Raise(engine.StatusPartial)
		}
	}

	remote, err := ec.Platform.Fetcher.FetchVersion(ctx, src.Source.URL)
	if err != nil {
		fail("fetching version metadata: %v", err)
		return "", false
	}
	entity = remote.Component

	current, installed, err := ec.Platform.Plugins.InstalledVersion(ctx, remote.Component)
	if err != nil {
		fail("installed version lookup failed: %v", err)
		return "", false
	}
	if installed {
		switch compareVersions(current, remote) {
		case 0:
			ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
				"%s already installed, skipping", describeInstalled(current))
		case 1:
			ec.Feedback.Reportf(asset, entity, engine.SeverityWarning,
				"installed %s is newer than declared %s, skipping", describeInstalled(current), describeRemote(remote))
		default:
			ec.Feedback.Reportf(asset, entity, engine.SeverityWarning,
				"installed %s is older than declared %s, not replacing an installed plugin", describeInstalled(current), describeRemote(remote))
		}
		return "", false
	}

	pluginType, pluginName, err := splitComponent(remote.Component, src.Source.Type)
	if err != nil {
		fail("%v", err)
		return "", false
	}

	root, err := p.resolveRoot(ec, src, pluginType)
	if err != nil {
		fail("%v", err)
		return "", false
	}

	if !mutate {
		ec.Feedback.Reportf(asset, entity, engine.SeveritySuccess,
			"%s will be installed into %s", describeRemote(remote), root)
		return "", false
	}

	if err := probeWritable(root); err != nil {
		fail("target directory not writable: %v", err)
		return "", false
	}

	if err := p.install(ctx, ec, src.Source.URL, root, pluginName); err != nil {
		fail("installing %s: %v", remote.Component, err)
		return "", false
	}

	return remote.Component, true
}

// resolveRoot finds the installation directory for a plugin type. Subplugin
// types absent from the platform's type map are resolved through the
// manifest's subplugins table, whose entries are "<parenttype>/<relpath>"
// under the parent type's root.
func (p *PluginsInstaller) resolveRoot(ec *engine.ExecContext, src recipe.BucketedSource, pluginType string) (string, error) {
	if root, ok := ec.Platform.Plugins.TypeRoot(pluginType); ok {
		return root, nil
	}

	if src.Bucket == recipe.BucketSubplugin {
		rel, ok := ec.Package.Manifest.Subplugins[pluginType]
		if ok {
			parent, remainder, found := strings.Cut(rel, "/")
			if found {
				if parentRoot, ok := ec.Platform.Plugins.TypeRoot(parent); ok {
					return filepath.Join(parentRoot, remainder), nil
				}
			}
			return "", fmt.Errorf("subplugin path %q does not resolve to an installed parent type", rel)
		}
	}

	return "", fmt.Errorf("no installation directory for plugin type %q", pluginType)
}

// install downloads, unpacks and moves one plugin into place, then
// initializes version control metadata pointing back at the source.
func (p *PluginsInstaller) install(ctx context.Context, ec *engine.ExecContext, sourceURL, root, pluginName string) error {
	stage, err := os.MkdirTemp(ec.WorkDir, "plugin-")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}

	archive, err := ec.Platform.Fetcher.Download(ctx, sourceURL, stage)
	if err != nil {
		return fmt.Errorf("downloading archive: %w", err)
	}

	top, err := ec.Platform.Fetcher.Unpack(ctx, archive, stage)
	if err != nil {
		return fmt.Errorf("unpacking archive: %w", err)
	}

	target := filepath.Join(root, pluginName)
	if err := os.Rename(top, target); err != nil {
		return fmt.Errorf("moving plugin into %s: %w", root, err)
	}

	// Version control bootstrap is best-effort; a failed git init leaves
	// the plugin installed but untracked.
	if _, err := ec.Platform.Runner.Run(ctx, target, "git", "init"); err != nil {
		ec.Logger.Warn().Err(err).Str("plugin", pluginName).Msg("Git init failed")
		return nil
	}
	if _, err := ec.Platform.Runner.Run(ctx, target, "git", "remote", "add", "origin", sourceURL); err != nil {
		ec.Logger.Warn().Err(err).Str("plugin", pluginName).Msg("Git remote setup failed")
	}
	return nil
}

// triggerUpgrade runs the platform's non-interactive upgrade process.
func (p *PluginsInstaller) triggerUpgrade(ctx context.Context, ec *engine.ExecContext) error {
	asset := string(recipe.AssetPlugins)

	if len(ec.UpgradeCommand) == 0 {
		return engine.NewFatalError("no upgrade command configured", nil).
			WithAsset(asset).WithCode(engine.ErrCodeUpgradeFailed)
	}

	out, err := ec.Platform.Runner.Run(ctx, "", ec.UpgradeCommand[0], ec.UpgradeCommand[1:]...)
	if err != nil {
		return engine.NewFatalError("upgrade process failed", err).
			WithAsset(asset).WithCode(engine.ErrCodeUpgradeFailed)
	}
	if out.ExitCode != 0 {
		return engine.NewFatalError(
			fmt.Sprintf("upgrade process exited %d: %s", out.ExitCode, out.Stderr), nil).
			WithAsset(asset).WithCode(engine.ErrCodeUpgradeFailed)
	}
	return nil
}

// splitComponent derives (pluginType, pluginName) from a frankenstyle
// component name, honoring an explicit type override from the recipe.
func splitComponent(component, typeOverride string) (pluginType, pluginName string, err error) {
	t, name, found := strings.Cut(component, "_")
	if !found {
		return "", "", fmt.Errorf("component %q is not a type_name pair", component)
	}
	if typeOverride != "" {
		t = typeOverride
	}
	return t, name, nil
}

// compareVersions orders an installed plugin against the remote metadata.
// When both sides advertise parseable semver releases the releases decide;
// otherwise the integer version numbers do.
func compareVersions(current *platform.InstalledVersion, remote *platform.RemoteVersion) int {
	if current.Release != "" && remote.Release != "" {
		a, errA := semver.NewVersion(current.Release)
		b, errB := semver.NewVersion(remote.Release)
		if errA == nil && errB == nil {
			return a.Compare(b)
		}
	}
	switch {
	case current.Version == remote.Version:
		return 0
	case current.Version > remote.Version:
		return 1
	default:
		return -1
	}
}

// describeRemote renders the remote version for messages, preferring the
// semver release string when the source advertises a parseable one.
func describeRemote(remote *platform.RemoteVersion) string {
	if remote.Release != "" {
		if v, err := semver.NewVersion(remote.Release); err == nil {
			return fmt.Sprintf("release %s (version %d)", v.String(), remote.Version)
		}
	}
	return fmt.Sprintf("version %d", remote.Version)
}

// describeInstalled renders the installed version the same way.
func describeInstalled(current *platform.InstalledVersion) string {
	if current.Release != "" {
		if v, err := semver.NewVersion(current.Release); err == nil {
			return fmt.Sprintf("release %s (version %d)", v.String(), current.Version)
		}
	}
	return fmt.Sprintf("version %d", current.Version)
}

// probeWritable verifies the directory accepts new entries by creating and
// removing a temp file.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
