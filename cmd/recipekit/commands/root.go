package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recipekit/recipekit/pkg/engine"
	"github.com/recipekit/recipekit/pkg/installers"
	"github.com/recipekit/recipekit/pkg/platform"
	"github.com/recipekit/recipekit/pkg/recipe"
	"github.com/recipekit/recipekit/pkg/stores"
	"github.com/recipekit/recipekit/pkg/telemetry"
)

var (
	// Global flags
	storePath  string
	baseURL    string
	workDir    string
	upgradeCmd []string
	metricsOn  bool
	realExec   bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recipekit",
		Short: "Recipekit - recipe-driven content installer",
		Long: `Recipekit installs declarative recipe packages into a learning platform:
archived courses, custom fields, plugins, configuration values, local data,
learning paths, question banks and item parameters, in a deterministic
step order with resumable progress.

Commands run against the built-in development platform; production
deployments wire the real platform services in their own binary.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "recipekit.db", "progress database path")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost", "platform base URL for link rewriting")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "scratch directory for downloads and extraction")
	rootCmd.PersistentFlags().StringSliceVar(&upgradeCmd, "upgrade-cmd", []string{"php", "admin/cli/upgrade.php", "--non-interactive"}, "platform upgrade command")
	rootCmd.PersistentFlags().BoolVar(&metricsOn, "metrics", false, "enable the Prometheus metrics collector")
	rootCmd.PersistentFlags().BoolVar(&realExec, "real-exec", false, "run git and upgrade subprocesses for real instead of recording them")

	// Add subcommands
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newProgressCommand())
	rootCmd.AddCommand(newUnpackCommand())

	return rootCmd
}

// newOrchestrator wires the engine against the development platform.
func newOrchestrator(progress engine.ProgressStore) (*engine.Orchestrator, error) {
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{
		Enabled:   metricsOn,
		Namespace: "recipekit",
	})
	if err != nil {
		return nil, fmt.Errorf("creating metrics collector: %w", err)
	}

	services := platform.NewMemory().Services()
	if realExec {
		services.Runner = platform.ExecRunner{}
	}

	return engine.New(engine.Options{
		Platform:       services,
		Progress:       progress,
		Installers:     installers.Default(),
		BaseURL:        baseURL,
		WorkDir:        workDir,
		UpgradeCommand: upgradeCmd,
		Metrics:        metrics,
		Logger:         log.Logger,
	})
}

// openProgressStore initializes the SQLite progress store.
func openProgressStore(ctx context.Context) (*stores.SQLiteProgressStore, error) {
	store, err := stores.NewSQLiteProgressStore(stores.Config{Path: storePath})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// openPackage loads an extracted recipe package from a directory.
func openPackage(path string) (*recipe.Package, error) {
	pkg, err := recipe.Open(path)
	if err != nil {
		return nil, engine.NewStructuralError("opening recipe package", err).
			WithCode(engine.ErrCodeManifest)
	}
	return pkg, nil
}

// printResult writes the orchestrator result contract to stdout.
func printResult(result *engine.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
