package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recipekit/recipekit/pkg/engine"
)

func newInstallCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "install <package-dir>",
		Short: "Execute the next install step of a recipe package",
		Long: `Install executes exactly one step of the recipe per invocation and
persists progress keyed by the manifest fingerprint, so a long install
resumes across invocations and timeouts. Re-run the command until the
result reports finished, or pass --all to run every remaining step in
one process.`,
		Example: `  # Run one step, then inspect the result
  recipekit install ./my-recipe

  # Run all remaining steps
  recipekit install --all ./my-recipe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := openPackage(args[0])
			if err != nil {
				if printErr := printResult(engine.StructuralResult(err)); printErr != nil {
					return printErr
				}
				return err
			}

			store, err := openProgressStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			orch, err := newOrchestrator(store)
			if err != nil {
				return err
			}

			for {
				result, err := orch.InstallStep(cmd.Context(), pkg)
				if err != nil {
					return err
				}
				if err := printResult(result); err != nil {
					return err
				}

				log.Info().
					Str("recipe", pkg.Manifest.Name).
					Int("currentstep", result.Finished.CurrentStep).
					Int("maxstep", result.Finished.MaxStep).
					Str("status", result.Status.String()).
					Msg("Step executed")

				if result.Status == engine.StatusFatal {
					return fmt.Errorf("install step finished with fatal status")
				}
				if result.Finished.Status || !all {
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "run every remaining step instead of one")

	return cmd
}
