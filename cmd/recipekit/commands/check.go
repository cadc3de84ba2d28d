package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recipekit/recipekit/pkg/engine"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <package-dir>",
		Short: "Dry-run a recipe package without mutating the platform",
		Long: `Check runs the non-mutating validation pass over the entire recipe in
one call: every step's installers discover their assets, resolve
identifiers against installed platform state, and report per-entity
feedback, without writing anything.

The result uses the same feedback/status/registry shape as install, so a
clean check is a reliable pre-flight for the same package.`,
		Example: `  # Validate an extracted package
  recipekit check ./my-recipe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := openPackage(args[0])
			if err != nil {
				// Structural failures still produce the result contract.
				if printErr := printResult(engine.StructuralResult(err)); printErr != nil {
					return printErr
				}
				return err
			}

			log.Info().
				Str("recipe", pkg.Manifest.Name).
				Str("fingerprint", pkg.Fingerprint).
				Msg("Checking recipe package")

			orch, err := newOrchestrator(nil)
			if err != nil {
				return err
			}

			result, err := orch.Check(cmd.Context(), pkg)
			if err != nil {
				return err
			}
			if err := printResult(result); err != nil {
				return err
			}

			if result.Status == engine.StatusFatal {
				return fmt.Errorf("check finished with fatal status")
			}
			return nil
		},
	}

	return cmd
}
