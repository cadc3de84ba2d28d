package commands

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/recipekit/recipekit/pkg/engine"
)

// progressReport is the progress query payload: the current step and the
// step count of the stored record.
type progressReport struct {
	Progress    int `json:"progress"`
	Subprogress int `json:"subprogress"`
}

func newProgressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress <package-dir>",
		Short: "Query stored install progress for a recipe package",
		Long: `Progress reports the persisted step cursor for a package's manifest
fingerprint. A missing record means the install either never started or
already completed; completed installs delete their record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := openPackage(args[0])
			if err != nil {
				return err
			}

			store, err := openProgressStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), pkg.Fingerprint)
			if errors.Is(err, engine.ErrProgressNotFound) {
				return err
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(progressReport{
				Progress:    rec.CurrentStep,
				Subprogress: rec.MaxStep,
			})
		},
	}

	return cmd
}
