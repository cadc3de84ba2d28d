package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recipekit/recipekit/pkg/recipe"
)

func newUnpackCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "unpack <blob-file>",
		Short: "Decode a base64 recipe blob into an archive file",
		Long: `Unpack decodes a base64-encoded package blob, tolerating an optional
"data:application/<subtype>;base64," prefix, and writes the decoded
archive bytes to the output file. Extract the archive with your platform
tooling, then point check/install at the extracted directory.`,
		Example: `  recipekit unpack --output recipe.zip upload.b64`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading blob file: %w", err)
			}

			raw, err := recipe.DecodeBlob(string(blob))
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, raw, 0o644); err != nil {
				return fmt.Errorf("writing archive: %w", err)
			}

			log.Info().
				Str("archive", output).
				Int("bytes", len(raw)).
				Msg("Package blob decoded")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "recipe.zip", "output archive path")

	return cmd
}
