package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var testMatch bool
	var inputPrefix string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Label cover photos, resolve them to Discogs releases, and update the collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPrefix != "" {
				// Applied before config.Load reads the environment.
				os.Setenv("VINYL_INPUT_PREFIX", inputPrefix)
			}
			a, err := buildApp(cmd.Context(), true, true)
			if err != nil {
				return err
			}
			defer a.close()
			return a.pipe.Run(cmd.Context(), testMatch)
		},
	}
	cmd.Flags().BoolVar(&testMatch, "test-match", false, "resolve only the first few images and skip all collection writes")
	cmd.Flags().StringVar(&inputPrefix, "input-prefix", "", "bucket prefix to process instead of the configured one")
	return cmd
}
