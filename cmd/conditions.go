package cmd

import (
	"github.com/spf13/cobra"
)

func newConditionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conditions",
		Short: "Backfill blank media and sleeve condition fields across the collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer a.close()
			return a.pipe.UpdateConditions(cmd.Context())
		},
	}
}
