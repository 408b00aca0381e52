package cmd

import (
	"github.com/spf13/cobra"
)

func newOrganizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "organize",
		Short: "Re-read the records report and file matched releases into owner folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer a.close()
			return a.pipe.OrganizeFolders(cmd.Context())
		},
	}
}
