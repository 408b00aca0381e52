package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vinyl-list",
		Short: "Catalog photographed vinyl records into Discogs and Spotify",
		Long: `vinyl-list turns photos of record covers into a catalogued collection.

It labels cover photos with the Vision API, resolves each to a Discogs
release, files new records into owner folders, backfills condition fields,
and can build Spotify playlists from the resulting collection.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load env files if present (ignore errors); .env.local wins.
			_ = godotenv.Load(".env.local")
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newConditionsCmd())
	cmd.AddCommand(newOrganizeCmd())
	cmd.AddCommand(newPlaylistsCmd())

	return cmd
}
