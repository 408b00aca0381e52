package cmd

import (
	"github.com/spf13/cobra"
)

func newPlaylistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "playlists",
		Short: "Build Spotify playlists from the collection's folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			defer a.close()
			return a.pipe.BuildPlaylists(cmd.Context())
		},
	}
}
