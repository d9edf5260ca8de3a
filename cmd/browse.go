package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/browser"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the project's datasources in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		return browser.Run(cmd.Context(), p)
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
