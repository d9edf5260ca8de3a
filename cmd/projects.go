package cmd

import (
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the projects on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		names, err := p.Projects(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, names, func(w *tabwriter.Writer) {
			for _, n := range names {
				row(w, n)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
