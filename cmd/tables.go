package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/datasource"
)

var tablesCmd = &cobra.Command{
	Use:     "tables",
	Aliases: []string{"table"},
	Short:   "Inspect the tables of the project",
}

var tablesNamesCmd = &cobra.Command{
	Use:   "names",
	Short: "List the table names, from the Hive catalog with is_pushdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		names, err := p.DatasourceNames(cmd.Context(), datasource.KindTable)
		if err != nil {
			return err
		}
		return renderNames(cmd, names)
	},
}

func init() {
	tablesCmd.AddCommand(tablesNamesCmd, newColumnsCmd(datasource.KindTable), newFromCmd(datasource.KindTable))
	rootCmd.AddCommand(tablesCmd)
}
