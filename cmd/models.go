package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/datasource"
)

var modelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"model"},
	Short:   "Inspect and build models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models of the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		models, err := p.Service().Models(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, models, func(w *tabwriter.Writer) {
			row(w, "NAME", "FACT TABLE", "LOOKUPS", "MODIFIED")
			for _, m := range models {
				row(w, m.Name, m.FactTable, len(m.Lookups), ago(m.LastModified))
			}
		})
	},
}

var modelsDescCmd = &cobra.Command{
	Use:   "desc <name>",
	Short: "Show the raw model description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		if p.Version() == config.VersionKE4 {
			desc, err := p.Service().V4ModelDesc(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, desc, nil)
		}
		desc, err := p.Service().ModelDesc(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, desc, nil)
	},
}

var modelsIndexesCmd = &cobra.Command{
	Use:   "indexes <name>",
	Short: "List the indexes of a model (v4)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		ds, err := p.Datasource(cmd.Context(), args[0], datasource.KindModel)
		if err != nil {
			return err
		}
		m, ok := ds.(*datasource.Model)
		if !ok {
			return fmt.Errorf("model %s has no indexes: %w", args[0], apperrors.ErrUnsupportedAPI)
		}
		raw, err := m.ListIndexes(cmd.Context())
		if err != nil {
			return err
		}
		return renderRaw(cmd, raw)
	},
}

var modelsSegmentsCmd = &cobra.Command{
	Use:   "segments <name>",
	Short: "List the segments of a model (v4)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSegments(cmd, datasource.KindModel, args[0])
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd, modelsDescCmd, modelsIndexesCmd, modelsSegmentsCmd)
	modelsCmd.AddCommand(
		newColumnsCmd(datasource.KindModel),
		newMeasuresCmd(datasource.KindModel),
		newFromCmd(datasource.KindModel),
		newRangeCmd(datasource.KindModel, "build", "Build a segment over --start/--end"),
		newRangeCmd(datasource.KindModel, "merge", "Merge the segments given by --ids"),
		newRangeCmd(datasource.KindModel, "refresh", "Refresh the segments given by --ids"),
		newInvokeCmd(datasource.KindModel),
	)
	rootCmd.AddCommand(modelsCmd)
}
