package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/report"
	"github.com/kylinctl/kylinctl/pkg/kylin"
)

// describe loads name as kind and builds its report.
func describe(ctx context.Context, p *kylin.Project, name string, kind datasource.Kind) (*report.DatasourceReport, error) {
	ds, err := p.Datasource(ctx, name, kind)
	if err != nil {
		return nil, err
	}
	return report.Generate(ds, time.Now())
}

func describeArg(cmd *cobra.Command, kind datasource.Kind, name string) (*report.DatasourceReport, error) {
	p, err := connect()
	if err != nil {
		return nil, err
	}
	return describe(cmd.Context(), p, name, kind)
}

func newColumnsCmd(kind datasource.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "columns <name>",
		Short: fmt.Sprintf("List the dimension columns of a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := describeArg(cmd, kind, args[0])
			if err != nil {
				return err
			}
			return render(cmd, r.Dimensions, func(w *tabwriter.Writer) {
				row(w, "NAME", "DATATYPE")
				for _, d := range r.Dimensions {
					row(w, d.Name, d.Datatype)
				}
			})
		},
	}
}

func newMeasuresCmd(kind datasource.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "measures <name>",
		Short: fmt.Sprintf("List the measures of a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := describeArg(cmd, kind, args[0])
			if err != nil {
				return err
			}
			return render(cmd, r.Measures, func(w *tabwriter.Writer) {
				row(w, "NAME", "TYPE", "EXPRESSION")
				for _, m := range r.Measures {
					expr := m.Expression
					if expr == "" {
						expr = "-"
					}
					row(w, m.Name, m.Type, expr)
				}
			})
		},
	}
}

func newFromCmd(kind datasource.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "from <name>",
		Short: fmt.Sprintf("Show the FROM clause joining the tables of a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := describeArg(cmd, kind, args[0])
			if err != nil {
				return err
			}
			return render(cmd, map[string]string{"from": r.From}, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, r.From)
			})
		},
	}
}

var (
	datasourceKind    string
	datasourceDataset string
	datasourceOut     string
)

var datasourceCmd = &cobra.Command{
	Use:     "datasource",
	Aliases: []string{"ds"},
	Short:   "Describe datasources as dimensions, measures and joins",
}

var datasourceShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show the dimensions, measures and FROM clause of a datasource",
	Long: `Show a cube, model, table or dataset the way the SQL layer sees it.

The kind defaults to the server version's first source type: cube on v1
and v2, model on v4. A dataset is read from a JSON file with --dataset.
With --out the report is written to a .json, .yaml or .txt file instead.`,
	Example: `  kylinctl datasource show kylin_sales_cube
  kylinctl datasource show --kind table DEFAULT.KYLIN_SALES -o yaml
  kylinctl datasource show --dataset sales_dataset.json --out sales.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}

		var r *report.DatasourceReport
		switch {
		case datasourceDataset != "":
			ds, err := p.DatasetFromFile(cmd.Context(), datasourceDataset)
			if err != nil {
				return err
			}
			if r, err = report.Generate(ds, time.Now()); err != nil {
				return err
			}
		case len(args) == 1:
			kind := p.SourceTypes()[0]
			if datasourceKind != "" {
				if kind, err = datasource.ParseKind(datasourceKind); err != nil {
					return err
				}
			}
			if r, err = describe(cmd.Context(), p, args[0], kind); err != nil {
				return err
			}
		default:
			return fmt.Errorf("a datasource name or --dataset is required")
		}

		if datasourceOut != "" {
			if err := report.WriteFile(r, datasourceOut); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", datasourceOut)
			return nil
		}

		format := report.FormatText
		switch outputFormat {
		case outputJSON:
			format = report.FormatJSON
		case outputYAML:
			format = report.FormatYAML
		}
		return report.Encode(cmd.OutOrStdout(), r, format)
	},
}

var datasourceDiffCmd = &cobra.Command{
	Use:   "diff <report-file>",
	Short: "Compare a saved report with the datasource on the server",
	Long: `Load a report written by 'datasource show --out' and compare it with the
current metadata of the same datasource. Exits non-zero when they differ.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := report.ReadFile(args[0])
		if err != nil {
			return err
		}
		kind, err := datasource.ParseKind(saved.Kind)
		if err != nil {
			return err
		}
		cur, err := describeArg(cmd, kind, saved.Name)
		if err != nil {
			return err
		}

		changes := report.Diff(saved, cur)
		if err := render(cmd, changes, func(w *tabwriter.Writer) {
			for _, c := range changes {
				fmt.Fprintln(w, c)
			}
		}); err != nil {
			return err
		}
		if len(changes) > 0 {
			return fmt.Errorf("%s %s changed since %s: %d change(s)", kind, saved.Name, saved.GeneratedAt.Format(time.DateTime), len(changes))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s is unchanged\n", kind, saved.Name)
		return nil
	},
}

func init() {
	datasourceShowCmd.Flags().StringVar(&datasourceKind, "kind", "", "cube, model or table")
	datasourceShowCmd.Flags().StringVar(&datasourceDataset, "dataset", "", "read a dataset description from this JSON file")
	datasourceShowCmd.Flags().StringVar(&datasourceOut, "out", "", "write the report to a file")
	datasourceCmd.AddCommand(datasourceShowCmd)
	datasourceCmd.AddCommand(datasourceDiffCmd)
	rootCmd.AddCommand(datasourceCmd)
}
