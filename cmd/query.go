package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/pkg/kylin"
)

var (
	queryLimit         int
	queryOffset        int
	queryAcceptPartial bool
)

// queryOutput is the JSON and YAML shape of a query result.
type queryOutput struct {
	Columns    []kylin.Column `json:"columns" yaml:"columns"`
	Rows       [][]string     `json:"rows" yaml:"rows"`
	Cube       string         `json:"cube,omitempty" yaml:"cube,omitempty"`
	DurationMS int64          `json:"duration_ms" yaml:"duration_ms"`
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a SQL query in the project",
	Example: `  kylinctl query "SELECT PART_DT, SUM(PRICE) FROM KYLIN_SALES GROUP BY PART_DT" --limit 10
  kylinctl query -o json "SELECT COUNT(*) FROM KYLIN_SALES"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}

		opts := []kylin.QueryOption{kylin.WithLimit(queryLimit), kylin.WithOffset(queryOffset)}
		if queryAcceptPartial {
			opts = append(opts, kylin.WithAcceptPartial())
		}
		res, err := p.Query(cmd.Context(), strings.Join(args, " "), opts...)
		if err != nil {
			return err
		}
		return renderResult(cmd, res)
	},
}

func renderResult(cmd *cobra.Command, res *kylin.Result) error {
	out := queryOutput{
		Columns:    res.Columns,
		Rows:       make([][]string, len(res.Rows)),
		Cube:       res.Cube,
		DurationMS: res.Duration.Milliseconds(),
	}
	for i, r := range res.Rows {
		out.Rows[i] = make([]string, len(r))
		for j, v := range r {
			out.Rows[i][j] = cell(v)
		}
	}

	return render(cmd, out, func(w *tabwriter.Writer) {
		row(w, toAny(res.ColumnNames())...)
		for _, r := range res.Rows {
			row(w, r...)
		}
		fmt.Fprintf(w, "\n(%d rows, %s", len(res.Rows), res.Duration)
		if res.Cube != "" {
			fmt.Fprintf(w, ", %s", res.Cube)
		}
		fmt.Fprintln(w, ")")
	})
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 50000, "maximum number of rows")
	queryCmd.Flags().IntVar(&queryOffset, "offset", 0, "number of rows to skip")
	queryCmd.Flags().BoolVar(&queryAcceptPartial, "accept-partial", false, "let the server return a partial result")
	rootCmd.AddCommand(queryCmd)
}
