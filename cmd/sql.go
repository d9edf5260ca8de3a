package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/sqlgen"
	"github.com/kylinctl/kylinctl/pkg/kylin"
)

var (
	sqlKind     string
	sqlDims     []string
	sqlMeasures []string
	sqlFilters  []string
	sqlLimit    int
	sqlRun      bool
)

var sqlCmd = &cobra.Command{
	Use:   "sql <datasource>",
	Short: "Build an aggregate SELECT over a datasource",
	Long: `Build a SELECT from dimension and measure names. Only the lookups the
selected columns need are joined. Dimensions are named ALIAS.COLUMN or by
their label, measures by name.

Filters take the form 'DIMENSION OP VALUE' with OP one of
=, <>, !=, <, <=, >, >= and LIKE.`,
	Example: `  kylinctl sql kylin_sales_cube --dim KYLIN_SALES.PART_DT --measure GMV_SUM
  kylinctl sql kylin_sales_cube --dim BUYER_ACCOUNT.ACCOUNT_COUNTRY --measure TRANS_CNT \
    --filter "KYLIN_SALES.PART_DT >= 2012-01-01" --limit 10 --run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := parseFilters(sqlFilters)
		if err != nil {
			return err
		}
		p, err := connect()
		if err != nil {
			return err
		}
		kind := p.SourceTypes()[0]
		if sqlKind != "" {
			if kind, err = datasource.ParseKind(sqlKind); err != nil {
				return err
			}
		}
		ds, err := p.Datasource(cmd.Context(), args[0], kind)
		if err != nil {
			return err
		}

		sel := &sqlgen.Select{
			Source:     ds,
			Dimensions: sqlDims,
			Measures:   sqlMeasures,
			Filters:    filters,
			Limit:      sqlLimit,
		}
		sql, err := sel.SQL()
		if err != nil {
			return err
		}
		if !sqlRun {
			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		}
		logger.Debug("running generated sql", "sql", sql)
		var opts []kylin.QueryOption
		if sqlLimit > 0 {
			opts = append(opts, kylin.WithLimit(sqlLimit))
		}
		res, err := p.Query(cmd.Context(), sql, opts...)
		if err != nil {
			return err
		}
		return renderResult(cmd, res)
	},
}

// filterOps is ordered so that at the same position a two-character
// operator wins over its one-character prefix.
var filterOps = []string{"<>", "!=", "<=", ">=", "=", "<", ">"}

func parseFilters(in []string) ([]sqlgen.Filter, error) {
	out := make([]sqlgen.Filter, 0, len(in))
	for _, f := range in {
		filter, ok := parseFilter(f)
		if !ok {
			return nil, fmt.Errorf("cannot parse filter %q, want 'DIMENSION OP VALUE'", f)
		}
		out = append(out, filter)
	}
	return out, nil
}

func parseFilter(s string) (sqlgen.Filter, bool) {
	if i := strings.Index(strings.ToUpper(s), " LIKE "); i > 0 {
		return sqlgen.Filter{
			Dimension: strings.TrimSpace(s[:i]),
			Op:        "LIKE",
			Value:     strings.TrimSpace(s[i+len(" LIKE "):]),
		}, true
	}
	at, op := -1, ""
	for _, o := range filterOps {
		if i := strings.Index(s, o); i > 0 && (at < 0 || i < at) {
			at, op = i, o
		}
	}
	if at < 0 {
		return sqlgen.Filter{}, false
	}
	dim := strings.TrimSpace(s[:at])
	if dim == "" {
		return sqlgen.Filter{}, false
	}
	return sqlgen.Filter{
		Dimension: dim,
		Op:        op,
		Value:     strings.TrimSpace(s[at+len(op):]),
	}, true
}

func init() {
	sqlCmd.Flags().StringVar(&sqlKind, "kind", "", "cube, model or table (default: the version's first source type)")
	sqlCmd.Flags().StringSliceVar(&sqlDims, "dim", nil, "dimension to group by (repeatable)")
	sqlCmd.Flags().StringSliceVar(&sqlMeasures, "measure", nil, "measure to aggregate (repeatable)")
	sqlCmd.Flags().StringArrayVar(&sqlFilters, "filter", nil, "filter 'DIMENSION OP VALUE' (repeatable)")
	sqlCmd.Flags().IntVar(&sqlLimit, "limit", 0, "LIMIT of the query")
	sqlCmd.Flags().BoolVar(&sqlRun, "run", false, "run the query instead of printing it")
	rootCmd.AddCommand(sqlCmd)
}
