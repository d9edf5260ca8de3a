package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/schema"
)

var cubesCmd = &cobra.Command{
	Use:     "cubes",
	Aliases: []string{"cube"},
	Short:   "Inspect and build cubes (v1 Kylin, v2 KE3)",
}

var cubesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cubes of the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		cubes, err := p.Service().Cubes(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, cubes, func(w *tabwriter.Writer) {
			row(w, "NAME", "STATUS", "MODEL", "SIZE", "RECORDS", "SEGMENTS", "MODIFIED")
			for _, c := range cubes {
				row(w, c.Name, c.Status, c.Model, humanize.IBytes(uint64(c.SizeKB)*1024),
					humanize.Comma(c.InputRecords), len(c.Segments), ago(c.LastModified))
			}
		})
	},
}

var cubesNamesCmd = &cobra.Command{
	Use:   "names",
	Short: "List the names of READY cubes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		names, err := p.DatasourceNames(cmd.Context(), datasource.KindCube)
		if err != nil {
			return err
		}
		return renderNames(cmd, names)
	},
}

var cubesDescCmd = &cobra.Command{
	Use:   "desc <name>",
	Short: "Show the raw cube description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		desc, err := p.Service().CubeDesc(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, desc, nil)
	},
}

// cubeSQLer is implemented by services that expose a cube's flat-table SQL.
type cubeSQLer interface {
	CubeSQL(ctx context.Context, cube string) (string, error)
}

var cubesSQLCmd = &cobra.Command{
	Use:   "sql <name>",
	Short: "Show the sample SQL of a cube (KE3)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		s, ok := p.Service().(cubeSQLer)
		if !ok {
			return fmt.Errorf("cube sql on %s: %w", p.Version(), apperrors.ErrUnsupportedAPI)
		}
		sql, err := s.CubeSQL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, map[string]string{"sql": sql}, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, sql)
		})
	},
}

var cubesSegmentsCmd = &cobra.Command{
	Use:   "segments <name>",
	Short: "List the segments of a cube",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSegments(cmd, datasource.KindCube, args[0])
	},
}

// segmentLister is a cube or model.
type segmentLister interface {
	ListSegments(ctx context.Context) ([]schema.Segment, error)
}

func runSegments(cmd *cobra.Command, kind datasource.Kind, name string) error {
	p, err := connect()
	if err != nil {
		return err
	}
	ds, err := p.Datasource(cmd.Context(), name, kind)
	if err != nil {
		return err
	}
	sl, ok := ds.(segmentLister)
	if !ok {
		return fmt.Errorf("%s %s has no segments: %w", kind, name, apperrors.ErrUnsupportedAPI)
	}
	segs, err := sl.ListSegments(cmd.Context())
	if err != nil {
		return err
	}
	return render(cmd, segs, func(w *tabwriter.Writer) {
		row(w, "ID", "NAME", "STATUS", "START", "END", "SIZE")
		for _, s := range segs {
			size := s.BytesSize
			if size == 0 {
				size = s.SizeKB * 1024
			}
			row(w, s.Identifier(), s.Name, s.Status, msTime(s.DateRangeStart), msTime(s.DateRangeEnd), humanize.IBytes(uint64(size)))
		}
	})
}

func init() {
	cubesCmd.AddCommand(cubesListCmd, cubesNamesCmd, cubesDescCmd, cubesSQLCmd, cubesSegmentsCmd)
	cubesCmd.AddCommand(
		newColumnsCmd(datasource.KindCube),
		newMeasuresCmd(datasource.KindCube),
		newFromCmd(datasource.KindCube),
		newRangeCmd(datasource.KindCube, "build", "Build a segment over --start/--end"),
		newRangeCmd(datasource.KindCube, "merge", "Merge the segments within --start/--end"),
		newRangeCmd(datasource.KindCube, "refresh", "Refresh the segment over --start/--end"),
		newInvokeCmd(datasource.KindCube),
	)
	rootCmd.AddCommand(cubesCmd)
}
