package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/job"
	"github.com/kylinctl/kylinctl/pkg/kylin"
)

// invoker is a datasource with a command table.
type invoker interface {
	Commands() []string
	Invoke(ctx context.Context, name string, a datasource.Args) (json.RawMessage, error)
}

// invokeFlags are the command arguments shared by build, merge, refresh
// and invoke.
type invokeFlags struct {
	start       string
	end         string
	offsetStart int64
	offsetEnd   int64
	segment     string
	ids         []string
	newName     string
	tables      []string
	wait        bool
	interval    time.Duration
}

func (f *invokeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "range start, YYYY-MM-DD or RFC 3339 (UTC)")
	cmd.Flags().StringVar(&f.end, "end", "", "range end, YYYY-MM-DD or RFC 3339 (UTC)")
	cmd.Flags().BoolVar(&f.wait, "wait", false, "wait for the submitted jobs to finish")
	cmd.Flags().DurationVar(&f.interval, "interval", 10*time.Second, "job poll interval with --wait")
}

func (f *invokeFlags) registerAll(cmd *cobra.Command) {
	f.register(cmd)
	cmd.Flags().Int64Var(&f.offsetStart, "offset-start", 0, "streaming source offset start")
	cmd.Flags().Int64Var(&f.offsetEnd, "offset-end", 0, "streaming source offset end")
	cmd.Flags().StringVar(&f.segment, "segment", "", "segment name")
	cmd.Flags().StringSliceVar(&f.ids, "ids", nil, "segment ids (v4)")
	cmd.Flags().StringVar(&f.newName, "new-name", "", "name of the clone")
	cmd.Flags().StringSliceVar(&f.tables, "tables", nil, "tables whose catalog cache to refresh (v4)")
}

func (f *invokeFlags) args() (datasource.Args, error) {
	a := datasource.Args{
		OffsetStart: f.offsetStart,
		OffsetEnd:   f.offsetEnd,
		Segment:     f.segment,
		IDs:         f.ids,
		Name:        f.newName,
		Tables:      f.tables,
	}
	var err error
	if a.Start, err = parseTime(f.start); err != nil {
		return a, fmt.Errorf("--start: %w", err)
	}
	if a.End, err = parseTime(f.end); err != nil {
		return a, fmt.Errorf("--end: %w", err)
	}
	if !a.Start.IsZero() && !a.End.IsZero() && !a.Start.Before(a.End) {
		return a, fmt.Errorf("--start %s is not before --end %s", f.start, f.end)
	}
	return a, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.DateOnly, time.DateTime, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
}

// runInvoke resolves name as a datasource of kind and runs command on it.
func runInvoke(cmd *cobra.Command, kind datasource.Kind, name, command string, f *invokeFlags) error {
	a, err := f.args()
	if err != nil {
		return err
	}
	p, err := connect()
	if err != nil {
		return err
	}
	ds, err := p.Datasource(cmd.Context(), name, kind)
	if err != nil {
		return err
	}
	inv, ok := ds.(invoker)
	if !ok {
		return fmt.Errorf("%s %s has no commands: %w", kind, name, apperrors.ErrUnsupportedAPI)
	}

	logger.Info("invoking", "datasource", name, "kind", kind, "command", command)
	raw, err := inv.Invoke(cmd.Context(), command, a)
	if err != nil {
		return err
	}
	if !f.wait {
		return renderRaw(cmd, raw)
	}
	return waitJobs(cmd, p, jobIDs(raw), f.interval)
}

// jobIDs extracts the submitted job ids from a build response: a v1/v2
// job description or a v4 {"jobs": [...]} list.
func jobIDs(raw json.RawMessage) []string {
	var resp struct {
		UUID string `json:"uuid"`
		Jobs []struct {
			JobID string `json:"job_id"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	var ids []string
	if resp.UUID != "" {
		ids = append(ids, resp.UUID)
	}
	for _, j := range resp.Jobs {
		if j.JobID != "" {
			ids = append(ids, j.JobID)
		}
	}
	return ids
}

func waitJobs(cmd *cobra.Command, p *kylin.Project, ids []string, interval time.Duration) error {
	if len(ids) == 0 {
		return fmt.Errorf("no job id in the response: %w", apperrors.ErrConfusedResponse)
	}
	var failed []string
	for _, id := range ids {
		j, err := p.Job(id).Wait(cmd.Context(), interval)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), j.Summary())
		if j.Status != job.StatusFinished {
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("jobs %s did not finish: %w", strings.Join(failed, ", "), apperrors.ErrJob)
	}
	return nil
}

// newInvokeCmd builds "<group> invoke <name> <command>" for kind.
func newInvokeCmd(kind datasource.Kind) *cobra.Command {
	f := &invokeFlags{}
	cmd := &cobra.Command{
		Use:   "invoke <name> [command]",
		Short: fmt.Sprintf("Run a %s command; without a command, list them", kind),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return runInvoke(cmd, kind, args[0], args[1], f)
			}
			p, err := connect()
			if err != nil {
				return err
			}
			ds, err := p.Datasource(cmd.Context(), args[0], kind)
			if err != nil {
				return err
			}
			inv, ok := ds.(invoker)
			if !ok {
				return fmt.Errorf("%s %s has no commands: %w", kind, args[0], apperrors.ErrUnsupportedAPI)
			}
			return render(cmd, inv.Commands(), func(w *tabwriter.Writer) {
				for _, c := range inv.Commands() {
					row(w, c)
				}
			})
		},
	}
	f.registerAll(cmd)
	return cmd
}

// newRangeCmd builds a build, merge or refresh subcommand for kind.
func newRangeCmd(kind datasource.Kind, command, short string) *cobra.Command {
	f := &invokeFlags{}
	cmd := &cobra.Command{
		Use:   command + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd, kind, args[0], command, f)
		},
	}
	f.register(cmd)
	if kind == datasource.KindModel {
		cmd.Flags().StringSliceVar(&f.ids, "ids", nil, "segment ids")
	}
	return cmd
}
