package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/job"
	"github.com/kylinctl/kylinctl/internal/service"
)

var (
	jobsTimeFilter string
	jobsCube       string
	jobsLimit      int
	jobsOffset     int
	jobsInterval   time.Duration
)

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job"},
	Short:   "List and control build jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tf, err := service.ParseTimeFilter(jobsTimeFilter)
		if err != nil {
			return err
		}
		p, err := connect()
		if err != nil {
			return err
		}
		jobs, err := p.Jobs(cmd.Context(), service.JobFilter{
			TimeFilter: tf,
			Cube:       jobsCube,
			Limit:      jobsLimit,
			Offset:     jobsOffset,
		})
		if err != nil {
			return err
		}
		return render(cmd, jobs, func(w *tabwriter.Writer) {
			row(w, "ID", "NAME", "STATUS", "PROGRESS", "DURATION", "SUBMITTER", "MODIFIED")
			for _, j := range jobs {
				modified := "-"
				if !j.LastModified.IsZero() {
					modified = humanize.Time(j.LastModified)
				}
				row(w, j.ID, j.Name, j.Status, fmt.Sprintf("%.0f%%", j.Progress), j.Duration, j.Submitter, modified)
			}
		})
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		j, err := p.Job(args[0]).Describe(cmd.Context())
		if err != nil {
			return err
		}
		return renderJob(cmd, j)
	},
}

func renderJob(cmd *cobra.Command, j *job.Job) error {
	return render(cmd, j, func(w *tabwriter.Writer) {
		row(w, "ID", j.ID)
		row(w, "NAME", j.Name)
		row(w, "TYPE", j.Type)
		row(w, "CUBE", j.DisplayCubeName)
		row(w, "STATUS", j.Status)
		row(w, "PROGRESS", fmt.Sprintf("%.0f%%", j.Progress))
		row(w, "DURATION", j.Duration)
		row(w, "SUBMITTER", j.Submitter)
		row(w, "MODIFIED", j.LastModified)
		if len(j.Steps) > 0 {
			fmt.Fprintln(w)
			row(w, "STEP", "NAME", "STATUS")
			for i, s := range j.Steps {
				row(w, i+1, s.Name, s.Status)
			}
		}
	})
}

// newJobActionCmd builds a subcommand that runs one controller action.
func newJobActionCmd(use, short string, action func(*job.Controller, context.Context) (*job.Job, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := connect()
			if err != nil {
				return err
			}
			j, err := action(p.Job(args[0]), cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("job "+use, "job", j.ID, "status", j.Status)
			return renderJob(cmd, j)
		},
	}
}

var jobsDropCmd = &cobra.Command{
	Use:   "drop <id>",
	Short: "Drop a finished or discarded job (v1, v2)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		if err := p.Job(args[0]).Drop(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped job %s\n", args[0])
		return nil
	},
}

var jobsWaitCmd = &cobra.Command{
	Use:   "wait <id>...",
	Short: "Wait for jobs to finish",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		return waitJobs(cmd, p, args, jobsInterval)
	},
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsTimeFilter, "time-filter", "week", "how far back to list: day, week, month, year or all")
	jobsListCmd.Flags().StringVar(&jobsCube, "cube", "", "only jobs of this cube (v1, v2)")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 0, "maximum number of jobs")
	jobsListCmd.Flags().IntVar(&jobsOffset, "offset", 0, "number of jobs to skip")
	jobsWaitCmd.Flags().DurationVar(&jobsInterval, "interval", 10*time.Second, "poll interval")

	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsDropCmd, jobsWaitCmd)
	jobsCmd.AddCommand(
		newJobActionCmd("resume", "Resume a stopped or failed job", (*job.Controller).Resume),
		newJobActionCmd("pause", "Pause a running job", (*job.Controller).Pause),
		newJobActionCmd("cancel", "Discard a job", (*job.Controller).Cancel),
	)
	rootCmd.AddCommand(jobsCmd)
}
