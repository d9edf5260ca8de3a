package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/lock"
	"github.com/kylinctl/kylinctl/internal/scheduler"
)

var (
	scheduleLock    string
	scheduleTimeout time.Duration
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the configured schedules until interrupted",
	Long: `Run every entry of the config's schedules on its cron spec, e.g.

  schedules:
    - cron: "0 2 * * *"
      datasource: kylin_sales_cube
      action: build

A build covers the cron period that ended at the tick. Only one scheduler
runs per lock file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Schedules) == 0 {
			return fmt.Errorf("no schedules in the config")
		}
		p, err := connect()
		if err != nil {
			return err
		}

		if err := lock.Acquire(scheduleLock); err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(scheduleLock); err != nil {
				logger.Warn("releasing lock", "error", err)
			}
		}()

		s := scheduler.New(p, logger, scheduler.WithTimeout(scheduleTimeout))
		if err := s.Load(cfg.Schedules); err != nil {
			logger.Warn("some schedules were skipped", "error", err)
		}
		entries := s.Entries()
		if len(entries) == 0 {
			return fmt.Errorf("no valid schedules")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s.Start()
		fmt.Fprintf(os.Stderr, "kylinctl scheduler running %d schedules for project %s\n", len(entries), p.Name())
		<-ctx.Done()

		logger.Info("stopping scheduler")
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Stop(stopCtx)
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured schedules and their next run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		type entry struct {
			Cron       string     `json:"cron" yaml:"cron"`
			Datasource string     `json:"datasource" yaml:"datasource"`
			Kind       string     `json:"kind,omitempty" yaml:"kind,omitempty"`
			Action     string     `json:"action" yaml:"action"`
			Next       *time.Time `json:"next,omitempty" yaml:"next,omitempty"`
			Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
		}

		now := time.Now()
		entries := make([]entry, len(cfg.Schedules))
		for i, sc := range cfg.Schedules {
			entries[i] = entry{Cron: sc.Cron, Datasource: sc.Datasource, Kind: sc.Kind, Action: sc.Action}
			sched, err := cron.ParseStandard(sc.Cron)
			if err != nil {
				entries[i].Error = err.Error()
				continue
			}
			next := sched.Next(now)
			entries[i].Next = &next
		}

		held, pid, err := lock.IsHeld(scheduleLock)
		if err != nil {
			return err
		}
		return render(cmd, entries, func(w *tabwriter.Writer) {
			row(w, "CRON", "DATASOURCE", "ACTION", "NEXT")
			for _, e := range entries {
				next := "-"
				switch {
				case e.Error != "":
					next = "invalid: " + e.Error
				case e.Next != nil:
					next = cell(*e.Next)
				}
				row(w, e.Cron, e.Datasource, e.Action, next)
			}
			if held {
				fmt.Fprintf(w, "\nscheduler running (PID %d)\n", pid)
			}
		})
	},
}

func init() {
	scheduleCmd.PersistentFlags().StringVar(&scheduleLock, "lock", "", "lock file (default: ~/.kylinctl/scheduler.lock)")
	scheduleCmd.Flags().DurationVar(&scheduleTimeout, "timeout", time.Hour, "time limit of one scheduled command")
	scheduleCmd.AddCommand(scheduleListCmd)
	rootCmd.AddCommand(scheduleCmd)
}
