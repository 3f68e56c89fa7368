package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/plugmini/internal/plug"
	"github.com/srg/plugmini/internal/schedule"
)

// timerCmd represents the timer command
var timerCmd = &cobra.Command{
	Use:   "timer [address]",
	Short: "Run the power timer from the config file",
	Long: `Runs the timer entries of the config file until interrupted.

Config example:
  address: AA:BB:CC:DD:EE:FF
  timer:
    - name: morning
      spec: "30 7 * * 1-5"
      action: on
    - name: night
      spec: "0 23 * * *"
      action: off`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTimer,
}

var (
	timerList   bool
	timerRunNow string
)

func init() {
	timerCmd.Flags().BoolVar(&timerList, "list", false, "List entries with their next run and exit")
	timerCmd.Flags().StringVar(&timerRunNow, "run-now", "", "Run the named entry once and exit")
}

func runTimer(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	address, err := a.resolveAddress(args)
	if err != nil {
		return err
	}
	if len(a.cfg.Timer) == 0 {
		return fmt.Errorf("no timer entries configured")
	}

	timer := schedule.NewTimer(a.newPlug(address), a.logger)
	for _, e := range a.cfg.Timer {
		command, err := plug.ParseCommand(e.Action)
		if err != nil {
			return fmt.Errorf("timer entry %q: %w", e.Name, err)
		}
		if err := timer.Add(schedule.Entry{Name: e.Name, Spec: e.Spec, Command: command}); err != nil {
			return err
		}
	}

	cmd.SilenceUsage = true

	switch {
	case timerList:
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCOMMAND\tNEXT RUN")
		for _, u := range timer.Upcoming() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.Name, u.Command, u.Next.Format(time.RFC3339))
		}
		return w.Flush()
	case timerRunNow != "":
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		_, err := timer.RunNow(ctx, timerRunNow)
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := timer.Start(ctx); err != nil {
		return err
	}
	a.console.ShowMessage(fmt.Sprintf("power timer running for %s with %d entries (Ctrl+C to stop)", address, len(a.cfg.Timer)))

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), schedule.DefaultJobTimeout)
	defer stopCancel()
	return timer.Stop(stopCtx)
}
