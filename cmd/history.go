package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/callwatch/internal/config"
	"firestige.xyz/callwatch/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		path := cfg.History.Path
		if path == "" {
			if path, err = history.DefaultPath(); err != nil {
				return err
			}
		}

		store, err := history.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		if historyEvents != "" {
			events, err := store.Events(cmd.Context(), historyEvents)
			if err != nil {
				return fmt.Errorf("read events of call %s: %w", historyEvents, err)
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		}

		calls, err := store.Calls(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("read call history: %w", err)
		}
		printCalls(cmd.OutOrStdout(), calls)
		return nil
	},
}

var (
	historyLimit  int
	historyEvents string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of calls to show")
	historyCmd.Flags().StringVar(&historyEvents, "events", "", "show the channel events of one call")
}

func printCalls(w io.Writer, calls []history.Call) {
	if len(calls) == 0 {
		fmt.Fprintln(w, "no calls recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tEVENTS")
	for _, c := range calls {
		duration := "ongoing"
		if !c.EndedAt.IsZero() {
			duration = c.Duration().Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, c.StartedAt.Format(time.DateTime), duration, c.Events)
	}
	tw.Flush()
}

func printEvents(w io.Writer, events []history.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCHANNEL\tSTATUS")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.At.Format(time.DateTime+".000"), e.Channel, e.Status)
	}
	tw.Flush()
}
