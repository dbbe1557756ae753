package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/mindloop/internal/events"
	"github.com/mohammad-safakhou/mindloop/internal/seed"
)

func runCMD() *cobra.Command {
	var (
		link       string
		continuous bool
	)
	run := &cobra.Command{
		Use:   "run [topic]",
		Short: "Run one cycle in the foreground and print its progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			topic := ""
			if len(args) == 1 {
				topic = args[0]
			}
			if strings.TrimSpace(topic) == "" && link != "" {
				seeded, err := seed.NewFetcher(15*time.Second).Fetch(ctx, link)
				if err != nil {
					return err
				}
				topic = seeded.Topic()
			}
			if strings.TrimSpace(topic) == "" {
				return fmt.Errorf("a topic or --url is required")
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer func() { _ = a.Logger.Sync() }()

			ch, cancel := a.Bus.Subscribe(256)
			defer cancel()
			a.Orch.EnableContinuousMode(continuous)
			cycle, err := a.Orch.Start(ctx, topic)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cycle %d: %s\n", cycle.Number, cycle.Topic)

			for {
				select {
				case <-ctx.Done():
					// Archive what was produced before exiting.
					stopCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
					defer done()
					if err := a.Orch.Stop(stopCtx); err != nil {
						return err
					}
					fmt.Fprintln(out, "stopped")
					return nil
				case ev, ok := <-ch:
					if !ok {
						return nil
					}
					printEvent(out, ev)
					switch ev.Type {
					case events.CycleCompleted:
						if continuous {
							continue
						}
						a.Orch.Wait()
						if st := a.Orch.Snapshot(); st.Current != nil && st.Current.Synthesis != "" {
							fmt.Fprintf(out, "\n%s\n", st.Current.Synthesis)
						}
						return nil
					case events.CycleFailed:
						a.Orch.Wait()
						return fmt.Errorf("cycle failed: %s", ev.Message)
					}
				}
			}
		},
	}
	run.Flags().StringVar(&link, "url", "", "seed the topic from a web page")
	run.Flags().BoolVar(&continuous, "continuous", false, "keep starting follow-up cycles until interrupted")
	return run
}

func printEvent(w io.Writer, ev events.Event) {
	ts := ev.At.Local().Format("15:04:05")
	switch {
	case ev.Role != "" && ev.Message != "":
		fmt.Fprintf(w, "%s %-16s %s: %s\n", ts, ev.Type, ev.Role, ev.Message)
	case ev.Role != "":
		fmt.Fprintf(w, "%s %-16s %s\n", ts, ev.Type, ev.Role)
	case ev.Phase != "" && ev.Type == events.PhaseChanged:
		fmt.Fprintf(w, "%s %-16s %s (round %d/%d)\n", ts, ev.Type, ev.Phase, ev.Round, ev.TotalRounds)
	default:
		fmt.Fprintf(w, "%s %-16s %s\n", ts, ev.Type, ev.Message)
	}
}
