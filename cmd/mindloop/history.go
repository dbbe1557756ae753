package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/mindloop/internal/export"
	"github.com/mohammad-safakhou/mindloop/models"
)

func historyCMD() *cobra.Command {
	history := &cobra.Command{
		Use:   "history",
		Short: "Inspect archived cycles",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tSTATUS\tROUNDS\tSTARTED\tTOPIC")
			for _, c := range a.Orch.History() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", c.Number, c.ID, c.Status, c.TotalRounds, c.StartTime.Local().Format(time.DateTime), oneLine(c.Topic, 60))
			}
			return tw.Flush()
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one archived cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			c, err := a.Orch.Cycle(args[0])
			if err != nil {
				return err
			}
			return export.Write(cmd.OutOrStdout(), export.Markdown, []*models.Cycle{c}, namer(a.Orch.Agents()))
		},
	}

	var output string
	exp := &cobra.Command{
		Use:   "export [id]",
		Short: "Export one cycle, or the whole history, as markdown or html",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			cycles := a.Orch.History()
			if len(args) == 1 {
				c, err := a.Orch.Cycle(args[0])
				if err != nil {
					return err
				}
				cycles = []*models.Cycle{c}
			}
			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			return export.Write(w, f, cycles, namer(a.Orch.Agents()))
		},
	}
	exp.Flags().StringVarP(&format, "format", "f", "md", "md or html")
	exp.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	var limit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over archived cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			hits, err := a.Orch.Search(args[0], limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tSCORE\tTOPIC")
			for _, h := range hits {
				fmt.Fprintf(tw, "%d\t%s\t%.3f\t%s\n", h.Number, h.ID, h.Score, oneLine(h.Topic, 60))
			}
			return tw.Flush()
		},
	}
	search.Flags().IntVarP(&limit, "limit", "n", 20, "max hits")

	history.AddCommand(list, show, exp, search)
	return history
}
