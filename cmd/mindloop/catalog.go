package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/mindloop/internal/catalog"
)

func modelsCMD() *cobra.Command {
	var freeOnly bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog grouped by provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tID\tNAME\tCONTEXT\tTIER")
			for _, g := range a.Orch.Catalog().Groups() {
				for _, m := range g.Models {
					if freeOnly && !m.IsFree {
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", g.Provider, m.ID, m.DisplayName, m.ContextSize, tier(m))
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&freeOnly, "free", false, "only free models")
	return cmd
}

func tier(m catalog.Model) string {
	switch {
	case m.IsCustom:
		return "custom"
	case m.IsFree:
		return "free"
	}
	return "premium"
}

func presetsCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List model presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, p := range catalog.Presets() {
				fmt.Fprintf(out, "%s  %s\n    %s\n", p.ID, p.Name, p.Description)
				roles := make([]string, 0, len(p.Models))
				for r := range p.Models {
					roles = append(roles, r)
				}
				sort.Strings(roles)
				for _, r := range roles {
					fmt.Fprintf(out, "    %-12s %s\n", r, p.Models[r])
				}
			}
			return nil
		},
	}
	apply := &cobra.Command{
		Use:   "apply <id>",
		Short: "Assign a preset's models to the agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			changed, err := a.Orch.ApplyPreset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d agents: %v\n", len(changed), changed)
			return nil
		},
	}
	cmd.AddCommand(apply)
	return cmd
}
