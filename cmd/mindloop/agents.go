package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/export"
)

func agentsCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List, export or import agent configs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List agents and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROLE\tNAME\tACTIVE\tMODEL")
			for _, c := range a.Orch.Agents() {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.Role, c.Name, c.IsActive, c.ModelID)
			}
			return tw.Flush()
		},
	}

	exp := &cobra.Command{
		Use:   "export",
		Short: "Write agent configs as YAML to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Orch.ExportAgents(cmd.OutOrStdout())
		},
	}

	imp := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Replace agent configs from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Orch.ImportAgents(cmd.Context(), f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d agents\n", len(a.Orch.Agents()))
			return nil
		},
	}

	cmd.AddCommand(list, exp, imp)
	return cmd
}

func namer(list []agents.Config) export.Namer {
	names := make(map[string]string, len(list))
	for _, c := range list {
		names[c.Role] = c.Name
	}
	return func(role string) string {
		if n, ok := names[role]; ok {
			return n
		}
		return role
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
