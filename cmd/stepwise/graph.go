package main

import (
	"fmt"

	"github.com/aretw0/stepwise/internal/cli"
	"github.com/aretw0/stepwise/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [path]",
	Short: "Export the agent graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the agent's steps, routes and flows.
With --session the steps the session went through are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := openForInspection(cmd, args)
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := cli.NewPersistence(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer p.Close()
			snap, err := p.Store.Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", sessionID, err)
			}
			overlay = graph.OverlayFromSnapshot(snap)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(agent.Inspect(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight the path of this session")
}
