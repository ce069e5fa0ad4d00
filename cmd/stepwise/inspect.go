package main

import (
	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/cli"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/spf13/cobra"
)

// openForInspection loads the agent without contacting a model; the
// scripted oracle is never asked for a decision.
func openForInspection(cmd *cobra.Command, args []string) (*stepwise.Agent, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.OpenAgent(agentPath(cmd, args), cfg, oracle.NewScripted(), cli.NewLogger(cfg, false), domain.LifecycleHooks{})
}
