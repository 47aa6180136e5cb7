package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dinoki-ai/osagent/internal/mcp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the agent over MCP on stdio",
	Long: `Expose the agent over MCP on stdio.

Clients connect over stdin/stdout and drive the agent with the
agent_run, agent_next, agent_clarify, agent_status, and agent_cancel
tools. Tools whose policy is "ask" are denied in this mode since no
terminal is attached to approve them.

Examples:
  osagent serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// No approver: stdio carries the protocol, so "ask" tools deny.
	rt, err := newRuntime(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	watchConfig(rt.log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcp.New(rt.coord, rt.store, mcp.WithLogger(rt.log))
	return srv.Run(ctx)
}
