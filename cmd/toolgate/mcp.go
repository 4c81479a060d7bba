package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/toolgate"
	"github.com/aretw0/toolgate/internal/cli"
	"github.com/aretw0/toolgate/pkg/config"
	"github.com/aretw0/toolgate/pkg/adapters/mcpserver"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the gateway as an MCP Server over stdio.
This allows AI agents to drive credential-scoped tool execution through the gateway as tools.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")

		// Logs go to stderr; stdout carries the MCP framing.
		logger := cli.CreateLogger(debug)

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		gw, err := toolgate.New(cfg, toolgate.WithLogger(logger))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing toolgate: %v\n", err)
			os.Exit(1)
		}

		srv := mcpserver.NewServer(gw.Tools(), gw.Orchestrator(), toolgate.Version)
		if err := srv.ServeStdio(); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
