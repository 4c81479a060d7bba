package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/toolgate/internal/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the gateway from the terminal",
	Long:  `Starts a local REPL that runs each typed line through the same pipeline an incoming WhatsApp message would take. Replies render on stdout instead of being delivered.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		from, _ := cmd.Flags().GetString("from")
		headless, _ := cmd.Flags().GetBool("headless")

		err := cli.RunChat(cli.ChatOptions{
			ConfigPath: configPath,
			From:       from,
			Debug:      debug,
			Headless:   headless,
		})
		if err != nil {
			fmt.Printf("Chat session failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("from", "local-user", "Sender identity for the session")
	chatCmd.Flags().Bool("headless", false, "Plain output without banner or markdown rendering")
}
