package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/toolgate"
	"github.com/aretw0/toolgate/internal/cli"
	"github.com/aretw0/toolgate/pkg/config"
	"github.com/aretw0/toolgate/pkg/adapters/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long:  `Starts the gateway in server mode, exposing credential management, tool execution, and the message pipeline over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		listen, _ := cmd.Flags().GetString("listen")

		logger := cli.CreateLogger(debug)

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("listen") {
			cfg.Listen = listen
		}

		gw, err := toolgate.New(cfg, toolgate.WithLogger(logger))
		if err != nil {
			fmt.Printf("Error initializing toolgate: %v\n", err)
			os.Exit(1)
		}

		api := httpapi.New(gw.Tools(), gw.Orchestrator(), gw,
			httpapi.WithLogger(logger),
			httpapi.WithGatherer(gw.Registry()))

		srv := &http.Server{
			Addr:    cfg.Listen,
			Handler: api.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Toolgate Server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			// Error when starting HTTP server.
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 10*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}

			// Stop the managed tool servers as well.
			if err := gw.Shutdown(ctx); err != nil {
				fmt.Printf("Tool server shutdown incomplete: %v\n", err)
			}
			fmt.Println("Toolgate Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
}
