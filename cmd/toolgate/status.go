package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/toolgate/internal/presentation/graph"
	"github.com/aretw0/toolgate/pkg/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running gateway's tool servers",
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		asGraph, _ := cmd.Flags().GetBool("graph")

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Get(addr + "/status")
		if err != nil {
			fmt.Printf("Error reaching gateway at %s: %v\n", addr, err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf("Gateway returned %s\n", resp.Status)
			os.Exit(1)
		}

		var statuses map[string]orchestrator.ServerStatus
		if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
			fmt.Printf("Error decoding status: %v\n", err)
			os.Exit(1)
		}

		if asGraph {
			fmt.Println(graph.GenerateMermaid(statuses))
			return
		}

		names := make([]string, 0, len(statuses))
		for name := range statuses {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("%-20s %-10s %-8s %-8s %s\n", "SERVER", "TRANSPORT", "RUNNING", "PID", "LAST ERROR")
		for _, name := range names {
			st := statuses[name]
			pid := "-"
			if st.PID != 0 {
				pid = fmt.Sprintf("%d", st.PID)
			}
			fmt.Printf("%-20s %-10s %-8v %-8s %s\n", name, st.Transport, st.Running, pid, st.LastError)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("addr", "http://localhost:8080", "Base URL of the running gateway")
	statusCmd.Flags().Bool("graph", false, "Print the topology as a Mermaid graph")
}
