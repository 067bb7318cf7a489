package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8090", "dispatchd server URL")
	rootCmd.AddCommand(statusCmd)
}

// statusCmd queries a running daemon for backend health.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend endpoint health of a running daemon",
	Long: `Query a running dispatchd for the health of its AI backends.

Examples:
  # Check the local daemon
  dispatchd status

  # Check a remote daemon
  dispatchd status --server http://dispatch.internal:8090`,
	RunE: runStatus,
}

// endpointStatus mirrors internal/httpapi ChatStatusResponse entries.
type endpointStatus struct {
	URL                 string `json:"url"`
	Status              string `json:"status"`
	ResponseTimeMs      int64  `json:"responseTimeMs"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

type statusResponse struct {
	Status             string           `json:"status"`
	Endpoints          []endpointStatus `json:"endpoints"`
	AvailableEndpoints int              `json:"availableEndpoints"`
	TotalEndpoints     int              `json:"totalEndpoints"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(serverURL + "/api/v1/chat/status")
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	fmt.Printf("Backends: %d/%d available\n", status.AvailableEndpoints, status.TotalEndpoints)
	for _, ep := range status.Endpoints {
		fmt.Printf("  %-12s %6dms  failures=%d  %s\n",
			ep.Status, ep.ResponseTimeMs, ep.ConsecutiveFailures, ep.URL)
	}
	return nil
}
