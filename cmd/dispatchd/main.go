// Dispatchd routes chat requests from the education platform to a pool of
// AI inference backends, tracking backend health, classifying requests into
// timeout tiers, and enriching prompts with lecture material context.
//
// Usage:
//
//	# Start the daemon with defaults
//	dispatchd serve
//
//	# Start with a config file
//	dispatchd serve --config /etc/dispatchd/config.yaml
//
//	# Configure via environment
//	SERVER_PORT=8090 UPSTREAM_ENDPOINTS=http://gpu1:8000/chat/completions dispatchd serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "dispatchd",
	Short: "AI request dispatch daemon for the BELTO education platform",
	Long: `dispatchd sits between the chat frontend and a pool of AI inference
backends. It selects the healthiest backend for each request, retries across
backends on failure, and enriches prompts with lecture materials.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
