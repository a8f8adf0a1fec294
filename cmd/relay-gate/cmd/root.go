// Package cmd provides the CLI commands for Relay Gate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Relay-Gate/Relaygate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "relay-gate",
	Short: "Relay Gate - JSON-RPC duplex transport server",
	Long: `Relay Gate carries JSON-RPC 2.0 traffic between peers over duplex
transports: Server-Sent Events with a correlated message endpoint,
stdin/stdout, or WebSocket.

Quick start:
  1. Create a config file: relay-gate.yaml
  2. Run: relay-gate serve

Configuration:
  Config is loaded from relay-gate.yaml in the current directory,
  $HOME/.relay-gate/, or /etc/relay-gate/.

  Environment variables can override config values with the RELAY_GATE_ prefix.
  Example: RELAY_GATE_SERVER_HTTP_ADDR=:9090

Commands:
  serve        Start the transport server
  hash-secret  Generate an Argon2id hash for a client secret
  version      Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./relay-gate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
