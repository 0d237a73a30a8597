package main

import (
	"fmt"
	"os"

	"github.com/danmuck/amqpwire/internal/admin"
	"github.com/danmuck/amqpwire/internal/logging"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	admin.Version = version
	rootCmd := &cobra.Command{
		Use:   "amqptap",
		Short: "AMQP 0-9-1 frame relay and decoder",
		Long: `amqptap sits between AMQP 0-9-1 clients and a broker.

It decodes every frame that crosses it, relays frames it does not model
byte for byte, and exposes session and frame metrics over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.ConfigureRuntime()
		},
	}

	rootCmd.AddCommand(
		decodeCmd(),
		tapCmd(),
		probeCmd(),
		initConfigCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "amqptap: %v\n", err)
		os.Exit(1)
	}
}
