package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/amqpwire/internal/config"
	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/wire"
	"github.com/danmuck/amqpwire/internal/upstream"
	"github.com/spf13/cobra"
)

func probeCmd() *cobra.Command {
	var (
		configPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Handshake with the broker and print what it offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultTapConfig()
			if configPath != "" {
				loaded, err := config.LoadTapConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			applyLogLevel(cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runProbe(ctx, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to tap config (TOML)")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Overall probe deadline")
	return cmd
}

func runProbe(ctx context.Context, cfg config.TapConfig, out io.Writer) error {
	conn, err := upstream.Dial(ctx, cfg.DialOptions())
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := upstream.Handshake(ctx, conn, cfg.Credentials, cfg.Defaults)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "broker      %s\n", cfg.Upstream)
	fmt.Fprintf(out, "mechanisms  %v\n", n.Mechanisms)
	fmt.Fprintf(out, "locales     %v\n", n.Locales)
	fmt.Fprintf(out, "channel-max %d\n", n.ChannelMax)
	fmt.Fprintf(out, "frame-max   %d\n", n.FrameMax)
	fmt.Fprintf(out, "heartbeat   %s\n", n.Heartbeat)
	printTable(out, "", n.ServerProperties)

	return upstream.Close(ctx, conn, protocol.ReplySuccess, "probe done")
}

func printTable(out io.Writer, indent string, t wire.Table) {
	for _, field := range t {
		if nested, ok := field.Value.(wire.Table); ok {
			fmt.Fprintf(out, "%s%s:\n", indent, field.Name)
			printTable(out, indent+"  ", nested)
			continue
		}
		fmt.Fprintf(out, "%s%s = %v\n", indent, field.Name, field.Value)
	}
}
