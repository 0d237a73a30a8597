package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/amqpwire/internal/admin"
	"github.com/danmuck/amqpwire/internal/auth"
	"github.com/danmuck/amqpwire/internal/config"
	"github.com/danmuck/amqpwire/internal/logging"
	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/relay"
	"github.com/danmuck/amqpwire/internal/upstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func tapCmd() *cobra.Command {
	var (
		configPath string
		showFrames bool
	)

	cmd := &cobra.Command{
		Use:   "tap",
		Short: "Relay client connections to the broker and decode every frame",
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTap(ctx, cfg, showFrames)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to tap config (TOML)")
	cmd.Flags().BoolVar(&showFrames, "show-frames", false, "Log every relayed frame at info level")
	return cmd
}

func runTap(ctx context.Context, cfg config.TapConfig, showFrames bool) error {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("relay listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessions := relay.NewRegistry()
	relayCfg := relay.Config{
		Limits:           cfg.Limits(),
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if showFrames {
		relayCfg.Observe = func(direction string, f protocol.Frame) {
			log.Info().
				Str("direction", direction).
				Uint16("channel", f.ChannelID()).
				Str("frame", protocol.Describe(f)).
				Msg("frame")
		}
	}
	dialOpts := cfg.DialOptions()
	dial := func(ctx context.Context) (net.Conn, error) {
		return upstream.Dial(ctx, dialOpts)
	}

	var srv *admin.Server
	adminErr := make(chan error, 1)
	if cfg.AdminAddr != "" {
		adminLn, err := net.Listen("tcp", cfg.AdminAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("admin listen: %w", err)
		}
		var guard auth.Validator
		if cfg.AdminToken != "" {
			guard = auth.StaticToken{Token: cfg.AdminToken}
		}
		srv = admin.New("amqptap", cfg.AdminAddr, cfg.AdminCORSOrigins, sessions, guard)
		srv.SetReady(true)
		go func() { adminErr <- srv.Serve(ctx, adminLn) }()
	} else {
		close(adminErr)
	}

	log.Info().
		Str("listen", cfg.Listen).
		Str("upstream", cfg.Upstream).
		Str("admin", cfg.AdminAddr).
		Uint32("max_frame_size", cfg.MaxFrameSize).
		Msg("amqptap starting")

	err = relay.Serve(ctx, ln, dial, relayCfg, sessions)
	if srv != nil {
		srv.SetReady(false)
	}
	// The admin server shares ctx and must stop with the relay.
	cancel()
	if aerr := <-adminErr; aerr != nil && err == nil {
		err = aerr
	}
	return err
}

// applyLogLevel honors the config level unless the environment already set
// one.
func applyLogLevel(level string) {
	if os.Getenv(logging.EnvLogLevel) != "" {
		return
	}
	if lvl, ok := logging.ParseLevel(level); ok {
		zerolog.SetGlobalLevel(lvl)
	}
}
