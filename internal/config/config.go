package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/amqpwire/internal/logging"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/upstream"
)

// TapConfig is the runtime configuration of the relay and probe commands.
type TapConfig struct {
	Listen           string
	Upstream         string
	AdminAddr        string
	AdminCORSOrigins []string
	AdminToken       string
	MaxFrameSize     uint32
	HandshakeTimeout time.Duration
	LogLevel         string

	ConnectTimeout time.Duration
	DialAttempts   int
	Backoff        upstream.BackoffConfig

	Credentials upstream.Credentials
	Defaults    upstream.Defaults
}

type fileConfig struct {
	Listen           string   `toml:"listen"`
	Upstream         string   `toml:"upstream"`
	AdminAddr        string   `toml:"admin_addr"`
	AdminCORSOrigins []string `toml:"admin_cors_origins"`
	AdminToken       string   `toml:"admin_token"`
	MaxFrameSize     int64    `toml:"max_frame_size"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	LogLevel         string   `toml:"log_level"`

	Dial        dialSection        `toml:"dial"`
	Credentials credentialsSection `toml:"credentials"`
	Defaults    defaultsSection    `toml:"defaults"`
}

type dialSection struct {
	ConnectTimeout string  `toml:"connect_timeout"`
	Attempts       int     `toml:"attempts"`
	InitialDelay   string  `toml:"initial_delay"`
	Multiplier     float64 `toml:"multiplier"`
	MaxDelay       string  `toml:"max_delay"`
	Jitter         bool    `toml:"jitter"`
}

type credentialsSection struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type defaultsSection struct {
	VirtualHost string `toml:"vhost"`
	Locale      string `toml:"locale"`
	Mechanism   string `toml:"mechanism"`
	ChannelMax  int64  `toml:"channel_max"`
	FrameMax    int64  `toml:"frame_max"`
	Heartbeat   string `toml:"heartbeat"`
	Product     string `toml:"product"`
}

func DefaultTapConfig() TapConfig {
	return TapConfig{
		Listen:           "127.0.0.1:5673",
		Upstream:         "127.0.0.1:5672",
		AdminAddr:        "127.0.0.1:15673",
		MaxFrameSize:     frame.DefaultLimits().MaxBodyBytes,
		HandshakeTimeout: 10 * time.Second,
		LogLevel:         "info",
		ConnectTimeout:   5 * time.Second,
		DialAttempts:     3,
		Backoff:          upstream.DefaultBackoff(),
		Credentials:      upstream.Credentials{Username: "guest", Password: "guest"},
		Defaults:         upstream.DefaultDefaults(),
	}
}

// LoadTapConfig reads path over DefaultTapConfig. Keys missing from the file
// keep their defaults.
func LoadTapConfig(path string) (TapConfig, error) {
	cfg := DefaultTapConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return TapConfig{}, fmt.Errorf("load tap config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return TapConfig{}, fmt.Errorf("load tap config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("upstream") {
		cfg.Upstream = strings.TrimSpace(raw.Upstream)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_cors_origins") {
		cfg.AdminCORSOrigins = normalizeList(raw.AdminCORSOrigins)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("max_frame_size") {
		if raw.MaxFrameSize < 0 || raw.MaxFrameSize > int64(^uint32(0)) {
			return TapConfig{}, fmt.Errorf("max_frame_size out of range: %d", raw.MaxFrameSize)
		}
		cfg.MaxFrameSize = uint32(raw.MaxFrameSize)
	}
	if meta.IsDefined("handshake_timeout") {
		if cfg.HandshakeTimeout, err = parseDuration("handshake_timeout", raw.HandshakeTimeout); err != nil {
			return TapConfig{}, err
		}
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("dial", "connect_timeout") {
		if cfg.ConnectTimeout, err = parseDuration("dial.connect_timeout", raw.Dial.ConnectTimeout); err != nil {
			return TapConfig{}, err
		}
	}
	if meta.IsDefined("dial", "attempts") {
		cfg.DialAttempts = raw.Dial.Attempts
	}
	if meta.IsDefined("dial", "initial_delay") {
		if cfg.Backoff.InitialDelay, err = parseDuration("dial.initial_delay", raw.Dial.InitialDelay); err != nil {
			return TapConfig{}, err
		}
	}
	if meta.IsDefined("dial", "multiplier") {
		cfg.Backoff.Multiplier = raw.Dial.Multiplier
	}
	if meta.IsDefined("dial", "max_delay") {
		if cfg.Backoff.MaxDelay, err = parseDuration("dial.max_delay", raw.Dial.MaxDelay); err != nil {
			return TapConfig{}, err
		}
	}
	if meta.IsDefined("dial", "jitter") {
		cfg.Backoff.Jitter = raw.Dial.Jitter
	}

	if meta.IsDefined("credentials", "username") {
		cfg.Credentials.Username = raw.Credentials.Username
	}
	if meta.IsDefined("credentials", "password") {
		cfg.Credentials.Password = raw.Credentials.Password
	}

	if meta.IsDefined("defaults", "vhost") {
		cfg.Defaults.VirtualHost = raw.Defaults.VirtualHost
	}
	if meta.IsDefined("defaults", "locale") {
		cfg.Defaults.Locale = strings.TrimSpace(raw.Defaults.Locale)
	}
	if meta.IsDefined("defaults", "mechanism") {
		cfg.Defaults.Mechanism = strings.ToUpper(strings.TrimSpace(raw.Defaults.Mechanism))
	}
	if meta.IsDefined("defaults", "channel_max") {
		if raw.Defaults.ChannelMax < 0 || raw.Defaults.ChannelMax > int64(^uint16(0)) {
			return TapConfig{}, fmt.Errorf("defaults.channel_max out of range: %d", raw.Defaults.ChannelMax)
		}
		cfg.Defaults.ChannelMax = uint16(raw.Defaults.ChannelMax)
	}
	if meta.IsDefined("defaults", "frame_max") {
		if raw.Defaults.FrameMax < 0 || raw.Defaults.FrameMax > int64(^uint32(0)) {
			return TapConfig{}, fmt.Errorf("defaults.frame_max out of range: %d", raw.Defaults.FrameMax)
		}
		cfg.Defaults.FrameMax = uint32(raw.Defaults.FrameMax)
	}
	if meta.IsDefined("defaults", "heartbeat") {
		if cfg.Defaults.Heartbeat, err = parseDuration("defaults.heartbeat", raw.Defaults.Heartbeat); err != nil {
			return TapConfig{}, err
		}
	}
	if meta.IsDefined("defaults", "product") {
		cfg.Defaults.Product = strings.TrimSpace(raw.Defaults.Product)
	}

	if err := ValidateTapConfig(cfg); err != nil {
		return TapConfig{}, err
	}
	return cfg, nil
}

func ValidateTapConfig(cfg TapConfig) error {
	if err := validateAddr("listen", cfg.Listen, true); err != nil {
		return err
	}
	if err := validateAddr("upstream", cfg.Upstream, true); err != nil {
		return err
	}
	if err := validateAddr("admin_addr", cfg.AdminAddr, false); err != nil {
		return err
	}
	if cfg.MaxFrameSize != 0 && cfg.MaxFrameSize < 4096 {
		return fmt.Errorf("max_frame_size must be 0 or at least 4096, got %d", cfg.MaxFrameSize)
	}
	if cfg.HandshakeTimeout < 0 || cfg.ConnectTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if cfg.DialAttempts < 0 {
		return fmt.Errorf("dial.attempts must not be negative, got %d", cfg.DialAttempts)
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("log_level %q unrecognized", cfg.LogLevel)
	}
	switch cfg.Defaults.Mechanism {
	case upstream.MechanismPlain, upstream.MechanismAMQPlain:
	default:
		return fmt.Errorf("defaults.mechanism %q unsupported", cfg.Defaults.Mechanism)
	}
	if strings.TrimSpace(cfg.Defaults.VirtualHost) == "" {
		return fmt.Errorf("defaults.vhost is required")
	}
	if cfg.Defaults.Heartbeat%time.Second != 0 || cfg.Defaults.Heartbeat > time.Duration(^uint16(0))*time.Second {
		return fmt.Errorf("defaults.heartbeat must be whole seconds up to 65535s, got %s", cfg.Defaults.Heartbeat)
	}
	return nil
}

// Limits returns the frame limits implied by MaxFrameSize.
func (c TapConfig) Limits() frame.Limits {
	return frame.Limits{MaxBodyBytes: c.MaxFrameSize}
}

// DialOptions returns the upstream dial settings.
func (c TapConfig) DialOptions() upstream.DialOptions {
	return upstream.DialOptions{
		Address:        c.Upstream,
		ConnectTimeout: c.ConnectTimeout,
		Attempts:       c.DialAttempts,
		Backoff:        c.Backoff,
	}
}

func parseDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func validateAddr(key, addr string, required bool) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		if required {
			return fmt.Errorf("%s is required", key)
		}
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q: %w", key, addr, err)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
