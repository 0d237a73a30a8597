package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/amqpwire/internal/observability"
	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Dialer opens the broker-side connection for one session.
type Dialer func(ctx context.Context) (net.Conn, error)

var ErrUpstreamUnavailable = errors.New("relay: upstream unavailable")

// Config defines the relay behavior shared by every session.
type Config struct {
	Limits           frame.Limits
	HandshakeTimeout time.Duration
	Observe          Observer
}

func DefaultConfig() Config {
	return Config{
		Limits:           frame.DefaultLimits(),
		HandshakeTimeout: 10 * time.Second,
	}
}

// Session relays one client connection to one broker connection.
type Session struct {
	ID       string
	Client   net.Conn
	Opened   time.Time
	cfg      Config
	dial     Dialer
	logger   zerolog.Logger
	upFrames atomic.Int64
	dnFrames atomic.Int64
}

// SessionInfo is a point-in-time view of a session for the admin surface.
type SessionInfo struct {
	ID             string    `json:"id"`
	Remote         string    `json:"remote"`
	Opened         time.Time `json:"opened"`
	FramesUpstream int64     `json:"frames_upstream"`
	FramesDownward int64     `json:"frames_downstream"`
}

func NewSession(client net.Conn, dial Dialer, cfg Config) *Session {
	id := uuid.NewString()
	return &Session{
		ID:     id,
		Client: client,
		Opened: time.Now(),
		cfg:    cfg,
		dial:   dial,
		logger: log.With().Str("session", id).Str("remote", remoteAddr(client)).Logger(),
	}
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:             s.ID,
		Remote:         remoteAddr(s.Client),
		Opened:         s.Opened,
		FramesUpstream: s.upFrames.Load(),
		FramesDownward: s.dnFrames.Load(),
	}
}

// Run forwards the protocol header, dials the broker, and relays frames in
// both directions until either side ends. Both connections are closed when
// Run returns.
func (s *Session) Run(ctx context.Context) (err error) {
	observability.SessionOpened()
	defer func() {
		outcome := "clean"
		if err != nil {
			outcome = ErrorKind(err)
		}
		observability.SessionClosed(outcome, time.Since(s.Opened))
	}()
	defer s.Client.Close()

	if s.cfg.HandshakeTimeout > 0 {
		_ = s.Client.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}
	if _, err := protocol.ReadProtocolHeader(s.Client); err != nil {
		if errors.Is(err, protocol.ErrBadProtocolHeader) {
			// the client learns which protocol we speak before the close
			_ = protocol.WriteProtocolHeader(s.Client)
		}
		s.logger.Warn().Err(err).Msg("relay rejected protocol header")
		return err
	}
	_ = s.Client.SetReadDeadline(time.Time{})

	upstream, err := s.dial(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("relay upstream dial failed")
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer upstream.Close()

	if err := protocol.WriteProtocolHeader(upstream); err != nil {
		return fmt.Errorf("%w: write protocol header: %w", ErrUpstreamUnavailable, err)
	}
	s.logger.Info().Str("upstream", remoteAddr(upstream)).Msg("relay session open")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		_ = s.Client.Close()
		_ = upstream.Close()
	})
	defer stop()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	run := func(src, dst net.Conn, direction string, counter *atomic.Int64) {
		defer wg.Done()
		observe := func(dir string, f protocol.Frame) {
			counter.Add(1)
			if s.cfg.Observe != nil {
				s.cfg.Observe(dir, f)
			}
		}
		n, err := Pump(ctx, src, dst, PumpOptions{
			Direction: direction,
			Limits:    s.cfg.Limits,
			Logger:    s.logger,
			Observe:   observe,
		})
		if err != nil && ctx.Err() == nil {
			errOnce.Do(func() { firstErr = err })
			s.logger.Warn().Err(err).Str("direction", direction).Int("frames", n).Msg("relay pump stopped")
		} else {
			s.logger.Debug().Str("direction", direction).Int("frames", n).Msg("relay pump finished")
		}
		cancel()
	}

	wg.Add(2)
	go run(s.Client, upstream, observability.DirectionUpstream, &s.upFrames)
	go run(upstream, s.Client, observability.DirectionDownstream, &s.dnFrames)
	wg.Wait()

	s.logger.Info().
		Int64("frames_upstream", s.upFrames.Load()).
		Int64("frames_downstream", s.dnFrames.Load()).
		Dur("lifetime", time.Since(s.Opened)).
		Msg("relay session closed")
	return firstErr
}

func remoteAddr(c net.Conn) string {
	if c == nil || c.RemoteAddr() == nil {
		return ""
	}
	return c.RemoteAddr().String()
}
