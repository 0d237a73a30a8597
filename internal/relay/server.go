package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	acceptRetryMin = 5 * time.Millisecond
	acceptRetryMax = time.Second
)

// Serve accepts client connections on ln and runs a session for each one
// until ctx is done. Temporary accept errors are retried with a growing
// delay. On return ln is closed, live sessions are cancelled and Serve waits
// for them to finish.
func Serve(ctx context.Context, ln net.Listener, dial Dialer, cfg Config, reg *Registry) error {
	if reg == nil {
		reg = NewRegistry()
	}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = ln.Close()
		wg.Wait()
	}()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	log.Info().Str("addr", ln.Addr().String()).Msg("relay listening")

	var retry time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Msg("relay listener closed")
				return nil
			}
			if !isTemporary(err) {
				log.Error().Err(err).Msg("relay accept failed")
				return err
			}
			retry = nextAcceptRetry(retry)
			log.Warn().Err(err).Dur("retry_in", retry).Msg("relay accept failed, retrying")
			t := time.NewTimer(retry)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			continue
		}
		retry = 0

		s := NewSession(conn, dial, cfg)
		reg.Add(s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reg.Remove(s.ID)
			_ = s.Run(ctx)
		}()
	}
}

func nextAcceptRetry(prev time.Duration) time.Duration {
	if prev == 0 {
		return acceptRetryMin
	}
	return min(prev*2, acceptRetryMax)
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
