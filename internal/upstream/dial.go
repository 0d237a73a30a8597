package upstream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrDialExhausted = errors.New("upstream: dial attempts exhausted")

// DialOptions bounds how Dial reaches the broker.
type DialOptions struct {
	Address        string
	ConnectTimeout time.Duration
	Attempts       int
	Backoff        BackoffConfig
}

// Dial connects to the broker, retrying with backoff until Attempts are used
// up or ctx is done. Attempts <= 0 means a single try.
func Dial(ctx context.Context, opts DialOptions) (net.Conn, error) {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	d := net.Dialer{Timeout: opts.ConnectTimeout}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", opts.Address)
		if err == nil {
			if attempt > 1 {
				log.Info().Str("addr", opts.Address).Int("attempt", attempt).Msg("upstream dial recovered")
			}
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == attempts {
			break
		}

		delay := NextBackoffDelay(opts.Backoff, attempt, rng)
		log.Debug().Err(err).Str("addr", opts.Address).Int("attempt", attempt).Dur("retry_in", delay).Msg("upstream dial failed")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrDialExhausted, opts.Address, attempts, lastErr)
}
