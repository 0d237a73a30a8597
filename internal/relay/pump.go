package relay

import (
	"context"
	"errors"
	"io"

	"github.com/danmuck/amqpwire/internal/observability"
	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/wire"
	"github.com/rs/zerolog"
)

// Observer sees every frame after it decodes and before it is forwarded.
type Observer func(direction string, f protocol.Frame)

// PumpOptions configures one direction of a relay.
type PumpOptions struct {
	Direction string
	Limits    frame.Limits
	Logger    zerolog.Logger
	Observe   Observer
}

// Pump decodes frames from src and re-encodes them onto dst, in arrival
// order, until src closes on a frame boundary (nil error), ctx is done, or a
// frame fails to decode or write. Pass-through frames are re-emitted byte for
// byte. It returns the number of frames forwarded.
func Pump(ctx context.Context, src io.Reader, dst io.Writer, opts PumpOptions) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		f, err := protocol.ReadFrame(src, opts.Limits)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			observability.RecordCodecError(opts.Direction, ErrorKind(err))
			return n, err
		}

		if opts.Observe != nil {
			opts.Observe(opts.Direction, f)
		}
		if e := opts.Logger.Trace(); e.Enabled() {
			e.Str("direction", opts.Direction).
				Uint16("channel", f.ChannelID()).
				Str("frame", protocol.Describe(f)).
				Msg("relay frame")
		}

		raw, err := protocol.Encode(f)
		if err != nil {
			observability.RecordCodecError(opts.Direction, ErrorKind(err))
			return n, err
		}
		if err := frame.WriteFrame(dst, raw, opts.Limits); err != nil {
			return n, err
		}
		observability.RecordFrame(opts.Direction, raw.Type.String(), frameKind(f), frame.HeaderLen+len(raw.Body)+1)
		n++
	}
}

func frameKind(f protocol.Frame) string {
	switch f.(type) {
	case protocol.MethodFrame:
		return "method"
	case protocol.GenericBasic:
		return "generic_basic"
	case protocol.HeartbeatFrame:
		return "heartbeat"
	default:
		return "generic"
	}
}

// ErrorKind maps a codec error to a short metrics label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, protocol.ErrInvalidFrameEnd):
		return "invalid_frame_end"
	case errors.Is(err, protocol.ErrUnknownMethod):
		return "unknown_method"
	case errors.Is(err, protocol.ErrFrameTooLarge):
		return "frame_too_large"
	case errors.Is(err, protocol.ErrTrailingBytes):
		return "trailing_bytes"
	case errors.Is(err, wire.ErrTableOverrun), errors.Is(err, wire.ErrUnknownFieldTag):
		return "malformed_table"
	case errors.Is(err, protocol.ErrEndOfStream):
		return "end_of_stream"
	case errors.Is(err, protocol.ErrBadProtocolHeader):
		return "bad_protocol_header"
	default:
		return "other"
	}
}
