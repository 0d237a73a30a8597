package protocol

import (
	"io"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
)

// Encode returns the envelope for f with its body serialized.
func Encode(f Frame) (frame.Frame, error) {
	if f == nil {
		return frame.Frame{}, ErrNilFrame
	}
	body, err := f.body()
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.Frame{Type: f.FrameType(), Channel: f.ChannelID(), Body: body}, nil
}

// Marshal returns the complete wire bytes for f, end octet included.
func Marshal(f Frame) ([]byte, error) {
	raw, err := Encode(f)
	if err != nil {
		return nil, err
	}
	return frame.Encode(raw), nil
}

// WriteFrame encodes f and writes it to w in a single Write call.
func WriteFrame(w io.Writer, f Frame, limits frame.Limits) error {
	raw, err := Encode(f)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, raw, limits)
}
