package protocol

import (
	"fmt"
	"io"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/wire"
)

// ReadFrame reads and decodes exactly one frame from r. It blocks until the
// frame is complete or r fails; frames are returned strictly in stream order.
func ReadFrame(r io.Reader, limits frame.Limits) (Frame, error) {
	raw, err := frame.ReadFrame(r, limits)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Decode turns one envelope into a typed frame. Method frames go through the
// class/method dispatch; content header, content body and non-canonical
// heartbeat frames stay GenericFrame.
func Decode(raw frame.Frame) (Frame, error) {
	switch raw.Type {
	case frame.TypeMethod:
		return decodeMethod(raw.Channel, raw.Body)
	case frame.TypeHeartbeat:
		if raw.Channel == 0 && len(raw.Body) == 0 {
			return HeartbeatFrame{}, nil
		}
	}
	return GenericFrame{Type: raw.Type, Channel: raw.Channel, Body: raw.Body}, nil
}

func decodeMethod(channel uint16, body []byte) (Frame, error) {
	r := wire.NewReader(body)
	classID, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("method class id: %w", err)
	}

	var m Method
	switch classID {
	case ClassConnection, ClassChannel, ClassBasic:
	default:
		return GenericFrame{Type: frame.TypeMethod, Channel: channel, Body: body}, nil
	}

	methodID, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("method id (class %d): %w", classID, err)
	}

	switch classID {
	case ClassConnection:
		m, err = readConnectionMethod(methodID, r)
	case ClassChannel:
		m, err = readChannelMethod(methodID, r)
	case ClassBasic:
		var ok bool
		m, ok, err = readBasicMethod(methodID, r)
		if err == nil && !ok {
			return GenericBasic{Channel: channel, MethodID: methodID, Rest: r.Rest()}, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MethodName(classID, methodID), err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %s has %d extra bytes", ErrTrailingBytes, m.Name(), r.Len())
	}
	return MethodFrame{Channel: channel, Method: m}, nil
}
