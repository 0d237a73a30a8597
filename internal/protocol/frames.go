package protocol

import (
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/wire"
)

// Frame is one decoded frame. The implementations are closed to this
// package: MethodFrame, GenericFrame, GenericBasic and HeartbeatFrame.
// Callers switch on the concrete type and keep a default arm for
// GenericFrame relay.
type Frame interface {
	FrameType() frame.Type
	ChannelID() uint16
	body() ([]byte, error)
}

// Method is one modeled method record. Its class and method ids are fixed by
// the concrete type.
type Method interface {
	ID() (classID, methodID uint16)
	Name() string
	size() int
	write(w *wire.Writer) error
}

// MethodFrame is a method-typed frame carrying a modeled method.
type MethodFrame struct {
	Channel uint16
	Method  Method
}

func (f MethodFrame) FrameType() frame.Type { return frame.TypeMethod }
func (f MethodFrame) ChannelID() uint16     { return f.Channel }

func (f MethodFrame) body() ([]byte, error) {
	if f.Method == nil {
		return nil, ErrNilFrame
	}
	classID, methodID := f.Method.ID()
	w := wire.NewWriter(4 + f.Method.size())
	w.Uint16(classID)
	w.Uint16(methodID)
	if err := f.Method.write(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// GenericFrame holds any frame whose body is not modeled: content header and
// body frames, and method frames of an unknown class. Body is exactly the
// bytes that were read, so re-encoding reproduces the original frame.
type GenericFrame struct {
	Type    frame.Type
	Channel uint16
	Body    []byte
}

func (f GenericFrame) FrameType() frame.Type { return f.Type }
func (f GenericFrame) ChannelID() uint16     { return f.Channel }
func (f GenericFrame) body() ([]byte, error) { return f.Body, nil }

// ClassID returns the class id of a method-typed generic frame.
func (f GenericFrame) ClassID() (uint16, bool) {
	if f.Type != frame.TypeMethod || len(f.Body) < 2 {
		return 0, false
	}
	return uint16(f.Body[0])<<8 | uint16(f.Body[1]), true
}

// GenericBasic is a basic-class method frame whose method is not modeled.
// Rest holds every byte after the method id.
type GenericBasic struct {
	Channel  uint16
	MethodID uint16
	Rest     []byte
}

func (f GenericBasic) FrameType() frame.Type { return frame.TypeMethod }
func (f GenericBasic) ChannelID() uint16     { return f.Channel }

func (f GenericBasic) body() ([]byte, error) {
	w := wire.NewWriter(4 + len(f.Rest))
	w.Uint16(ClassBasic)
	w.Uint16(f.MethodID)
	w.Raw(f.Rest)
	return w.Bytes(), nil
}

// ID returns the basic class id and the preserved method id.
func (f GenericBasic) ID() (uint16, uint16) {
	return ClassBasic, f.MethodID
}

// HeartbeatFrame is the empty heartbeat frame. It always travels on channel 0.
type HeartbeatFrame struct{}

func (HeartbeatFrame) FrameType() frame.Type { return frame.TypeHeartbeat }
func (HeartbeatFrame) ChannelID() uint16     { return 0 }
func (HeartbeatFrame) body() ([]byte, error) { return nil, nil }

var (
	_ Frame = MethodFrame{}
	_ Frame = GenericFrame{}
	_ Frame = GenericBasic{}
	_ Frame = HeartbeatFrame{}
)
