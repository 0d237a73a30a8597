package protocol

import "github.com/danmuck/amqpwire/internal/protocol/wire"

// ChannelOpen opens a channel. OutOfBand is reserved and sent empty.
type ChannelOpen struct {
	OutOfBand string
}

func (ChannelOpen) ID() (uint16, uint16) { return ClassChannel, MethodChannelOpen }
func (ChannelOpen) Name() string         { return "channel.open" }
func (m ChannelOpen) size() int          { return wire.ShortStringSize(m.OutOfBand) }

func (m ChannelOpen) write(w *wire.Writer) error {
	return w.ShortString(m.OutOfBand)
}

func readChannelOpen(r *wire.Reader) (m ChannelOpen, err error) {
	m.OutOfBand, err = r.ShortString()
	return
}

// ChannelOpenOk confirms a channel. ChannelID is reserved (a long string).
type ChannelOpenOk struct {
	ChannelID string
}

func (ChannelOpenOk) ID() (uint16, uint16) { return ClassChannel, MethodChannelOpenOk }
func (ChannelOpenOk) Name() string         { return "channel.open-ok" }
func (m ChannelOpenOk) size() int          { return wire.LongStringSize(m.ChannelID) }

func (m ChannelOpenOk) write(w *wire.Writer) error {
	return w.LongString(m.ChannelID)
}

func readChannelOpenOk(r *wire.Reader) (m ChannelOpenOk, err error) {
	m.ChannelID, err = r.LongString()
	return
}

type ChannelFlow struct {
	Active bool
}

func (ChannelFlow) ID() (uint16, uint16) { return ClassChannel, MethodChannelFlow }
func (ChannelFlow) Name() string         { return "channel.flow" }
func (ChannelFlow) size() int            { return 1 }

func (m ChannelFlow) write(w *wire.Writer) error {
	w.Bool(m.Active)
	return nil
}

func readChannelFlow(r *wire.Reader) (m ChannelFlow, err error) {
	m.Active, err = r.Bool()
	return
}

type ChannelFlowOk struct {
	Active bool
}

func (ChannelFlowOk) ID() (uint16, uint16) { return ClassChannel, MethodChannelFlowOk }
func (ChannelFlowOk) Name() string         { return "channel.flow-ok" }
func (ChannelFlowOk) size() int            { return 1 }

func (m ChannelFlowOk) write(w *wire.Writer) error {
	w.Bool(m.Active)
	return nil
}

func readChannelFlowOk(r *wire.Reader) (m ChannelFlowOk, err error) {
	m.Active, err = r.Bool()
	return
}

type ChannelClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (ChannelClose) ID() (uint16, uint16) { return ClassChannel, MethodChannelClose }
func (ChannelClose) Name() string         { return "channel.close" }
func (m ChannelClose) size() int          { return 6 + wire.ShortStringSize(m.ReplyText) }

func (m ChannelClose) write(w *wire.Writer) error {
	return writeClose(w, m.ReplyCode, m.ReplyText, m.ClassID, m.MethodID)
}

func readChannelClose(r *wire.Reader) (m ChannelClose, err error) {
	m.ReplyCode, m.ReplyText, m.ClassID, m.MethodID, err = readClose(r)
	return
}

type ChannelCloseOk struct{}

func (ChannelCloseOk) ID() (uint16, uint16)     { return ClassChannel, MethodChannelCloseOk }
func (ChannelCloseOk) Name() string             { return "channel.close-ok" }
func (ChannelCloseOk) size() int                { return 0 }
func (ChannelCloseOk) write(*wire.Writer) error { return nil }

// readChannelMethod narrows a channel-class body. Unknown ids are fatal, the
// same as for the connection class.
func readChannelMethod(methodID uint16, r *wire.Reader) (Method, error) {
	switch methodID {
	case MethodChannelOpen:
		return readChannelOpen(r)
	case MethodChannelOpenOk:
		return readChannelOpenOk(r)
	case MethodChannelFlow:
		return readChannelFlow(r)
	case MethodChannelFlowOk:
		return readChannelFlowOk(r)
	case MethodChannelClose:
		return readChannelClose(r)
	case MethodChannelCloseOk:
		return ChannelCloseOk{}, nil
	default:
		return nil, UnknownMethodError{ClassID: ClassChannel, MethodID: methodID}
	}
}
