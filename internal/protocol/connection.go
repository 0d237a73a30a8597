package protocol

import "github.com/danmuck/amqpwire/internal/protocol/wire"

// ConnectionStart opens negotiation from the broker side.
type ConnectionStart struct {
	VersionMajor     uint8
	VersionMinor     uint8
	ServerProperties wire.Table
	Mechanisms       string
	Locales          string
}

func (ConnectionStart) ID() (uint16, uint16) { return ClassConnection, MethodConnectionStart }
func (ConnectionStart) Name() string         { return "connection.start" }

func (m ConnectionStart) size() int {
	return 2 + m.ServerProperties.EncodedSize() + wire.LongStringSize(m.Mechanisms) + wire.LongStringSize(m.Locales)
}

func (m ConnectionStart) write(w *wire.Writer) error {
	w.Uint8(m.VersionMajor)
	w.Uint8(m.VersionMinor)
	if err := w.Table(m.ServerProperties); err != nil {
		return err
	}
	if err := w.LongString(m.Mechanisms); err != nil {
		return err
	}
	return w.LongString(m.Locales)
}

func readConnectionStart(r *wire.Reader) (m ConnectionStart, err error) {
	if m.VersionMajor, err = r.Uint8(); err != nil {
		return
	}
	if m.VersionMinor, err = r.Uint8(); err != nil {
		return
	}
	if m.ServerProperties, err = r.Table(); err != nil {
		return
	}
	if m.Mechanisms, err = r.LongString(); err != nil {
		return
	}
	m.Locales, err = r.LongString()
	return
}

// ConnectionStartOk selects a mechanism and carries the client's response.
type ConnectionStartOk struct {
	ClientProperties wire.Table
	Mechanism        string
	Response         string
	Locale           string
}

func (ConnectionStartOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionStartOk }
func (ConnectionStartOk) Name() string         { return "connection.start-ok" }

func (m ConnectionStartOk) size() int {
	return m.ClientProperties.EncodedSize() + wire.ShortStringSize(m.Mechanism) +
		wire.LongStringSize(m.Response) + wire.ShortStringSize(m.Locale)
}

func (m ConnectionStartOk) write(w *wire.Writer) error {
	if err := w.Table(m.ClientProperties); err != nil {
		return err
	}
	if err := w.ShortString(m.Mechanism); err != nil {
		return err
	}
	if err := w.LongString(m.Response); err != nil {
		return err
	}
	return w.ShortString(m.Locale)
}

func readConnectionStartOk(r *wire.Reader) (m ConnectionStartOk, err error) {
	if m.ClientProperties, err = r.Table(); err != nil {
		return
	}
	if m.Mechanism, err = r.ShortString(); err != nil {
		return
	}
	if m.Response, err = r.LongString(); err != nil {
		return
	}
	m.Locale, err = r.ShortString()
	return
}

type ConnectionSecure struct {
	Challenge string
}

func (ConnectionSecure) ID() (uint16, uint16) { return ClassConnection, MethodConnectionSecure }
func (ConnectionSecure) Name() string         { return "connection.secure" }
func (m ConnectionSecure) size() int          { return wire.LongStringSize(m.Challenge) }

func (m ConnectionSecure) write(w *wire.Writer) error {
	return w.LongString(m.Challenge)
}

func readConnectionSecure(r *wire.Reader) (m ConnectionSecure, err error) {
	m.Challenge, err = r.LongString()
	return
}

type ConnectionSecureOk struct {
	Response string
}

func (ConnectionSecureOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionSecureOk }
func (ConnectionSecureOk) Name() string         { return "connection.secure-ok" }
func (m ConnectionSecureOk) size() int          { return wire.LongStringSize(m.Response) }

func (m ConnectionSecureOk) write(w *wire.Writer) error {
	return w.LongString(m.Response)
}

func readConnectionSecureOk(r *wire.Reader) (m ConnectionSecureOk, err error) {
	m.Response, err = r.LongString()
	return
}

// ConnectionTune carries the broker's limits. Zero means "no limit" for
// ChannelMax and FrameMax, and "disabled" for Heartbeat (seconds).
type ConnectionTune struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (ConnectionTune) ID() (uint16, uint16) { return ClassConnection, MethodConnectionTune }
func (ConnectionTune) Name() string         { return "connection.tune" }
func (ConnectionTune) size() int            { return 8 }

func (m ConnectionTune) write(w *wire.Writer) error {
	writeTuning(w, m.ChannelMax, m.FrameMax, m.Heartbeat)
	return nil
}

func readConnectionTune(r *wire.Reader) (m ConnectionTune, err error) {
	m.ChannelMax, m.FrameMax, m.Heartbeat, err = readTuning(r)
	return
}

// ConnectionTuneOk echoes the limits the client accepted.
type ConnectionTuneOk struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (ConnectionTuneOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionTuneOk }
func (ConnectionTuneOk) Name() string         { return "connection.tune-ok" }
func (ConnectionTuneOk) size() int            { return 8 }

func (m ConnectionTuneOk) write(w *wire.Writer) error {
	writeTuning(w, m.ChannelMax, m.FrameMax, m.Heartbeat)
	return nil
}

func readConnectionTuneOk(r *wire.Reader) (m ConnectionTuneOk, err error) {
	m.ChannelMax, m.FrameMax, m.Heartbeat, err = readTuning(r)
	return
}

func writeTuning(w *wire.Writer, channelMax uint16, frameMax uint32, heartbeat uint16) {
	w.Uint16(channelMax)
	w.Uint32(frameMax)
	w.Uint16(heartbeat)
}

func readTuning(r *wire.Reader) (channelMax uint16, frameMax uint32, heartbeat uint16, err error) {
	if channelMax, err = r.Uint16(); err != nil {
		return
	}
	if frameMax, err = r.Uint32(); err != nil {
		return
	}
	heartbeat, err = r.Uint16()
	return
}

// ConnectionOpen selects the virtual host. Capabilities and Insist are
// reserved by 0-9-1 and normally empty/false.
type ConnectionOpen struct {
	VirtualHost  string
	Capabilities string
	Insist       bool
}

func (ConnectionOpen) ID() (uint16, uint16) { return ClassConnection, MethodConnectionOpen }
func (ConnectionOpen) Name() string         { return "connection.open" }

func (m ConnectionOpen) size() int {
	return wire.ShortStringSize(m.VirtualHost) + wire.ShortStringSize(m.Capabilities) + 1
}

func (m ConnectionOpen) write(w *wire.Writer) error {
	if err := w.ShortString(m.VirtualHost); err != nil {
		return err
	}
	if err := w.ShortString(m.Capabilities); err != nil {
		return err
	}
	w.Bool(m.Insist)
	return nil
}

func readConnectionOpen(r *wire.Reader) (m ConnectionOpen, err error) {
	if m.VirtualHost, err = r.ShortString(); err != nil {
		return
	}
	if m.Capabilities, err = r.ShortString(); err != nil {
		return
	}
	m.Insist, err = r.Bool()
	return
}

type ConnectionOpenOk struct {
	KnownHosts string
}

func (ConnectionOpenOk) ID() (uint16, uint16) { return ClassConnection, MethodConnectionOpenOk }
func (ConnectionOpenOk) Name() string         { return "connection.open-ok" }
func (m ConnectionOpenOk) size() int          { return wire.ShortStringSize(m.KnownHosts) }

func (m ConnectionOpenOk) write(w *wire.Writer) error {
	return w.ShortString(m.KnownHosts)
}

func readConnectionOpenOk(r *wire.Reader) (m ConnectionOpenOk, err error) {
	m.KnownHosts, err = r.ShortString()
	return
}

// ConnectionClose starts an orderly shutdown, or reports the method that
// caused a hard error.
type ConnectionClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (ConnectionClose) ID() (uint16, uint16) { return ClassConnection, MethodConnectionClose }
func (ConnectionClose) Name() string         { return "connection.close" }
func (m ConnectionClose) size() int          { return 6 + wire.ShortStringSize(m.ReplyText) }

func (m ConnectionClose) write(w *wire.Writer) error {
	return writeClose(w, m.ReplyCode, m.ReplyText, m.ClassID, m.MethodID)
}

func readConnectionClose(r *wire.Reader) (m ConnectionClose, err error) {
	m.ReplyCode, m.ReplyText, m.ClassID, m.MethodID, err = readClose(r)
	return
}

type ConnectionCloseOk struct{}

func (ConnectionCloseOk) ID() (uint16, uint16)     { return ClassConnection, MethodConnectionCloseOk }
func (ConnectionCloseOk) Name() string             { return "connection.close-ok" }
func (ConnectionCloseOk) size() int                { return 0 }
func (ConnectionCloseOk) write(*wire.Writer) error { return nil }

// ConnectionBlocked is a RabbitMQ extension sent when the broker stops
// reading from publishers.
type ConnectionBlocked struct {
	Reason string
}

func (ConnectionBlocked) ID() (uint16, uint16) { return ClassConnection, MethodConnectionBlocked }
func (ConnectionBlocked) Name() string         { return "connection.blocked" }
func (m ConnectionBlocked) size() int          { return wire.ShortStringSize(m.Reason) }

func (m ConnectionBlocked) write(w *wire.Writer) error {
	return w.ShortString(m.Reason)
}

func readConnectionBlocked(r *wire.Reader) (m ConnectionBlocked, err error) {
	m.Reason, err = r.ShortString()
	return
}

type ConnectionUnblocked struct{}

func (ConnectionUnblocked) ID() (uint16, uint16)     { return ClassConnection, MethodConnectionUnblocked }
func (ConnectionUnblocked) Name() string             { return "connection.unblocked" }
func (ConnectionUnblocked) size() int                { return 0 }
func (ConnectionUnblocked) write(*wire.Writer) error { return nil }

func writeClose(w *wire.Writer, code uint16, text string, classID, methodID uint16) error {
	w.Uint16(code)
	if err := w.ShortString(text); err != nil {
		return err
	}
	w.Uint16(classID)
	w.Uint16(methodID)
	return nil
}

func readClose(r *wire.Reader) (code uint16, text string, classID, methodID uint16, err error) {
	if code, err = r.Uint16(); err != nil {
		return
	}
	if text, err = r.ShortString(); err != nil {
		return
	}
	if classID, err = r.Uint16(); err != nil {
		return
	}
	methodID, err = r.Uint16()
	return
}

// readConnectionMethod narrows a connection-class body by method id. Every
// connection method is expected to be modeled, so an unknown id is fatal.
func readConnectionMethod(methodID uint16, r *wire.Reader) (Method, error) {
	switch methodID {
	case MethodConnectionStart:
		return readConnectionStart(r)
	case MethodConnectionStartOk:
		return readConnectionStartOk(r)
	case MethodConnectionSecure:
		return readConnectionSecure(r)
	case MethodConnectionSecureOk:
		return readConnectionSecureOk(r)
	case MethodConnectionTune:
		return readConnectionTune(r)
	case MethodConnectionTuneOk:
		return readConnectionTuneOk(r)
	case MethodConnectionOpen:
		return readConnectionOpen(r)
	case MethodConnectionOpenOk:
		return readConnectionOpenOk(r)
	case MethodConnectionClose:
		return readConnectionClose(r)
	case MethodConnectionCloseOk:
		return ConnectionCloseOk{}, nil
	case MethodConnectionBlocked:
		return readConnectionBlocked(r)
	case MethodConnectionUnblocked:
		return ConnectionUnblocked{}, nil
	default:
		return nil, UnknownMethodError{ClassID: ClassConnection, MethodID: methodID}
	}
}
