package protocol

import "github.com/danmuck/amqpwire/internal/protocol/wire"

type BasicQos struct {
	PrefetchSize  uint32
	PrefetchCount uint16
	Global        bool
}

func (BasicQos) ID() (uint16, uint16) { return ClassBasic, MethodBasicQos }
func (BasicQos) Name() string         { return "basic.qos" }
func (BasicQos) size() int            { return 7 }

func (m BasicQos) write(w *wire.Writer) error {
	w.Uint32(m.PrefetchSize)
	w.Uint16(m.PrefetchCount)
	w.Bool(m.Global)
	return nil
}

func readBasicQos(r *wire.Reader) (m BasicQos, err error) {
	if m.PrefetchSize, err = r.Uint32(); err != nil {
		return
	}
	if m.PrefetchCount, err = r.Uint16(); err != nil {
		return
	}
	m.Global, err = r.Bool()
	return
}

type BasicQosOk struct{}

func (BasicQosOk) ID() (uint16, uint16)     { return ClassBasic, MethodBasicQosOk }
func (BasicQosOk) Name() string             { return "basic.qos-ok" }
func (BasicQosOk) size() int                { return 0 }
func (BasicQosOk) write(*wire.Writer) error { return nil }

// BasicGet polls one message. Ticket is reserved and normally zero.
type BasicGet struct {
	Ticket uint16
	Queue  string
	NoAck  bool
}

func (BasicGet) ID() (uint16, uint16) { return ClassBasic, MethodBasicGet }
func (BasicGet) Name() string         { return "basic.get" }
func (m BasicGet) size() int          { return 2 + wire.ShortStringSize(m.Queue) + 1 }

func (m BasicGet) write(w *wire.Writer) error {
	w.Uint16(m.Ticket)
	if err := w.ShortString(m.Queue); err != nil {
		return err
	}
	w.Bool(m.NoAck)
	return nil
}

func readBasicGet(r *wire.Reader) (m BasicGet, err error) {
	if m.Ticket, err = r.Uint16(); err != nil {
		return
	}
	if m.Queue, err = r.ShortString(); err != nil {
		return
	}
	m.NoAck, err = r.Bool()
	return
}

// readBasicMethod narrows a basic-class body. Basic carries the data path,
// so an unmodeled method is kept as GenericBasic (ok=false) rather than
// failing the connection.
func readBasicMethod(methodID uint16, r *wire.Reader) (m Method, ok bool, err error) {
	switch methodID {
	case MethodBasicQos:
		m, err = readBasicQos(r)
	case MethodBasicQosOk:
		m = BasicQosOk{}
	case MethodBasicGet:
		m, err = readBasicGet(r)
	default:
		return nil, false, nil
	}
	return m, true, err
}
