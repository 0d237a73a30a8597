package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

const (
	MechanismPlain    = "PLAIN"
	MechanismAMQPlain = "AMQPLAIN"
)

var (
	ErrUnexpectedMethod     = errors.New("upstream: unexpected method")
	ErrUnsupportedVersion   = errors.New("upstream: unsupported protocol version")
	ErrMechanismUnsupported = errors.New("upstream: auth mechanism not offered")
)

// BrokerCloseError reports a connection.close sent by the broker during
// negotiation.
type BrokerCloseError struct {
	Code     uint16
	Text     string
	ClassID  uint16
	MethodID uint16
}

func (e *BrokerCloseError) Error() string {
	if e.ClassID != 0 {
		return fmt.Sprintf("upstream: broker closed connection: %d %s (in %s)",
			e.Code, e.Text, protocol.MethodName(e.ClassID, e.MethodID))
	}
	return fmt.Sprintf("upstream: broker closed connection: %d %s", e.Code, e.Text)
}

type Credentials struct {
	Username string
	Password string
}

// Defaults holds the client side of negotiation. Zero limits mean no limit.
type Defaults struct {
	VirtualHost string
	Locale      string
	Mechanism   string
	ChannelMax  uint16
	FrameMax    uint32
	Heartbeat   time.Duration
	Product     string
}

func DefaultDefaults() Defaults {
	return Defaults{
		VirtualHost: "/",
		Locale:      "en_US",
		Mechanism:   MechanismPlain,
		ChannelMax:  2047,
		FrameMax:    131072,
		Heartbeat:   60 * time.Second,
		Product:     "amqpwire",
	}
}

// Negotiated is what the broker and this client agreed on.
type Negotiated struct {
	ServerProperties wire.Table
	Mechanisms       []string
	Locales          []string
	ChannelMax       uint16
	FrameMax         uint32
	Heartbeat        time.Duration
}

// Handshake runs the client half of connection negotiation on conn: protocol
// header, start/start-ok, tune/tune-ok, open/open-ok. ctx bounds the whole
// exchange.
func Handshake(ctx context.Context, conn net.Conn, creds Credentials, d Defaults) (Negotiated, error) {
	release := bindDeadline(ctx, conn)
	defer release()

	n, err := handshake(conn, creds, d)
	if err != nil {
		if cerr := contextErr(ctx); cerr != nil {
			return Negotiated{}, fmt.Errorf("upstream handshake: %w: %w", cerr, err)
		}
	}
	return n, err
}

func handshake(conn net.Conn, creds Credentials, d Defaults) (Negotiated, error) {
	if err := protocol.WriteProtocolHeader(conn); err != nil {
		return Negotiated{}, err
	}

	start, err := expect[protocol.ConnectionStart](conn)
	if err != nil {
		return Negotiated{}, err
	}
	if start.VersionMajor != 0 || start.VersionMinor != 9 {
		return Negotiated{}, fmt.Errorf("%w: %d-%d", ErrUnsupportedVersion, start.VersionMajor, start.VersionMinor)
	}
	n := Negotiated{
		ServerProperties: start.ServerProperties,
		Mechanisms:       strings.Fields(start.Mechanisms),
		Locales:          strings.Fields(start.Locales),
	}
	if !slices.Contains(n.Mechanisms, d.Mechanism) {
		return n, fmt.Errorf("%w: %q not in %q", ErrMechanismUnsupported, d.Mechanism, start.Mechanisms)
	}
	response, err := authResponse(d.Mechanism, creds)
	if err != nil {
		return n, err
	}

	startOk := protocol.ConnectionStartOk{
		ClientProperties: clientProperties(d.Product),
		Mechanism:        d.Mechanism,
		Response:         response,
		Locale:           d.Locale,
	}
	if err := send(conn, startOk); err != nil {
		return n, err
	}

	tune, err := expect[protocol.ConnectionTune](conn)
	if err != nil {
		return n, err
	}
	n.ChannelMax = pick(d.ChannelMax, tune.ChannelMax)
	n.FrameMax = pick(d.FrameMax, tune.FrameMax)
	heartbeat := pick(uint16(d.Heartbeat/time.Second), tune.Heartbeat)
	n.Heartbeat = time.Duration(heartbeat) * time.Second

	tuneOk := protocol.ConnectionTuneOk{ChannelMax: n.ChannelMax, FrameMax: n.FrameMax, Heartbeat: heartbeat}
	if err := send(conn, tuneOk); err != nil {
		return n, err
	}
	if err := send(conn, protocol.ConnectionOpen{VirtualHost: d.VirtualHost}); err != nil {
		return n, err
	}
	if _, err := expect[protocol.ConnectionOpenOk](conn); err != nil {
		return n, err
	}

	log.Debug().
		Str("vhost", d.VirtualHost).
		Uint16("channel_max", n.ChannelMax).
		Uint32("frame_max", n.FrameMax).
		Dur("heartbeat", n.Heartbeat).
		Msg("upstream handshake complete")
	return n, nil
}

// Close sends connection.close and waits for close-ok. A broker that sends
// its own close in the meantime is answered and treated as done.
func Close(ctx context.Context, conn net.Conn, code uint16, text string) error {
	release := bindDeadline(ctx, conn)
	defer release()

	if err := send(conn, protocol.ConnectionClose{ReplyCode: code, ReplyText: text}); err != nil {
		return err
	}
	for {
		f, err := protocol.ReadFrame(conn, frame.DefaultLimits())
		if err != nil {
			if cerr := contextErr(ctx); cerr != nil {
				return fmt.Errorf("upstream close: %w: %w", cerr, err)
			}
			return err
		}
		mf, ok := f.(protocol.MethodFrame)
		if !ok || mf.Channel != 0 {
			continue
		}
		switch mf.Method.(type) {
		case protocol.ConnectionCloseOk:
			return nil
		case protocol.ConnectionClose:
			return send(conn, protocol.ConnectionCloseOk{})
		}
	}
}

// expect reads the next connection-level method, skipping heartbeats.
func expect[M protocol.Method](conn net.Conn) (M, error) {
	var zero M
	for {
		f, err := protocol.ReadFrame(conn, frame.DefaultLimits())
		if err != nil {
			return zero, err
		}
		if _, ok := f.(protocol.HeartbeatFrame); ok {
			continue
		}
		mf, ok := f.(protocol.MethodFrame)
		if !ok || mf.Channel != 0 {
			return zero, fmt.Errorf("%w: want %s, got %s on channel %d",
				ErrUnexpectedMethod, methodName[M](), protocol.Describe(f), f.ChannelID())
		}
		if c, ok := mf.Method.(protocol.ConnectionClose); ok {
			_ = send(conn, protocol.ConnectionCloseOk{})
			return zero, &BrokerCloseError{Code: c.ReplyCode, Text: c.ReplyText, ClassID: c.ClassID, MethodID: c.MethodID}
		}
		m, ok := mf.Method.(M)
		if !ok {
			return zero, fmt.Errorf("%w: want %s, got %s", ErrUnexpectedMethod, methodName[M](), mf.Method.Name())
		}
		return m, nil
	}
}

func methodName[M protocol.Method]() string {
	var m M
	return m.Name()
}

func send(conn net.Conn, m protocol.Method) error {
	return protocol.WriteFrame(conn, protocol.MethodFrame{Channel: 0, Method: m}, frame.DefaultLimits())
}

func authResponse(mechanism string, creds Credentials) (string, error) {
	switch mechanism {
	case MechanismPlain:
		return "\x00" + creds.Username + "\x00" + creds.Password, nil
	case MechanismAMQPlain:
		// AMQPLAIN is a field table without its length prefix.
		t := wire.Table{
			{Name: "LOGIN", Value: wire.String(creds.Username)},
			{Name: "PASSWORD", Value: wire.String(creds.Password)},
		}
		w := wire.NewWriter(t.EncodedSize())
		if err := w.Table(t); err != nil {
			return "", err
		}
		return string(w.Bytes()[4:]), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrMechanismUnsupported, mechanism)
	}
}

func clientProperties(product string) wire.Table {
	return wire.Table{
		{Name: "product", Value: wire.String(product)},
		{Name: "platform", Value: wire.String("Go")},
		{Name: "capabilities", Value: wire.Table{
			{Name: "connection.blocked", Value: wire.Bool(true)},
			{Name: "authentication_failure_close", Value: wire.Bool(true)},
		}},
	}
}

// pick returns the smaller limit, where zero means unlimited.
func pick[T uint16 | uint32](client, server T) T {
	switch {
	case client == 0:
		return server
	case server == 0:
		return client
	default:
		return min(client, server)
	}
}

// bindDeadline applies ctx's deadline to conn and interrupts blocked I/O
// when ctx is cancelled.
func bindDeadline(ctx context.Context, conn net.Conn) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	return func() {
		if stop() {
			_ = conn.SetDeadline(time.Time{})
		}
	}
}

// contextErr also reports a deadline that conn hit before ctx's own timer
// fired.
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return nil
}
