package upstream

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/wire"
	"github.com/danmuck/amqpwire/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterWithoutRNG(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 2.0, Jitter: true}
	if got := NextBackoffDelay(cfg, 2, nil); got != time.Second {
		t.Fatalf("attempt2 got=%v", got)
	}
}

type brokerScript struct {
	mechanisms string
	tune       protocol.ConnectionTune
	refuse     bool
}

// serveBroker plays the broker half of a handshake on conn and reports what
// the client sent.
func serveBroker(t *testing.T, conn net.Conn, script brokerScript) <-chan []protocol.Method {
	out := make(chan []protocol.Method, 1)
	go func() {
		defer conn.Close()
		var got []protocol.Method
		defer func() { out <- got }()

		read := func() protocol.Method {
			f, err := protocol.ReadFrame(conn, frame.DefaultLimits())
			if err != nil {
				return nil
			}
			mf, ok := f.(protocol.MethodFrame)
			if !ok {
				return nil
			}
			got = append(got, mf.Method)
			return mf.Method
		}
		write := func(m protocol.Method) {
			_ = protocol.WriteFrame(conn, protocol.MethodFrame{Method: m}, frame.DefaultLimits())
		}

		if _, err := protocol.ReadProtocolHeader(conn); err != nil {
			t.Errorf("broker header: %v", err)
			return
		}
		write(protocol.ConnectionStart{
			VersionMajor:     0,
			VersionMinor:     9,
			ServerProperties: wire.Table{{Name: "product", Value: wire.String("RabbitMQ")}},
			Mechanisms:       script.mechanisms,
			Locales:          "en_US",
		})
		if read() == nil {
			return
		}
		if script.refuse {
			write(protocol.ConnectionClose{ReplyCode: protocol.AccessRefused, ReplyText: "ACCESS_REFUSED - login refused"})
			read()
			return
		}
		_ = protocol.WriteFrame(conn, protocol.HeartbeatFrame{}, frame.DefaultLimits())
		write(script.tune)
		read()
		read()
		write(protocol.ConnectionOpenOk{})
	}()
	return out
}

func TestHandshakeNegotiatesLimits(t *testing.T) {
	testlog.Start(t)
	client, broker := net.Pipe()
	defer client.Close()
	sent := serveBroker(t, broker, brokerScript{
		mechanisms: "AMQPLAIN PLAIN",
		tune:       protocol.ConnectionTune{ChannelMax: 0, FrameMax: 65536, Heartbeat: 30},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := Handshake(ctx, client, Credentials{Username: "guest", Password: "secret"}, DefaultDefaults())
	require.NoError(t, err)
	require.Equal(t, uint16(2047), n.ChannelMax)
	require.Equal(t, uint32(65536), n.FrameMax)
	require.Equal(t, 30*time.Second, n.Heartbeat)
	require.Equal(t, []string{"AMQPLAIN", "PLAIN"}, n.Mechanisms)
	product, ok := n.ServerProperties.Get("product")
	require.True(t, ok)
	require.Equal(t, wire.String("RabbitMQ"), product)

	got := <-sent
	require.Len(t, got, 3)
	startOk, ok := got[0].(protocol.ConnectionStartOk)
	require.True(t, ok)
	require.Equal(t, "PLAIN", startOk.Mechanism)
	require.Equal(t, "\x00guest\x00secret", startOk.Response)
	require.Equal(t, "en_US", startOk.Locale)
	require.Equal(t, protocol.ConnectionTuneOk{ChannelMax: 2047, FrameMax: 65536, Heartbeat: 30}, got[1])
	require.Equal(t, protocol.ConnectionOpen{VirtualHost: "/"}, got[2])
}

func TestHandshakeBrokerRefuses(t *testing.T) {
	testlog.Start(t)
	client, broker := net.Pipe()
	defer client.Close()
	sent := serveBroker(t, broker, brokerScript{mechanisms: "PLAIN", refuse: true})

	_, err := Handshake(context.Background(), client, Credentials{Username: "guest", Password: "bad"}, DefaultDefaults())
	var closeErr *BrokerCloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	require.Equal(t, protocol.AccessRefused, closeErr.Code)
	require.Contains(t, closeErr.Error(), "ACCESS_REFUSED")

	got := <-sent
	require.Len(t, got, 2)
	require.Equal(t, protocol.ConnectionCloseOk{}, got[1])
}

func TestHandshakeMechanismNotOffered(t *testing.T) {
	testlog.Start(t)
	client, broker := net.Pipe()
	defer client.Close()
	serveBroker(t, broker, brokerScript{mechanisms: "EXTERNAL"})

	_, err := Handshake(context.Background(), client, Credentials{}, DefaultDefaults())
	require.ErrorIs(t, err, ErrMechanismUnsupported)
}

func TestHandshakeUnexpectedMethod(t *testing.T) {
	testlog.Start(t)
	client, broker := net.Pipe()
	defer client.Close()
	go func() {
		defer broker.Close()
		_, _ = protocol.ReadProtocolHeader(broker)
		_ = protocol.WriteFrame(broker, protocol.MethodFrame{Method: protocol.ConnectionTune{}}, frame.DefaultLimits())
	}()

	_, err := Handshake(context.Background(), client, Credentials{}, DefaultDefaults())
	require.ErrorIs(t, err, ErrUnexpectedMethod)
	require.Contains(t, err.Error(), "connection.start")
}

func TestHandshakeHonorsContextDeadline(t *testing.T) {
	testlog.Start(t)
	client, broker := net.Pipe()
	defer client.Close()
	defer broker.Close()
	go func() { _, _ = protocol.ReadProtocolHeader(broker) }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Handshake(ctx, client, Credentials{}, DefaultDefaults())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAMQPlainResponse(t *testing.T) {
	testlog.Start(t)
	resp, err := authResponse(MechanismAMQPlain, Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	want := []byte{
		5, 'L', 'O', 'G', 'I', 'N', 'S', 0, 0, 0, 1, 'u',
		8, 'P', 'A', 'S', 'S', 'W', 'O', 'R', 'D', 'S', 0, 0, 0, 1, 'p',
	}
	require.Equal(t, want, []byte(resp))
}

func TestPick(t *testing.T) {
	testlog.Start(t)
	require.Equal(t, uint16(10), pick[uint16](0, 10))
	require.Equal(t, uint16(10), pick[uint16](10, 0))
	require.Equal(t, uint16(5), pick[uint16](5, 10))
	require.Equal(t, uint32(0), pick[uint32](0, 0))
}

func TestCloseWaitsForCloseOk(t *testing.T) {
	testlog.Start(t)
	client, broker := net.Pipe()
	defer client.Close()
	got := make(chan protocol.Method, 1)
	go func() {
		defer broker.Close()
		f, err := protocol.ReadFrame(broker, frame.DefaultLimits())
		if err != nil {
			return
		}
		got <- f.(protocol.MethodFrame).Method
		_ = protocol.WriteFrame(broker, protocol.HeartbeatFrame{}, frame.DefaultLimits())
		_ = protocol.WriteFrame(broker, protocol.MethodFrame{Method: protocol.ConnectionCloseOk{}}, frame.DefaultLimits())
	}()

	err := Close(context.Background(), client, protocol.ReplySuccess, "bye")
	require.NoError(t, err)
	require.Equal(t, protocol.ConnectionClose{ReplyCode: protocol.ReplySuccess, ReplyText: "bye"}, <-got)
}

func TestDialRetriesThenFails(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), DialOptions{
		Address:        addr,
		ConnectTimeout: time.Second,
		Attempts:       3,
		Backoff:        BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 2},
	})
	require.ErrorIs(t, err, ErrDialExhausted)
}

func TestDialConnects(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			_ = c.Close()
		}
	}()

	conn, err := Dial(context.Background(), DialOptions{Address: ln.Addr().String(), Attempts: 1})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}
