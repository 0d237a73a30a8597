package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/wire"
	"github.com/danmuck/amqpwire/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, header bool, frames ...protocol.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	if header {
		require.NoError(t, protocol.WriteProtocolHeader(&buf))
	}
	for _, f := range frames {
		require.NoError(t, protocol.WriteFrame(&buf, f, frame.DefaultLimits()))
	}
	return buf.Bytes()
}

func TestDecodeCapture(t *testing.T) {
	testlog.Start(t)
	raw := capture(t, true,
		protocol.MethodFrame{Channel: 0, Method: protocol.ConnectionTune{ChannelMax: 2047, FrameMax: 131072, Heartbeat: 60}},
		protocol.GenericBasic{Channel: 1, MethodID: protocol.MethodBasicPublish, Rest: []byte{0, 0, 0, 1, 'q', 0}},
		protocol.GenericFrame{Type: frame.TypeBody, Channel: 1, Body: []byte("hi")},
		protocol.HeartbeatFrame{},
	)

	var out bytes.Buffer
	n, err := decodeCapture(bytes.NewReader(raw), &out, frame.Limits{}, true)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "protocol-header AMQP 0-9-1", lines[0])
	require.Contains(t, lines[1], "connection.tune")
	require.Contains(t, lines[1], "FrameMax:131072")
	require.Contains(t, lines[2], "basic.publish")
	require.Contains(t, lines[3], "body=2 bytes")
	require.Contains(t, lines[4], "heartbeat")
}

func TestDecodeCaptureStopsAtBadFrame(t *testing.T) {
	testlog.Start(t)
	raw := capture(t, false, protocol.MethodFrame{Channel: 1, Method: protocol.ChannelOpen{}})
	raw = append(raw, 1, 0, 1, 0, 0, 0, 4, 0, 20, 0, 10, 0)

	var out bytes.Buffer
	n, err := decodeCapture(bytes.NewReader(raw), &out, frame.Limits{}, false)
	require.ErrorIs(t, err, protocol.ErrInvalidFrameEnd)
	require.Equal(t, 1, n)
}

func TestPrintTable(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	printTable(&out, "", wire.Table{
		{Name: "product", Value: wire.String("RabbitMQ")},
		{Name: "capabilities", Value: wire.Table{{Name: "publisher_confirms", Value: wire.Bool(true)}}},
	})
	require.Equal(t, "product = RabbitMQ\ncapabilities:\n  publisher_confirms = true\n", out.String())
}
