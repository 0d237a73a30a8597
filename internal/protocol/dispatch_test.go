package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func methodBytes(channel uint16, body ...byte) []byte {
	return frame.Encode(frame.Frame{Type: frame.TypeMethod, Channel: channel, Body: body})
}

func TestUnknownClassPassesThroughByteExact(t *testing.T) {
	testlog.Start(t)
	// class 999 (0x03E7), method 1, three opaque bytes
	raw := methodBytes(2, 0x03, 0xE7, 0x00, 0x01, 0xAA, 0xBB, 0xCC)

	f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.NoError(t, err)
	g, ok := f.(GenericFrame)
	require.True(t, ok, "expected GenericFrame, got %T", f)
	require.Equal(t, frame.TypeMethod, g.Type)
	require.Equal(t, uint16(2), g.Channel)
	classID, ok := g.ClassID()
	require.True(t, ok)
	require.Equal(t, uint16(999), classID)
	require.Equal(t, []byte{0x03, 0xE7, 0x00, 0x01, 0xAA, 0xBB, 0xCC}, g.Body)

	again, err := Marshal(g)
	require.NoError(t, err)
	require.Equal(t, raw, again)
}

func TestUnknownClassWithBareClassID(t *testing.T) {
	testlog.Start(t)
	raw := methodBytes(1, 0x03, 0xE7)
	f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.NoError(t, err)
	again, err := Marshal(f)
	require.NoError(t, err)
	require.Equal(t, raw, again)
}

func TestUnknownBasicMethodBecomesGenericBasic(t *testing.T) {
	testlog.Start(t)
	// basic (60), method 9999 (0x270F), trailing bytes
	raw := methodBytes(9, 0x00, 0x3C, 0x27, 0x0F, 0x01, 0x02, 0x03)

	f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.NoError(t, err)
	gb, ok := f.(GenericBasic)
	require.True(t, ok, "expected GenericBasic, got %T", f)
	require.Equal(t, uint16(9), gb.Channel)
	require.Equal(t, uint16(9999), gb.MethodID)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, gb.Rest)

	classID, methodID := gb.ID()
	require.Equal(t, ClassBasic, classID)
	require.Equal(t, uint16(9999), methodID)

	raw2, err := Encode(gb)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x3C, 0x27, 0x0F, 0x01, 0x02, 0x03}, raw2.Body)

	again, err := Marshal(gb)
	require.NoError(t, err)
	require.Equal(t, raw, again)
}

func TestBasicPublishRelaysAsGenericBasic(t *testing.T) {
	testlog.Start(t)
	// basic.publish: ticket, exchange "", routing key "q", flags byte
	raw := methodBytes(1, 0x00, 0x3C, 0x00, 0x28, 0x00, 0x00, 0x00, 0x01, 'q', 0x00)
	f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, "basic.publish", Describe(f))
	again, err := Marshal(f)
	require.NoError(t, err)
	require.Equal(t, raw, again)
}

// Connection and channel negotiation is assumed to be fully modeled, so an
// unknown method there is fatal, while basic falls back to GenericBasic.
// The asymmetry is intentional.
func TestUnknownConnectionMethodIsFatal(t *testing.T) {
	testlog.Start(t)
	raw := methodBytes(0, 0x00, 0x0A, 0x03, 0xE7)
	_, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrUnknownMethod)

	var unknown UnknownMethodError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, ClassConnection, unknown.ClassID)
	require.Equal(t, uint16(999), unknown.MethodID)
	require.True(t, IsFatal(err))
}

func TestUnknownChannelMethodIsFatal(t *testing.T) {
	testlog.Start(t)
	raw := methodBytes(3, 0x00, 0x14, 0x00, 0x63)
	_, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrUnknownMethod)

	var unknown UnknownMethodError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, ClassChannel, unknown.ClassID)
	require.Equal(t, uint16(99), unknown.MethodID)
}

func TestKnownMethodTruncatedFields(t *testing.T) {
	testlog.Start(t)
	// connection.tune with only channel-max
	raw := methodBytes(0, 0x00, 0x0A, 0x00, 0x1E, 0x00, 0x00)
	_, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrEndOfStream)
	require.Contains(t, err.Error(), "connection.tune")
}

func TestTruncatedBasicQosIsNotGeneric(t *testing.T) {
	testlog.Start(t)
	// basic.qos with only prefetch-size: a modeled basic method stays fatal
	// when its fields run short.
	raw := methodBytes(4, 0x00, 0x3C, 0x00, 0x0A, 0x00, 0x00, 0x10, 0x00)
	f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrEndOfStream)
	require.Nil(t, f)
	require.Contains(t, err.Error(), "basic.qos")
	require.True(t, IsFatal(err))
}

func TestGenericBasicWithoutArguments(t *testing.T) {
	testlog.Start(t)
	// basic (60), method 9998 (0x270E), no argument bytes
	raw := methodBytes(6, 0x00, 0x3C, 0x27, 0x0E)

	f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.NoError(t, err)
	gb, ok := f.(GenericBasic)
	require.True(t, ok, "expected GenericBasic, got %T", f)
	require.Equal(t, uint16(6), gb.Channel)
	require.Equal(t, uint16(9998), gb.MethodID)
	require.Empty(t, gb.Rest)

	again, err := Marshal(gb)
	require.NoError(t, err)
	require.Equal(t, raw, again)

	built, err := Marshal(GenericBasic{Channel: 6, MethodID: 9998})
	require.NoError(t, err)
	require.Equal(t, raw, built)
}

func TestKnownMethodTrailingBytes(t *testing.T) {
	testlog.Start(t)
	raw := methodBytes(1, 0x00, 0x14, 0x00, 0x29, 0xFF)
	_, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestMethodBodyMissingIDs(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader(methodBytes(0, 0x00)), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrEndOfStream)

	_, err = ReadFrame(bytes.NewReader(methodBytes(0, 0x00, 0x0A, 0x00)), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrEndOfStream)
}

func TestReadFrameBadTerminator(t *testing.T) {
	testlog.Start(t)
	raw := []byte{1, 0, 0, 0, 0, 0, 5, 0, 20, 0, 41, 0, 0}
	_, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrInvalidFrameEnd)

	var endErr InvalidFrameEndError
	require.True(t, errors.As(err, &endErr))
	require.Equal(t, byte(0), endErr.Actual)
}

func TestReadFrameTruncation(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader([]byte{1, 0, 0, 0}), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrEndOfStream)

	full := methodBytes(0, 0x00, 0x0A, 0x00, 0x33)
	_, err = ReadFrame(bytes.NewReader(full[:len(full)-1]), frame.DefaultLimits())
	require.ErrorIs(t, err, ErrEndOfStream)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestContentFramesStayGeneric(t *testing.T) {
	testlog.Start(t)
	for _, typ := range []frame.Type{frame.TypeHeader, frame.TypeBody} {
		raw := frame.Encode(frame.Frame{Type: typ, Channel: 1, Body: []byte{0, 60, 0, 0, 1, 2, 3}})
		f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
		require.NoError(t, err)
		g, ok := f.(GenericFrame)
		require.True(t, ok, "type %s decoded to %T", typ, f)
		require.Equal(t, typ, g.FrameType())
		again, err := Marshal(g)
		require.NoError(t, err)
		require.Equal(t, raw, again)
	}
}

func TestInterleavedChannelsDecodeInOrder(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	frames := []Frame{
		MethodFrame{Channel: 1, Method: BasicQos{PrefetchCount: 10}},
		GenericFrame{Type: frame.TypeBody, Channel: 2, Body: []byte("payload")},
		HeartbeatFrame{},
		MethodFrame{Channel: 2, Method: ChannelCloseOk{}},
		GenericBasic{Channel: 1, MethodID: MethodBasicAck, Rest: []byte{0, 0, 0, 0, 0, 0, 0, 1, 0}},
	}
	for _, f := range frames {
		require.NoError(t, WriteFrame(&buf, f, frame.DefaultLimits()))
	}
	for i, want := range frames {
		got, err := ReadFrame(&buf, frame.DefaultLimits())
		require.NoError(t, err, "frame %d", i)
		require.Equal(t, want, got, "frame %d", i)
	}
	_, err := ReadFrame(&buf, frame.DefaultLimits())
	require.ErrorIs(t, err, io.EOF)
}

func TestNames(t *testing.T) {
	testlog.Start(t)
	require.Equal(t, "connection.tune", MethodName(ClassConnection, MethodConnectionTune))
	require.Equal(t, "basic.deliver", MethodName(ClassBasic, MethodBasicDeliver))
	require.Equal(t, "basic.method(9999)", MethodName(ClassBasic, 9999))
	require.Equal(t, "class(999).method(1)", MethodName(999, 1))
	require.Equal(t, "heartbeat", Describe(HeartbeatFrame{}))
	require.Equal(t, "body", Describe(GenericFrame{Type: frame.TypeBody}))
	require.Equal(t, "queue.declare", Describe(GenericFrame{Type: frame.TypeMethod, Body: []byte{0, 50, 0, 10}}))
	require.Equal(t, "channel.open", Describe(MethodFrame{Channel: 1, Method: ChannelOpen{}}))
}
