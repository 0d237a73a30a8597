package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/amqpwire/internal/protocol/wire"
)

const (
	HeaderLen      = 7
	End       byte = 0xCE
)

// Type is the frame type octet.
type Type uint8

const (
	TypeMethod    Type = 1
	TypeHeader    Type = 2
	TypeBody      Type = 3
	TypeHeartbeat Type = 8
)

func (t Type) String() string {
	switch t {
	case TypeMethod:
		return "method"
	case TypeHeader:
		return "header"
	case TypeBody:
		return "body"
	case TypeHeartbeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

var (
	ErrInvalidFrameEnd = errors.New("frame: invalid frame end")
	ErrFrameTooLarge   = errors.New("frame: body too large")
)

// InvalidFrameEndError reports the byte found where 0xCE was expected. The
// stream is out of alignment after this and must not be read further.
type InvalidFrameEndError struct {
	Actual byte
}

func (e InvalidFrameEndError) Error() string {
	return fmt.Sprintf("frame: invalid frame end 0x%02X, want 0x%02X", e.Actual, End)
}

func (e InvalidFrameEndError) Is(target error) bool {
	return target == ErrInvalidFrameEnd
}

// Frame is one wire frame with its body left undecoded.
type Frame struct {
	Type    Type
	Channel uint16
	Body    []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxBodyBytes uint32
}

// DefaultLimits allows bodies up to the broker default frame_max of 128 KiB.
func DefaultLimits() Limits {
	return Limits{
		MaxBodyBytes: 128 * 1024,
	}
}

func (l Limits) check(n uint64) error {
	if l.MaxBodyBytes > 0 && n > uint64(l.MaxBodyBytes) {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, n, l.MaxBodyBytes)
	}
	return nil
}

// ReadFrame reads exactly one frame from r. A stream that closes on a frame
// boundary yields an error matching both wire.ErrEndOfStream and io.EOF;
// a stream that closes mid-frame matches io.ErrUnexpectedEOF instead.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Frame{}, endOfStream(err, "header")
	}

	h := DecodeHeader(head)
	if err := limits.check(uint64(h.Length)); err != nil {
		return Frame{}, err
	}

	rest := make([]byte, int(h.Length)+1)
	if _, err := io.ReadFull(r, rest); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, endOfStream(err, "body")
	}
	if end := rest[h.Length]; end != End {
		return Frame{}, InvalidFrameEndError{Actual: end}
	}

	return Frame{Type: h.Type, Channel: h.Channel, Body: rest[:h.Length:h.Length]}, nil
}

func endOfStream(err error, part string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: frame %s: %w", wire.ErrEndOfStream, part, err)
	}
	return err
}

// WriteFrame writes f as a single contiguous buffer so a frame is never
// interleaved with another writer's partial output.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if err := limits.check(uint64(len(f.Body))); err != nil {
		return err
	}
	_, err := w.Write(Encode(f))
	return err
}

// Encode returns the full wire form of f: header, body, end octet.
func Encode(f Frame) []byte {
	buf := make([]byte, 0, HeaderLen+len(f.Body)+1)
	buf = append(buf, EncodeHeader(Header{Type: f.Type, Channel: f.Channel, Length: uint32(len(f.Body))})...)
	buf = append(buf, f.Body...)
	return append(buf, End)
}

// Header is the fixed seven-byte frame prefix.
type Header struct {
	Type    Type
	Channel uint16
	Length  uint32
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[1:3], h.Channel)
	binary.BigEndian.PutUint32(buf[3:7], h.Length)
	return buf
}

func DecodeHeader(b [HeaderLen]byte) Header {
	return Header{
		Type:    Type(b[0]),
		Channel: binary.BigEndian.Uint16(b[1:3]),
		Length:  binary.BigEndian.Uint32(b[3:7]),
	}
}
