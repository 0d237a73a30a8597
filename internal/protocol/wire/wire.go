// Package wire owns the AMQP 0-9-1 primitive value encodings.
//
// Ownership boundary:
// - fixed-width big-endian integers and one-byte booleans
// - short and long strings
// - field tables and field arrays
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MaxShortString is the largest payload a short string length prefix can carry.
const MaxShortString = 255

var (
	ErrEndOfStream        = errors.New("wire: end of stream")
	ErrShortStringTooLong = errors.New("wire: short string too long")
	ErrLongStringTooLong  = errors.New("wire: long string too long")
	ErrUnknownFieldTag    = errors.New("wire: unknown field value tag")
	ErrTableOverrun       = errors.New("wire: entry overruns declared table length")
)

// Reader is a cursor over one decoded body. Every read consumes exactly the
// prescribed width or fails with ErrEndOfStream without advancing.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Offset returns the number of consumed bytes.
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrEndOfStream, n, r.off, r.Len())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Bytes returns a copy of the next n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Rest returns a copy of every unread byte and moves the cursor to the end.
func (r *Reader) Rest() []byte {
	out := make([]byte, r.Len())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Bool reads one full byte; zero is false and anything else is true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) ShortString() (string, error) {
	n, err := r.Uint8()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) LongString() (string, error) {
	b, err := r.longBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) longBytes() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: long string declares %d bytes, have %d", ErrEndOfStream, n, r.Len())
	}
	return r.take(int(n))
}

// Writer accumulates one encoded body.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity for size bytes. Callers that know
// the exact encoded size pass it so the buffer is allocated once.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the encoded bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) Uint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Uint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) Uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) Uint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *Writer) Bool(v bool) {
	b := byte(0)
	if v {
		b = 1
	}
	w.buf = append(w.buf, b)
}

func (w *Writer) ShortString(s string) error {
	if len(s) > MaxShortString {
		return fmt.Errorf("%w: %d bytes", ErrShortStringTooLong, len(s))
	}
	w.buf = append(w.buf, byte(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *Writer) LongString(s string) error {
	if uint64(len(s)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrLongStringTooLong, len(s))
	}
	w.Uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *Writer) longBytes(b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrLongStringTooLong, len(b))
	}
	w.Uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
	return nil
}

// ShortStringSize is the encoded size of s as a short string.
func ShortStringSize(s string) int {
	return 1 + len(s)
}

// LongStringSize is the encoded size of s as a long string.
func LongStringSize(s string) int {
	return 4 + len(s)
}
