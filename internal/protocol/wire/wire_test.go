package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.Uint8(7)
	w.Uint16(0xBEEF)
	w.Uint32(131072)
	w.Uint64(1 << 40)
	w.Bool(true)
	w.Bool(false)
	if err := w.ShortString("guest"); err != nil {
		t.Fatalf("short string: %v", err)
	}
	if err := w.LongString("PLAIN AMQPLAIN"); err != nil {
		t.Fatalf("long string: %v", err)
	}

	r := NewReader(w.Bytes())
	if v, err := r.Uint8(); err != nil || v != 7 {
		t.Fatalf("u8 got=%d err=%v", v, err)
	}
	if v, err := r.Uint16(); err != nil || v != 0xBEEF {
		t.Fatalf("u16 got=%d err=%v", v, err)
	}
	if v, err := r.Uint32(); err != nil || v != 131072 {
		t.Fatalf("u32 got=%d err=%v", v, err)
	}
	if v, err := r.Uint64(); err != nil || v != 1<<40 {
		t.Fatalf("u64 got=%d err=%v", v, err)
	}
	if v, err := r.Bool(); err != nil || !v {
		t.Fatalf("bool true got=%v err=%v", v, err)
	}
	if v, err := r.Bool(); err != nil || v {
		t.Fatalf("bool false got=%v err=%v", v, err)
	}
	if v, err := r.ShortString(); err != nil || v != "guest" {
		t.Fatalf("short string got=%q err=%v", v, err)
	}
	if v, err := r.LongString(); err != nil || v != "PLAIN AMQPLAIN" {
		t.Fatalf("long string got=%q err=%v", v, err)
	}
	if r.Len() != 0 {
		t.Fatalf("unread bytes: %d", r.Len())
	}
}

func TestIntegersAreBigEndian(t *testing.T) {
	w := NewWriter(6)
	w.Uint16(0x0102)
	w.Uint32(0x03040506)
	want := []byte{1, 2, 3, 4, 5, 6}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got=%v want=%v", w.Bytes(), want)
	}
}

func TestBoolNonZeroIsTrue(t *testing.T) {
	r := NewReader([]byte{0x02})
	v, err := r.Bool()
	if err != nil || !v {
		t.Fatalf("got=%v err=%v", v, err)
	}
}

func TestReadPastEndIsEndOfStream(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.Uint16(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
	if r.Offset() != 0 {
		t.Fatalf("failed read advanced cursor to %d", r.Offset())
	}
	if _, err := r.Uint8(); err != nil {
		t.Fatalf("u8 after failed read: %v", err)
	}
}

func TestShortStringDeclaredLengthTruncated(t *testing.T) {
	r := NewReader([]byte{5, 'a', 'b'})
	if _, err := r.ShortString(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestLongStringDeclaredLengthTruncated(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'a'})
	if _, err := r.LongString(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestShortStringTooLong(t *testing.T) {
	w := NewWriter(0)
	if err := w.ShortString(strings.Repeat("q", MaxShortString+1)); !errors.Is(err, ErrShortStringTooLong) {
		t.Fatalf("expected ErrShortStringTooLong, got %v", err)
	}
	if err := w.ShortString(strings.Repeat("q", MaxShortString)); err != nil {
		t.Fatalf("max short string rejected: %v", err)
	}
	if w.Len() != ShortStringSize(strings.Repeat("q", MaxShortString)) {
		t.Fatalf("unexpected len=%d", w.Len())
	}
}

func TestRestCopiesAndDrains(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	r := NewReader(src)
	if _, err := r.Uint8(); err != nil {
		t.Fatalf("u8: %v", err)
	}
	rest := r.Rest()
	if !bytes.Equal(rest, []byte{2, 3, 4}) {
		t.Fatalf("rest=%v", rest)
	}
	rest[0] = 0xFF
	if src[1] != 2 {
		t.Fatalf("rest aliases source buffer")
	}
	if r.Len() != 0 {
		t.Fatalf("rest did not drain reader")
	}
}
