package wire

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Field value tags. The set follows the 0-9-1 errata table that brokers
// actually emit, not the published grammar's signed/unsigned naming.
const (
	TagBool      byte = 't'
	TagInt8      byte = 'b'
	TagUint8     byte = 'B'
	TagInt16     byte = 's'
	TagUint16    byte = 'u'
	TagInt32     byte = 'I'
	TagUint32    byte = 'i'
	TagInt64     byte = 'l'
	TagFloat32   byte = 'f'
	TagFloat64   byte = 'd'
	TagDecimal   byte = 'D'
	TagString    byte = 'S'
	TagArray     byte = 'A'
	TagTimestamp byte = 'T'
	TagTable     byte = 'F'
	TagVoid      byte = 'V'
	TagByteArray byte = 'x'
)

var ErrNilValue = errors.New("wire: nil field value")

// Value is one tagged field value. The set of implementations is closed to
// this package; decode of an unlisted tag fails with ErrUnknownFieldTag.
type Value interface {
	Tag() byte
	size() int
	write(w *Writer) error
}

type (
	Bool      bool
	Int8      int8
	Uint8     uint8
	Int16     int16
	Uint16    uint16
	Int32     int32
	Uint32    uint32
	Int64     int64
	Float32   float32
	Float64   float64
	String    string
	ByteArray []byte
	Array     []Value
	// Timestamp is seconds since the Unix epoch.
	Timestamp uint64
	Void      struct{}
)

// Decimal is Value scaled down by 10^Scale.
type Decimal struct {
	Scale uint8
	Value int32
}

// Field is one named entry of a Table.
type Field struct {
	Name  string
	Value Value
}

// Table is an ordered field table. Order and duplicate names survive a
// decode/encode cycle.
type Table []Field

// Get returns the first value stored under name.
func (t Table) Get(name string) (Value, bool) {
	for _, f := range t {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// EncodedSize is the number of bytes t occupies on the wire, length prefix included.
func (t Table) EncodedSize() int {
	return t.size()
}

func (Bool) Tag() byte      { return TagBool }
func (Int8) Tag() byte      { return TagInt8 }
func (Uint8) Tag() byte     { return TagUint8 }
func (Int16) Tag() byte     { return TagInt16 }
func (Uint16) Tag() byte    { return TagUint16 }
func (Int32) Tag() byte     { return TagInt32 }
func (Uint32) Tag() byte    { return TagUint32 }
func (Int64) Tag() byte     { return TagInt64 }
func (Float32) Tag() byte   { return TagFloat32 }
func (Float64) Tag() byte   { return TagFloat64 }
func (Decimal) Tag() byte   { return TagDecimal }
func (String) Tag() byte    { return TagString }
func (Array) Tag() byte     { return TagArray }
func (Timestamp) Tag() byte { return TagTimestamp }
func (Table) Tag() byte     { return TagTable }
func (Void) Tag() byte      { return TagVoid }
func (ByteArray) Tag() byte { return TagByteArray }

func (Bool) size() int        { return 1 }
func (Int8) size() int        { return 1 }
func (Uint8) size() int       { return 1 }
func (Int16) size() int       { return 2 }
func (Uint16) size() int      { return 2 }
func (Int32) size() int       { return 4 }
func (Uint32) size() int      { return 4 }
func (Int64) size() int       { return 8 }
func (Float32) size() int     { return 4 }
func (Float64) size() int     { return 8 }
func (Decimal) size() int     { return 5 }
func (v String) size() int    { return 4 + len(v) }
func (Timestamp) size() int   { return 8 }
func (Void) size() int        { return 0 }
func (v ByteArray) size() int { return 4 + len(v) }

func (v Array) size() int {
	n := 4
	for _, item := range v {
		n += 1 + valueSize(item)
	}
	return n
}

func (t Table) size() int {
	n := 4
	for _, f := range t {
		n += ShortStringSize(f.Name) + 1 + valueSize(f.Value)
	}
	return n
}

func valueSize(v Value) int {
	if v == nil {
		return 0
	}
	return v.size()
}

func (v Bool) write(w *Writer) error    { w.Bool(bool(v)); return nil }
func (v Int8) write(w *Writer) error    { w.Uint8(uint8(v)); return nil }
func (v Uint8) write(w *Writer) error   { w.Uint8(uint8(v)); return nil }
func (v Int16) write(w *Writer) error   { w.Uint16(uint16(v)); return nil }
func (v Uint16) write(w *Writer) error  { w.Uint16(uint16(v)); return nil }
func (v Int32) write(w *Writer) error   { w.Uint32(uint32(v)); return nil }
func (v Uint32) write(w *Writer) error  { w.Uint32(uint32(v)); return nil }
func (v Int64) write(w *Writer) error   { w.Uint64(uint64(v)); return nil }
func (v Float32) write(w *Writer) error { w.Uint32(math.Float32bits(float32(v))); return nil }
func (v Float64) write(w *Writer) error { w.Uint64(math.Float64bits(float64(v))); return nil }
func (v String) write(w *Writer) error  { return w.LongString(string(v)) }
func (Void) write(*Writer) error        { return nil }

func (v ByteArray) write(w *Writer) error { return w.longBytes(v) }

func (v Timestamp) write(w *Writer) error {
	w.Uint64(uint64(v))
	return nil
}

func (v Decimal) write(w *Writer) error {
	w.Uint8(v.Scale)
	w.Uint32(uint32(v.Value))
	return nil
}

func (v Array) write(w *Writer) error {
	n := v.size() - 4
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: array of %d bytes", ErrLongStringTooLong, n)
	}
	w.Uint32(uint32(n))
	for i, item := range v {
		if item == nil {
			return fmt.Errorf("%w: array index %d", ErrNilValue, i)
		}
		w.Uint8(item.Tag())
		if err := item.write(w); err != nil {
			return err
		}
	}
	return nil
}

func (t Table) write(w *Writer) error {
	n := t.size() - 4
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: table of %d bytes", ErrLongStringTooLong, n)
	}
	w.Uint32(uint32(n))
	for _, f := range t {
		if f.Value == nil {
			return fmt.Errorf("%w: field %q", ErrNilValue, f.Name)
		}
		if err := w.ShortString(f.Name); err != nil {
			return fmt.Errorf("field name %q: %w", f.Name, err)
		}
		w.Uint8(f.Value.Tag())
		if err := f.Value.write(w); err != nil {
			return err
		}
	}
	return nil
}

// Time converts t to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// TimestampOf truncates tm to whole seconds.
func TimestampOf(tm time.Time) Timestamp {
	return Timestamp(tm.Unix())
}

// Table writes t with its exact byte length prefix.
func (w *Writer) Table(t Table) error {
	return t.write(w)
}

// Table reads a length-prefixed field table. Decoding consumes exactly the
// declared length; an entry that runs past it fails with ErrTableOverrun.
func (r *Reader) Table() (Table, error) {
	body, err := r.longBytes()
	if err != nil {
		return nil, err
	}
	sub := NewReader(body)
	var t Table
	for sub.Len() > 0 {
		name, err := sub.ShortString()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTableOverrun, err)
		}
		v, err := sub.value()
		if err != nil {
			if errors.Is(err, ErrEndOfStream) && !errors.Is(err, ErrTableOverrun) {
				return nil, fmt.Errorf("%w: field %q: %w", ErrTableOverrun, name, err)
			}
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		t = append(t, Field{Name: name, Value: v})
	}
	return t, nil
}

func (r *Reader) array() (Array, error) {
	body, err := r.longBytes()
	if err != nil {
		return nil, err
	}
	sub := NewReader(body)
	var a Array
	for sub.Len() > 0 {
		v, err := sub.value()
		if err != nil {
			if errors.Is(err, ErrEndOfStream) && !errors.Is(err, ErrTableOverrun) {
				return nil, fmt.Errorf("%w: array index %d: %w", ErrTableOverrun, len(a), err)
			}
			return nil, err
		}
		a = append(a, v)
	}
	return a, nil
}

// value reads one tag byte and the value it announces.
func (r *Reader) value() (Value, error) {
	tag, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagBool:
		v, err := r.Bool()
		return Bool(v), err
	case TagInt8:
		v, err := r.Uint8()
		return Int8(int8(v)), err
	case TagUint8:
		v, err := r.Uint8()
		return Uint8(v), err
	case TagInt16:
		v, err := r.Uint16()
		return Int16(int16(v)), err
	case TagUint16:
		v, err := r.Uint16()
		return Uint16(v), err
	case TagInt32:
		v, err := r.Uint32()
		return Int32(int32(v)), err
	case TagUint32:
		v, err := r.Uint32()
		return Uint32(v), err
	case TagInt64:
		v, err := r.Uint64()
		return Int64(int64(v)), err
	case TagFloat32:
		v, err := r.Uint32()
		return Float32(math.Float32frombits(v)), err
	case TagFloat64:
		v, err := r.Uint64()
		return Float64(math.Float64frombits(v)), err
	case TagDecimal:
		scale, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		v, err := r.Uint32()
		return Decimal{Scale: scale, Value: int32(v)}, err
	case TagString:
		v, err := r.LongString()
		return String(v), err
	case TagArray:
		return r.array()
	case TagTimestamp:
		v, err := r.Uint64()
		return Timestamp(v), err
	case TagTable:
		return r.Table()
	case TagVoid:
		return Void{}, nil
	case TagByteArray:
		b, err := r.longBytes()
		if err != nil {
			return nil, err
		}
		out := make(ByteArray, len(b))
		copy(out, b)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q at offset %d", ErrUnknownFieldTag, tag, r.off-1)
	}
}
