package protocol

import (
	"errors"
	"fmt"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/wire"
)

var (
	ErrEndOfStream       = wire.ErrEndOfStream
	ErrInvalidFrameEnd   = frame.ErrInvalidFrameEnd
	ErrFrameTooLarge     = frame.ErrFrameTooLarge
	ErrUnknownMethod     = errors.New("protocol: unknown method")
	ErrTrailingBytes     = errors.New("protocol: trailing bytes after method fields")
	ErrBadProtocolHeader = errors.New("protocol: bad protocol header")
	ErrNilFrame          = errors.New("protocol: nil frame")
)

// InvalidFrameEndError carries the byte found in place of the frame end octet.
type InvalidFrameEndError = frame.InvalidFrameEndError

// UnknownMethodError is returned for a method id that is not modeled inside a
// class whose methods must all be understood (connection, channel).
type UnknownMethodError struct {
	ClassID  uint16
	MethodID uint16
}

func (e UnknownMethodError) Error() string {
	return fmt.Sprintf("protocol: unknown method %d.%d (%s)", e.ClassID, e.MethodID, MethodName(e.ClassID, e.MethodID))
}

func (e UnknownMethodError) Is(target error) bool {
	return target == ErrUnknownMethod
}

// IsFatal reports whether err leaves the byte stream unusable. Every codec
// error is connection-fatal except a write-side validation failure, which
// never touched the stream.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, wire.ErrShortStringTooLong),
		errors.Is(err, wire.ErrLongStringTooLong),
		errors.Is(err, wire.ErrNilValue),
		errors.Is(err, ErrNilFrame):
		return false
	default:
		return true
	}
}
