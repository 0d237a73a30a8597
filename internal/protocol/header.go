package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ProtocolHeader is the preface a client sends before its first frame.
var ProtocolHeader = [8]byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}

// ReadProtocolHeader reads the 8-byte preface. A mismatch returns the bytes
// that were read so the caller can answer with its own header and close.
func ReadProtocolHeader(r io.Reader) ([8]byte, error) {
	var got [8]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return got, fmt.Errorf("%w: protocol header: %w", ErrEndOfStream, err)
		}
		return got, err
	}
	if !bytes.Equal(got[:], ProtocolHeader[:]) {
		return got, fmt.Errorf("%w: %q", ErrBadProtocolHeader, got[:])
	}
	return got, nil
}

func WriteProtocolHeader(w io.Writer) error {
	_, err := w.Write(ProtocolHeader[:])
	return err
}
