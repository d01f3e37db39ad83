package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFileType filename extension is not one of the allowed images
	ErrInvalidFileType = errors.New("invalid file type")
	// ErrHandshakeRejected server answered ER to a PUT or GET
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrUnknownHandshakeResponse server answered neither OK nor ER
	ErrUnknownHandshakeResponse = errors.New("unknown handshake response")
	// ErrUnknownOperation control line carries an operation other than PUT, GET, LIST
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrConnectionClosed peer went away before a line or frame was complete
	ErrConnectionClosed = errors.New("connection closed")
	// ErrTruncatedTransfer peer went away after declaring a length but before
	// sending all of it. It also matches ErrConnectionClosed.
	ErrTruncatedTransfer = fmt.Errorf("%w: truncated transfer", ErrConnectionClosed)
	ErrLineTooLong       = errors.New("control line too long")
	ErrFrameTooLarge     = errors.New("frame too large")
)
