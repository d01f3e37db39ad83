package transport

import (
	"io"
	"net"
)

// Conn is one client connection. It carries exactly one command and is
// closed once that command is done.
type Conn interface {
	io.ReadWriteCloser
	io.ByteReader
	RemoteAddr() net.Addr
}

// Aborter is implemented by connections that can end in a reset
type Aborter interface {
	Abort()
}

// Transport is anything that accepts connections and hands each of them to
// its handler on its own goroutine
type Transport interface {
	ListenAndAccept() error
	Addr() net.Addr
	Close() error
}
