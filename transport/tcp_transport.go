package transport

import (
	"bufio"
	"errors"
	"log"
	"net"
	"sync"
	"time"
)

// TCPConn a Conn over TCP. Reads go through a buffer so the control line can
// be read without losing the bytes behind it, every read and write pushes the
// idle deadline forward.
type TCPConn struct {
	net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

func NewTCPConn(conn net.Conn, timeout time.Duration) *TCPConn {
	return &TCPConn{
		Conn:    conn,
		r:       bufio.NewReader(conn),
		timeout: timeout,
	}
}

func (c *TCPConn) Read(p []byte) (int, error) {
	c.touch()
	return c.r.Read(p)
}

func (c *TCPConn) ReadByte() (byte, error) {
	c.touch()
	return c.r.ReadByte()
}

func (c *TCPConn) Write(p []byte) (int, error) {
	c.touch()
	return c.Conn.Write(p)
}

// Abort makes the coming Close reset the connection instead of ending it
// cleanly, so a peer waiting on the close sees the failure
func (c *TCPConn) Abort() {
	if tc, ok := c.Conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
}

func (c *TCPConn) touch() {
	if c.timeout > 0 {
		_ = c.Conn.SetDeadline(time.Now().Add(c.timeout))
	}
}

// Dial opens the client side of a connection
func Dial(addr string, timeout time.Duration) (*TCPConn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPConn(conn, timeout), nil
}

type TCPTransportOpt struct {
	ListenAddr string
	// Timeout idle deadline per connection, 0 disables it
	Timeout time.Duration
	// OnConn handles one connection; the transport closes it afterwards
	OnConn func(Conn)
}

type TCPTransport struct {
	TCPTransportOpt

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewTCPTransport(opts TCPTransportOpt) *TCPTransport {
	return &TCPTransport{
		TCPTransportOpt: opts,
	}
}

// ListenAndAccept binds the listen address and starts the accept loop on
// its own goroutine
func (t *TCPTransport) ListenAndAccept() error {
	if t.OnConn == nil {
		return errors.New("tcp transport: OnConn is not set")
	}

	ln, err := net.Listen("tcp", t.ListenAddr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	t.wg.Add(1)
	go t.startAcceptLoop(ln)
	log.Printf("transport >>> TCP listening on %s\n", ln.Addr())
	return nil
}

// Addr the bound address, useful when listening on port 0
func (t *TCPTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Close stops accepting and waits for in-flight connections to finish
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	t.wg.Wait()
	return err
}

func (t *TCPTransport) startAcceptLoop(ln net.Listener) {
	defer t.wg.Done()
	for {
		conn, err := ln.Accept()
		// graceful shutdown
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			log.Printf("transport >>> accept error: %s\n", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		t.wg.Add(1)
		go t.handleConn(conn)
	}
}

// handleConn runs OnConn for one connection. A panic in the handler only
// drops that connection.
func (t *TCPTransport) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("transport >>> handler panic for %s: %v\n", conn.RemoteAddr(), r)
		}
	}()

	t.OnConn(NewTCPConn(conn, t.Timeout))
}
