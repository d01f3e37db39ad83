package server

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/roylic/go-image-transfer/crypto"
	"github.com/roylic/go-image-transfer/transport"
)

// session one connection and the id it is logged under
type session struct {
	transport.Conn
	id string
}

func (s *FileServer) logf(sess *session, format string, args ...any) {
	log.Printf("server [%s] conn [%s] >>> %s\n", s.ID, sess.id, fmt.Sprintf(format, args...))
}

// HandleConn serves exactly one command on conn; it is the transport's
// OnConn callback. The transport closes conn when it returns.
func (s *FileServer) HandleConn(conn transport.Conn) {
	sess := &session{Conn: conn, id: crypto.GenerateID()[:8]}

	s.Metrics.ActiveConnections.Inc()
	defer s.Metrics.ActiveConnections.Dec()

	s.logf(sess, "new connection %s", conn.RemoteAddr())
	defer s.logf(sess, "connection closed")

	line, err := transport.ReadLine(conn)
	if err != nil {
		s.logf(sess, "[ERROR] reading control line: %s", err)
		s.Metrics.Requests.WithLabelValues("unknown", resultFailed).Inc()
		return
	}

	msg, err := transport.ParseControlLine(line)
	if err != nil {
		// no reply frame, just close
		s.logf(sess, "[ERROR] %s", err)
		s.Metrics.Requests.WithLabelValues("unknown", resultRejected).Inc()
		return
	}
	s.logf(sess, "request %s", msg)

	start := time.Now()
	err = s.handleMessage(sess, msg)
	s.Metrics.TransferDuration.WithLabelValues(string(msg.Op)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		s.Metrics.Requests.WithLabelValues(string(msg.Op), resultOK).Inc()
	case errors.Is(err, transport.ErrHandshakeRejected):
		s.Metrics.Requests.WithLabelValues(string(msg.Op), resultRejected).Inc()
	default:
		s.logf(sess, "[ERROR] %s %s: %s", msg.Op, msg.Arg, err)
		s.Metrics.Requests.WithLabelValues(string(msg.Op), resultFailed).Inc()
	}
}

// handleMessage routes a parsed control line to its flow
func (s *FileServer) handleMessage(sess *session, msg transport.ControlMessage) error {
	switch msg.Op {
	case transport.OpList:
		return s.handleList(sess)
	case transport.OpPut:
		return s.handlePut(sess, msg)
	case transport.OpGet:
		return s.handleGet(sess, msg)
	}
	return fmt.Errorf("%w: %q", transport.ErrUnknownOperation, msg.Op)
}

// doHandshake evaluates the request and writes the reply before any file I/O
func (s *FileServer) doHandshake(sess *session, msg transport.ControlMessage) error {
	decision := s.handshake(msg)
	s.logf(sess, "[HANDSHAKE] %s", decision.Reason)

	if err := decision.Send(sess); err != nil {
		return fmt.Errorf("sending handshake reply: %w", err)
	}
	if !decision.Accepted() {
		return fmt.Errorf("%w: %s", transport.ErrHandshakeRejected, decision.Reason)
	}
	return nil
}

func (s *FileServer) handleList(sess *session) error {
	names, err := s.store.List()
	if err != nil {
		return fmt.Errorf("listing %s: %w", s.store.Root, err)
	}

	var payload []byte
	if len(names) > 0 {
		payload = []byte(strings.Join(names, "\n") + "\n")
	}
	if err := transport.WriteFrame(sess, payload); err != nil {
		return err
	}
	s.Metrics.BytesSent.Add(float64(len(payload)))

	s.logf(sess, "[LIST] directory listing sent (%d items)", len(names))
	return nil
}

// handlePut receives a file. The handshake existence check is advisory, the
// exclusive create decides. A truncated upload leaves its partial file behind,
// and any failure after OK ends the connection with a reset.
func (s *FileServer) handlePut(sess *session, msg transport.ControlMessage) error {
	if err := s.doHandshake(sess, msg); err != nil {
		return err
	}

	size, err := transport.ReadHeader(sess)
	if err != nil {
		return err
	}
	s.logf(sess, "[PUT] expecting %d bytes for %s", size, msg.Arg)

	received, err := s.store.WriteStream(msg.Arg, sess, size, s.ChunkSize, nil)
	s.Metrics.BytesReceived.Add(float64(received))
	if err != nil {
		// the client waits for our close, a reset tells it nothing was stored
		if a, ok := sess.Conn.(transport.Aborter); ok {
			a.Abort()
		}
		return err
	}

	s.logf(sess, "[SUCCESS] received %s (%d bytes)", msg.Arg, received)
	return nil
}

func (s *FileServer) handleGet(sess *session, msg transport.ControlMessage) error {
	if err := s.doHandshake(sess, msg); err != nil {
		return err
	}

	f, size, err := s.store.Open(msg.Arg)
	if err != nil {
		return err
	}
	defer f.Close()
	s.logf(sess, "[GET] sending %s (%d bytes)", msg.Arg, size)

	sent, err := transport.SendPayload(sess, f, uint64(size), s.ChunkSize)
	s.Metrics.BytesSent.Add(float64(sent))
	if err != nil {
		return err
	}

	s.logf(sess, "[SUCCESS] file sent (%d bytes): %s", sent, msg.Arg)
	return nil
}
