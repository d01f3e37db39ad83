package transport

import (
	"fmt"
	"io"
)

// Reply token sent by the server once a PUT or GET has been evaluated
type Reply string

const (
	ReplyAccepted Reply = "OK"
	ReplyRejected Reply = "ER"
)

// Decision terminal state of one handshake, with the reason for the logs
type Decision struct {
	Reply  Reply
	Reason string
}

func (d Decision) Accepted() bool {
	return d.Reply == ReplyAccepted
}

// Send writes the reply token and its terminator
func (d Decision) Send(w io.Writer) error {
	return WriteLine(w, string(d.Reply))
}

func accept(format string, args ...any) Decision {
	return Decision{Reply: ReplyAccepted, Reason: fmt.Sprintf(format, args...)}
}

func reject(format string, args ...any) Decision {
	return Decision{Reply: ReplyRejected, Reason: fmt.Sprintf(format, args...)}
}

// HandshakeFunc evaluates a PUT or GET request against server-side state
type HandshakeFunc func(ControlMessage) Decision

// FileHandshakeFunc the server handshake. exists reports whether any entry of
// that name is stored and blocks PUT; isFile reports a regular file and gates
// GET. The existence check is only a fast path, the exclusive create on PUT
// stays the authoritative guard.
func FileHandshakeFunc(exists, isFile func(string) bool) HandshakeFunc {
	return func(msg ControlMessage) Decision {
		if err := CheckFilename(msg.Arg); err != nil {
			return reject("invalid file type (%s)", msg.Arg)
		}

		switch msg.Op {
		case OpPut:
			if exists(msg.Arg) {
				return reject("PUT refused, file already exists (%s)", msg.Arg)
			}
			return accept("PUT accepted, ready to receive %s", msg.Arg)
		case OpGet:
			if !isFile(msg.Arg) {
				return reject("GET refused, file not found (%s)", msg.Arg)
			}
			return accept("GET accepted, ready to send %s", msg.Arg)
		}
		return reject("invalid operation (%s)", msg.Op)
	}
}

// ReadReply consumes the server's handshake reply. It returns nil on OK,
// ErrHandshakeRejected on ER and ErrUnknownHandshakeResponse otherwise.
func ReadReply(r io.Reader) error {
	line, err := ReadLine(r)
	if err != nil {
		return fmt.Errorf("reading handshake reply: %w", err)
	}

	switch Reply(line) {
	case ReplyAccepted:
		return nil
	case ReplyRejected:
		return ErrHandshakeRejected
	}
	return fmt.Errorf("%w: %q", ErrUnknownHandshakeResponse, line)
}
