package transport

import (
	"fmt"
	"strings"
)

// Op operation requested by a control line
type Op string

const (
	OpPut  Op = "PUT"
	OpGet  Op = "GET"
	OpList Op = "LIST"
)

// argSeparator splits the operation from its filename on the control line
const argSeparator = "|"

// Known reports whether op is one of PUT, GET, LIST
func (op Op) Known() bool {
	switch op {
	case OpPut, OpGet, OpList:
		return true
	}
	return false
}

// ControlMessage first line sent by the client on every connection,
// `OP` or `OP|filename`
type ControlMessage struct {
	Op  Op
	Arg string
}

func (m ControlMessage) String() string {
	return BuildControlLine(m.Op, m.Arg)
}

// BuildControlLine renders the control line without its terminator.
// LIST never carries an argument.
func BuildControlLine(op Op, filename string) string {
	op = Op(strings.ToUpper(string(op)))
	if op == OpList || filename == "" {
		return string(op)
	}
	return string(op) + argSeparator + filename
}

// ParseControlLine splits a control line into an uppercased operation and a
// lowercased argument. An unrecognized operation is still returned, along
// with ErrUnknownOperation, so the caller can log it.
func ParseControlLine(line string) (ControlMessage, error) {
	line = strings.TrimSpace(line)
	opText, arg, _ := strings.Cut(line, argSeparator)

	msg := ControlMessage{
		Op:  Op(strings.ToUpper(strings.TrimSpace(opText))),
		Arg: strings.ToLower(strings.TrimSpace(arg)),
	}
	if !msg.Op.Known() {
		return msg, fmt.Errorf("%w: %q", ErrUnknownOperation, msg.Op)
	}
	return msg, nil
}
