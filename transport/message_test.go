package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseControlLine(t *testing.T) {
	testCases := []struct {
		line string
		want ControlMessage
	}{
		{"LIST", ControlMessage{Op: OpList}},
		{"list\r", ControlMessage{Op: OpList}},
		{"PUT|Photo.PNG", ControlMessage{Op: OpPut, Arg: "photo.png"}},
		{"get|cat.jpg", ControlMessage{Op: OpGet, Arg: "cat.jpg"}},
		{"  Get | Cat.JPEG ", ControlMessage{Op: OpGet, Arg: "cat.jpeg"}},
		{"PUT|a|b.png", ControlMessage{Op: OpPut, Arg: "a|b.png"}},
		{"PUT", ControlMessage{Op: OpPut}},
	}

	for _, tc := range testCases {
		msg, err := ParseControlLine(tc.line)
		assert.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, msg, tc.line)
	}
}

func TestParseControlLine_UnknownOperation(t *testing.T) {
	for _, line := range []string{"", "DELETE|a.png", "|a.png", "PUTT|a.png"} {
		msg, err := ParseControlLine(line)
		assert.ErrorIs(t, err, ErrUnknownOperation, line)
		assert.False(t, msg.Op.Known())
	}
}

func TestBuildControlLine(t *testing.T) {
	assert.Equal(t, "PUT|photo.png", BuildControlLine(OpPut, "photo.png"))
	assert.Equal(t, "GET|photo.png", BuildControlLine("get", "photo.png"))
	assert.Equal(t, "LIST", BuildControlLine(OpList, ""))
	assert.Equal(t, "LIST", BuildControlLine(OpList, "ignored.png"))

	msg, err := ParseControlLine(BuildControlLine(OpGet, "x.jpg"))
	assert.NoError(t, err)
	assert.Equal(t, ControlMessage{Op: OpGet, Arg: "x.jpg"}, msg)
}
