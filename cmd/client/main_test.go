package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roylic/go-image-transfer/transport"
)

func TestParseArgs(t *testing.T) {
	cmd, err := parseArgs([]string{"localhost", "3999", "list"}, false)
	require.NoError(t, err)
	assert.Equal(t, command{addr: "127.0.0.1:3999", op: transport.OpList}, cmd)

	cmd, err = parseArgs([]string{"127.0.0.1", "4000", "PUT", "pics/Cat.PNG"}, false)
	require.NoError(t, err)
	assert.Equal(t, command{addr: "127.0.0.1:4000", op: transport.OpPut, path: "pics/Cat.PNG"}, cmd)

	cmd, err = parseArgs([]string{"10.0.0.5", "4000", "get", "cat.png"}, true)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:4000", cmd.addr)
}

func TestParseArgs_Invalid(t *testing.T) {
	testCases := [][]string{
		{},
		{"localhost", "3999"},
		{"example.com", "3999", "list"},
		{"localhost", "port", "list"},
		{"localhost", "70000", "list"},
		{"localhost", "3999", "list", "extra.png"},
		{"localhost", "3999", "put"},
		{"localhost", "3999", "get", "a.png", "b.png"},
		{"localhost", "3999", "put", "notes.txt"},
		{"localhost", "3999", "delete", "a.png"},
	}
	for _, args := range testCases {
		_, err := parseArgs(args, false)
		assert.Error(t, err, "%v", args)
	}

	_, err := parseArgs([]string{"localhost", "3999", "put", "notes.txt"}, false)
	assert.ErrorIs(t, err, transport.ErrInvalidFileType)
}
