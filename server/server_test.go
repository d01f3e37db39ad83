package server

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roylic/go-image-transfer/transport"
)

// Test_FilePassing PUT a file then GET it back over fresh connections
func Test_FilePassing(t *testing.T) {
	s, addr := makeServer(t)

	data := bytes.Repeat([]byte("my big data file\n"), 10000)

	conn := request(t, addr, "PUT|Holiday.PNG")
	require.NoError(t, transport.ReadReply(conn))
	require.NoError(t, transport.WriteFrame(conn, data))
	conn.Close()

	// the upload is stored under the lowercased name
	require.Eventually(t, func() bool {
		return requestCount(s, "PUT", resultOK) == 1
	}, 2*time.Second, 10*time.Millisecond)
	stored, err := os.ReadFile(filepath.Join(s.StorageRoot, "holiday.png"))
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	conn = request(t, addr, "GET|holiday.png")
	defer conn.Close()
	require.NoError(t, transport.ReadReply(conn))
	got, err := transport.ReadFrame(conn, 0)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.Eventually(t, func() bool {
		return requestCount(s, "GET", resultOK) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(len(data)), testutil.ToFloat64(s.Metrics.BytesReceived))
	assert.Equal(t, float64(len(data)), testutil.ToFloat64(s.Metrics.BytesSent))
}

func TestPut_RejectsExistingFile(t *testing.T) {
	s, addr := makeServer(t)
	original := []byte("original")
	require.NoError(t, os.WriteFile(filepath.Join(s.StorageRoot, "taken.jpg"), original, 0o644))

	conn := request(t, addr, "PUT|taken.jpg")
	defer conn.Close()
	assert.ErrorIs(t, transport.ReadReply(conn), transport.ErrHandshakeRejected)

	// nothing follows the rejection
	_, err := transport.ReadLine(conn)
	assert.ErrorIs(t, err, transport.ErrConnectionClosed)

	stored, err := os.ReadFile(filepath.Join(s.StorageRoot, "taken.jpg"))
	require.NoError(t, err)
	assert.Equal(t, original, stored)
	require.Eventually(t, func() bool {
		return requestCount(s, "PUT", resultRejected) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGet_RejectsMissingFileWithoutHeader(t *testing.T) {
	s, addr := makeServer(t)

	conn := request(t, addr, "GET|missing.png")
	defer conn.Close()
	assert.ErrorIs(t, transport.ReadReply(conn), transport.ErrHandshakeRejected)

	_, err := transport.ReadHeader(conn)
	assert.ErrorIs(t, err, transport.ErrConnectionClosed)
	require.Eventually(t, func() bool {
		return requestCount(s, "GET", resultRejected) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// a directory under the storage root is an entry but not a file
func TestGet_DirectoryEntryRejected(t *testing.T) {
	s, addr := makeServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(s.StorageRoot, "album.png"), 0o755))

	conn := request(t, addr, "GET|album.png")
	defer conn.Close()
	assert.ErrorIs(t, transport.ReadReply(conn), transport.ErrHandshakeRejected)

	_, err := transport.ReadHeader(conn)
	assert.ErrorIs(t, err, transport.ErrConnectionClosed)
	require.Eventually(t, func() bool {
		return requestCount(s, "GET", resultRejected) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, requestCount(s, "GET", resultFailed))

	// PUT of the same name is refused too
	conn2 := request(t, addr, "PUT|album.png")
	defer conn2.Close()
	assert.ErrorIs(t, transport.ReadReply(conn2), transport.ErrHandshakeRejected)
}

func TestPut_FailedUploadResetsConnection(t *testing.T) {
	s, addr := makeServer(t)

	// the file appears after the handshake, so the exclusive create fails
	conn := request(t, addr, "PUT|late.png")
	defer conn.Close()
	require.NoError(t, transport.ReadReply(conn))
	require.NoError(t, os.WriteFile(filepath.Join(s.StorageRoot, "late.png"), []byte("first"), 0o644))
	require.NoError(t, transport.WriteHeader(conn, 4))

	_, err := io.Copy(io.Discard, conn)
	assert.Error(t, err)
	require.Eventually(t, func() bool {
		return requestCount(s, "PUT", resultFailed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := os.ReadFile(filepath.Join(s.StorageRoot, "late.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), stored)
}

func TestInvalidFileTypeRejected(t *testing.T) {
	s, addr := makeServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.StorageRoot, "notes.txt"), []byte("x"), 0o644))

	for _, line := range []string{"PUT|new.txt", "GET|notes.txt", "PUT|../escape.png", "PUT"} {
		conn := request(t, addr, line)
		assert.ErrorIs(t, transport.ReadReply(conn), transport.ErrHandshakeRejected, line)
		conn.Close()
	}

	_, err := os.Stat(filepath.Join(s.StorageRoot, "new.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(filepath.Dir(s.StorageRoot), "escape.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnknownOperationClosesWithoutReply(t *testing.T) {
	s, addr := makeServer(t)

	conn := request(t, addr, "DELETE|photo.png")
	defer conn.Close()
	_, err := transport.ReadLine(conn)
	assert.ErrorIs(t, err, transport.ErrConnectionClosed)
	require.Eventually(t, func() bool {
		return requestCount(s, "unknown", resultRejected) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestList(t *testing.T) {
	s, addr := makeServer(t)

	// empty directory is an empty frame, not an error
	conn := request(t, addr, "LIST")
	payload, err := transport.ReadFrame(conn, 0)
	conn.Close()
	require.NoError(t, err)
	assert.Empty(t, payload)

	for _, name := range []string{"b.png", "a.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.StorageRoot, name), []byte(name), 0o644))
	}
	conn = request(t, addr, "list")
	defer conn.Close()
	payload, err = transport.ReadFrame(conn, 0)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg\nb.png\n", string(payload))
}

func TestPut_TruncatedUploadKeepsPartialFile(t *testing.T) {
	s, addr := makeServer(t)

	conn := request(t, addr, "PUT|partial.png")
	require.NoError(t, transport.ReadReply(conn))
	require.NoError(t, transport.WriteHeader(conn, 1000))
	_, err := conn.Write(make([]byte, 100))
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		return requestCount(s, "PUT", resultFailed) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, requestCount(s, "PUT", resultOK))

	fi, err := os.Stat(filepath.Join(s.StorageRoot, "partial.png"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), fi.Size())
}

func TestStopEndsStart(t *testing.T) {
	s, addr := makeServer(t)

	s.Stop()
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
		}
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	// a second Stop is harmless
	s.Stop()
}

// makeServer starts a server on a kernel-chosen loopback port with its own
// storage root and returns it with the address to dial
func makeServer(t *testing.T) (*FileServer, string) {
	t.Helper()

	// 1. tcp options
	tcpOpts := transport.TCPTransportOpt{
		ListenAddr: "127.0.0.1:0",
		Timeout:    5 * time.Second,
	}
	tr := transport.NewTCPTransport(tcpOpts)
	// 2. file server options
	fileServerOpts := FileServerOpts{
		StorageRoot: filepath.Join(t.TempDir(), "storage"),
		ChunkSize:   4096,
		Transport:   tr,
	}
	// 3. construct server
	s, err := NewFileServer(fileServerOpts)
	require.NoError(t, err)
	tr.OnConn = s.HandleConn

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()
	t.Cleanup(func() {
		s.Stop()
		assert.NoError(t, <-errCh)
	})

	require.Eventually(t, func() bool {
		return tr.Addr() != nil
	}, 2*time.Second, 10*time.Millisecond)
	return s, tr.Addr().String()
}

func request(t *testing.T, addr, line string) *transport.TCPConn {
	t.Helper()
	conn, err := transport.Dial(addr, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, transport.WriteLine(conn, line))
	return conn
}

func requestCount(s *FileServer, op, result string) float64 {
	return testutil.ToFloat64(s.Metrics.Requests.WithLabelValues(op, result))
}
