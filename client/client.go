package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roylic/go-image-transfer/storage"
	"github.com/roylic/go-image-transfer/transport"
)

var (
	ErrLocalFileMissing = errors.New("local file not found")
	ErrLocalFileExists  = errors.New("local file already exists")
)

// MaxListSize upper bound accepted for a LIST frame
const MaxListSize = 16 << 20

// ProgressFunc sees the running byte count of a transfer against its total
type ProgressFunc func(op transport.Op, name string, done, total uint64)

type Opts struct {
	// Addr server host:port
	Addr string
	// Dir local directory GET writes into
	Dir string
	// Timeout dial timeout and idle deadline on the connection, 0 disables
	Timeout   time.Duration
	ChunkSize int
	Progress  ProgressFunc
}

// Client runs one command per connection against a server
type Client struct {
	Opts

	local *storage.Storage
}

func New(opts Opts) (*Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("client: server address must not be empty")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = transport.DefaultChunkSize
	}
	local, err := storage.NewStore(storage.StorageOpt{
		Root:              opts.Dir,
		PathTransformFunc: storage.FlatPathTransformFunc,
	})
	if err != nil {
		return nil, err
	}
	return &Client{Opts: opts, local: local}, nil
}

// RemoteName the name a local path is stored under on the server
func RemoteName(path string) string {
	return strings.ToLower(filepath.Base(path))
}

// Put uploads the file at path. Nothing is sent when the name is not an
// allowed image or the file is missing locally.
func (c *Client) Put(path string) (uint64, error) {
	name := RemoteName(path)
	if err := transport.CheckFilename(name); err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrLocalFileMissing, path)
		}
		return 0, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrLocalFileMissing, path)
	}
	size := uint64(fi.Size())

	conn, err := c.request(transport.OpPut, name)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := transport.ReadReply(conn); err != nil {
		return 0, err
	}

	src := io.Reader(f)
	if c.Progress != nil {
		src = &progressReader{r: f, fn: func(done uint64) {
			c.Progress(transport.OpPut, name, done, size)
		}}
	}
	sent, err := transport.SendPayload(conn, src, size, c.ChunkSize)
	if err != nil {
		return sent, err
	}
	if err := awaitClose(conn); err != nil {
		return sent, fmt.Errorf("server did not confirm %s: %w", name, err)
	}
	return sent, nil
}

// Get downloads name into the local directory. It refuses to overwrite a
// local file, and whatever arrived before a truncation stays on disk.
func (c *Client) Get(name string) (uint64, error) {
	name = RemoteName(name)
	if err := transport.CheckFilename(name); err != nil {
		return 0, err
	}
	if c.local.Has(name) {
		return 0, fmt.Errorf("%w: %s", ErrLocalFileExists, filepath.Join(c.local.Root, name))
	}

	conn, err := c.request(transport.OpGet, name)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := transport.ReadReply(conn); err != nil {
		return 0, err
	}

	size, err := transport.ReadHeader(conn)
	if err != nil {
		return 0, err
	}

	var progress func(uint64)
	if c.Progress != nil {
		progress = func(done uint64) {
			c.Progress(transport.OpGet, name, done, size)
		}
	}
	n, err := c.local.WriteStream(name, conn, size, c.ChunkSize, progress)
	if errors.Is(err, storage.ErrExists) {
		return 0, fmt.Errorf("%w: %s", ErrLocalFileExists, name)
	}
	return n, err
}

// List returns the entries of the server's storage directory
func (c *Client) List() ([]string, error) {
	conn, err := c.request(transport.OpList, "")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// no handshake for LIST
	payload, err := transport.ReadFrame(conn, MaxListSize)
	if err != nil {
		return nil, err
	}
	return ParseListing(payload), nil
}

// ParseListing splits a LIST payload into entries; an empty payload is an
// empty listing
func ParseListing(payload []byte) []string {
	text := strings.TrimSuffix(string(payload), "\n")
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}

// request opens a fresh connection and sends the control line
func (c *Client) request(op transport.Op, name string) (*transport.TCPConn, error) {
	conn, err := transport.Dial(c.Addr, c.Timeout)
	if err != nil {
		return nil, err
	}
	if err := transport.WriteLine(conn, transport.BuildControlLine(op, name)); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// awaitClose half-closes the connection and waits for the server to hang up,
// which it does cleanly once the upload is on its disk. A reset, or anything
// else that is not a clean end of stream, means the upload failed.
func awaitClose(conn *transport.TCPConn) error {
	if tc, ok := conn.Conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return err
		}
	}
	n, err := io.Copy(io.Discard, conn)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("unexpected %d bytes after upload", n)
	}
	return nil
}

type progressReader struct {
	r    io.Reader
	done uint64
	fn   func(uint64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += uint64(n)
		p.fn(p.done)
	}
	return n, err
}
