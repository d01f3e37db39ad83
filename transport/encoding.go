package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

const (
	// HeaderSize length prefix of every frame, big-endian uint64
	HeaderSize = 8
	// MaxLineLength upper bound for a control line or handshake reply
	MaxLineLength = 4096
	// DefaultChunkSize bounded copy size used while streaming payloads
	DefaultChunkSize = 64 * 1024
)

// WriteLine appends the line terminator and writes text in a single write
func WriteLine(w io.Writer, text string) error {
	if strings.ContainsRune(text, '\n') {
		return fmt.Errorf("line %q contains a terminator", text)
	}
	_, err := w.Write([]byte(text + "\n"))
	return err
}

// ReadLine reads up to the next '\n' and returns the line without it.
// Readers that are not io.ByteReader are consumed one byte at a time so
// nothing past the terminator is taken off the stream.
func ReadLine(r io.Reader) (string, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &singleByteReader{r: r}
	}

	var line []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if isClosed(err) {
				return "", fmt.Errorf("%w: %d bytes read without line terminator",
					ErrConnectionClosed, len(line))
			}
			return "", err
		}
		if b == '\n' {
			break
		}
		if len(line) >= MaxLineLength {
			return "", ErrLineTooLong
		}
		line = append(line, b)
	}
	return strings.TrimSuffix(string(line), "\r"), nil
}

// WriteHeader writes the 8 byte length prefix of a frame
func WriteHeader(w io.Writer, size uint64) error {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint64(header[:], size)
	_, err := w.Write(header[:])
	return err
}

// ReadHeader reads exactly 8 bytes and decodes the declared payload length
func ReadHeader(r io.Reader) (uint64, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if isClosed(err) {
			return 0, fmt.Errorf("%w: reading frame header", ErrConnectionClosed)
		}
		return 0, err
	}
	return binary.BigEndian.Uint64(header[:]), nil
}

// WriteFrame writes the length prefix and the payload as one write
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf, uint64(len(payload)))
	copy(buf[HeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame fully into memory. limit bounds the declared
// length, 0 means no bound.
func ReadFrame(r io.Reader, limit uint64) ([]byte, error) {
	size, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && size > limit {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrFrameTooLarge, size, limit)
	}

	payload := make([]byte, size)
	n, err := io.ReadFull(r, payload)
	if err != nil {
		if isClosed(err) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedTransfer, n, size)
		}
		return nil, err
	}
	return payload, nil
}

// SendPayload writes a frame whose payload is streamed from src. src must
// hold at least size bytes.
func SendPayload(w io.Writer, src io.Reader, size uint64, chunk int) (uint64, error) {
	if err := WriteHeader(w, size); err != nil {
		return 0, err
	}
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	buf := make([]byte, chunk)
	n, err := io.CopyBuffer(w, io.LimitReader(src, int64(size)), buf)
	if err != nil {
		return uint64(n), err
	}
	if uint64(n) != size {
		return uint64(n), fmt.Errorf("source ended after %d of %d bytes", n, size)
	}
	return uint64(n), nil
}

// ReceivePayload copies exactly size bytes from src to dst, at most chunk
// bytes per read. progress, when set, sees the running total after each chunk.
func ReceivePayload(dst io.Writer, src io.Reader, size uint64, chunk int, progress func(uint64)) (uint64, error) {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	buf := make([]byte, chunk)
	var received uint64
	for received < size {
		want := uint64(len(buf))
		if left := size - received; left < want {
			want = left
		}

		n, err := src.Read(buf[:want])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return received, werr
			}
			received += uint64(n)
			if progress != nil {
				progress(received)
			}
		}
		if err != nil {
			if received == size {
				break
			}
			if isClosed(err) {
				return received, fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedTransfer, received, size)
			}
			return received, err
		}
	}
	return received, nil
}

// isClosed reports whether err means the peer is gone
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

type singleByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (s *singleByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		return 0, err
	}
	return s.buf[0], nil
}
