package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roylic/go-image-transfer/transport"
)

var (
	ErrInvalidName = errors.New("invalid file name")
	// ErrExists also matches os.ErrExist
	ErrExists = fmt.Errorf("file already exists: %w", os.ErrExist)
	// ErrNotFound also matches os.ErrNotExist
	ErrNotFound = fmt.Errorf("file not found: %w", os.ErrNotExist)
)

// PathTransformFunc 将key转换为存储路径
type PathTransformFunc func(string) PathKey

// FlatPathTransformFunc every key is a file directly under the root
func FlatPathTransformFunc(key string) PathKey {
	return PathKey{
		FileName: key,
	}
}

// PathKey 保存转换后的目录与文件名, PathName is relative to the storage root
type PathKey struct {
	PathName string
	FileName string
}

// FullPath 获取文件相对root的全路径名
func (k PathKey) FullPath() string {
	return filepath.Join(k.PathName, k.FileName)
}

// StorageOpt 存储Opt
type StorageOpt struct {
	// Root directory every key lives under, created on NewStore
	Root              string
	PathTransformFunc PathTransformFunc
}

type Storage struct {
	StorageOpt
}

func NewStore(opts StorageOpt) (*Storage, error) {
	if opts.PathTransformFunc == nil {
		opts.PathTransformFunc = FlatPathTransformFunc
	}
	if len(opts.Root) == 0 {
		opts.Root = "."
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", opts.Root, err)
	}
	return &Storage{
		StorageOpt: opts,
	}, nil
}

// path validates key and resolves it under the root
func (s *Storage) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, key)
	}
	pathKey := s.PathTransformFunc(key)
	return filepath.Join(s.Root, pathKey.FullPath()), nil
}

// Has 检查条目是否存在, directories included
func (s *Storage) Has(key string) bool {
	full, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// HasFile reports whether key is a regular file that Open can serve
func (s *Storage) HasFile(key string) bool {
	full, err := s.path(key)
	if err != nil {
		return false
	}
	fi, err := os.Stat(full)
	return err == nil && fi.Mode().IsRegular()
}

// Open 打开文件用于读取, 同时返回文件大小
func (s *Storage) Open(key string) (io.ReadCloser, int64, error) {
	full, err := s.path(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, key)
	}
	return f, fi.Size(), nil
}

// CreateExclusive creates the file only if nothing of that name exists yet.
// It is the authoritative guard against two writers racing on one name.
func (s *Storage) CreateExclusive(key string) (io.WriteCloser, error) {
	full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, key)
		}
		return nil, err
	}
	return f, nil
}

// WriteStream 将字节流写入新文件: exactly size bytes from r, at most chunk
// bytes per read. Whatever was written before a truncation stays on disk.
func (s *Storage) WriteStream(key string, r io.Reader, size uint64, chunk int, progress func(uint64)) (uint64, error) {
	f, err := s.CreateExclusive(key)
	if err != nil {
		return 0, err
	}

	n, err := transport.ReceivePayload(f, r, size, chunk, progress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// List 列出root下的所有条目, sorted by name. Nothing is filtered out.
func (s *Storage) List() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
