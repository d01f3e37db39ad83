package server

import (
	"fmt"
	"sync"

	"github.com/roylic/go-image-transfer/crypto"
	"github.com/roylic/go-image-transfer/storage"
	"github.com/roylic/go-image-transfer/transport"
)

// FileServerOpts inner Transport is for accepting the client connections
type FileServerOpts struct {
	ID          string // server identifier
	StorageRoot string
	// ChunkSize bounded read size while streaming a payload
	ChunkSize int
	Transport transport.Transport
}

type FileServer struct {
	FileServerOpts

	store     *storage.Storage
	handshake transport.HandshakeFunc
	Metrics   *Metrics

	quitOnce sync.Once
	quitCh   chan struct{} // 退出时的停止
}

func NewFileServer(opts FileServerOpts) (*FileServer, error) {
	if len(opts.ID) == 0 {
		opts.ID = crypto.GenerateID()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = transport.DefaultChunkSize
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("server %s: no transport configured", opts.ID)
	}

	store, err := storage.NewStore(storage.StorageOpt{
		Root:              opts.StorageRoot,
		PathTransformFunc: storage.FlatPathTransformFunc,
	})
	if err != nil {
		return nil, err
	}

	return &FileServer{
		FileServerOpts: opts,
		store:          store,
		handshake:      transport.FileHandshakeFunc(store.Has, store.HasFile),
		Metrics:        NewMetrics(),
		quitCh:         make(chan struct{}),
	}, nil
}
