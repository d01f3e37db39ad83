package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/roylic/go-image-transfer/server"
	"github.com/roylic/go-image-transfer/transport"
)

const maxChunkSize = 1 << 20

func main() {
	addr := flag.String("addr", "127.0.0.1:3999", "TCP address to listen on")
	root := flag.String("root", "./storage", "Directory files are stored in and listed from")
	chunk := flag.Int("chunk", transport.DefaultChunkSize, "Read size while streaming a payload")
	timeout := flag.Duration("timeout", 30*time.Second, "Idle deadline per connection, 0 disables it")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus metrics, empty disables it")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [port]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	listenAddr, err := listenAddress(*addr, flag.Args())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if *chunk <= 0 || *chunk > maxChunkSize {
		log.Fatalf("Error: chunk size must be between 1 and %d", maxChunkSize)
	}

	// 1. tcp options
	tcpOpts := transport.TCPTransportOpt{
		ListenAddr: listenAddr,
		Timeout:    *timeout,
	}
	tr := transport.NewTCPTransport(tcpOpts)

	// 2. file server options
	fileServerOpts := server.FileServerOpts{
		StorageRoot: *root,
		ChunkSize:   *chunk,
		Transport:   tr,
	}

	// 3. construct server
	s, err := server.NewFileServer(fileServerOpts)
	if err != nil {
		log.Fatal(err)
	}
	tr.OnConn = s.HandleConn

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", s.Metrics.Handler())
			log.Printf("metrics endpoint listening on %s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Fatalf("metrics HTTP server failed: %v", err)
			}
		}()
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		s.Stop()
	}()

	// start the server
	if err := s.Start(); err != nil {
		log.Fatal(err)
	}
}

// listenAddress lets a lone positional port override the host:port flag
func listenAddress(addr string, args []string) (string, error) {
	switch len(args) {
	case 0:
		return addr, nil
	case 1:
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 0 || port > 65535 {
			return "", fmt.Errorf("port %q must be a number between 0 and 65535", args[0])
		}
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return "", err
		}
		return net.JoinHostPort(host, strconv.Itoa(port)), nil
	}
	return "", fmt.Errorf("expected at most one positional argument, got %d", len(args))
}
