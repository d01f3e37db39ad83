package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/roylic/go-image-transfer/client"
	"github.com/roylic/go-image-transfer/transport"
)

const usage = "usage: client [flags] <host> <port> <put|get|list> [filename]"

// command validated command line
type command struct {
	addr string
	op   transport.Op
	path string
}

func main() {
	dir := flag.String("dir", ".", "Local directory GET writes into")
	timeout := flag.Duration("timeout", 30*time.Second, "Dial timeout and idle deadline, 0 disables it")
	allowRemote := flag.Bool("allow-remote", false, "Allow hosts other than localhost / 127.0.0.1")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(0)

	cmd, err := parseArgs(flag.Args(), *allowRemote)
	if err != nil {
		log.Printf("→ %v", err)
		flag.Usage()
		os.Exit(2)
	}

	opts := client.Opts{
		Addr:    cmd.addr,
		Dir:     *dir,
		Timeout: *timeout,
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		opts.Progress = printProgress
	}
	cli, err := client.New(opts)
	if err != nil {
		log.Fatalf("→ %v", err)
	}

	if err := run(cli, cmd); err != nil {
		os.Exit(1)
	}
}

func run(cli *client.Client, cmd command) error {
	switch cmd.op {
	case transport.OpList:
		entries, err := cli.List()
		if err != nil {
			log.Printf("→ %s LIST -> failure (%v)", cli.Addr, err)
			return err
		}
		log.Printf("→ %s LIST -> success (%d items)", cli.Addr, len(entries))
		for _, e := range entries {
			fmt.Printf(" - %s\n", e)
		}
		return nil

	case transport.OpPut:
		n, err := cli.Put(cmd.path)
		return report(cli.Addr, cmd, n, err)

	case transport.OpGet:
		n, err := cli.Get(cmd.path)
		return report(cli.Addr, cmd, n, err)
	}
	return fmt.Errorf("%w: %s", transport.ErrUnknownOperation, cmd.op)
}

func report(addr string, cmd command, n uint64, err error) error {
	name := client.RemoteName(cmd.path)
	if err == nil {
		log.Printf("→ %s %s %s -> success (%d bytes)", addr, cmd.op, name, n)
		return nil
	}

	reason := err.Error()
	switch {
	case errors.Is(err, transport.ErrHandshakeRejected):
		reason = "server rejected the request (invalid type or file state issue)"
	case errors.Is(err, transport.ErrTruncatedTransfer):
		reason = fmt.Sprintf("connection closed mid-transfer after %d bytes", n)
	}
	log.Printf("→ %s %s %s -> failure (%s)", addr, cmd.op, name, reason)
	return err
}

// parseArgs checks host, port and argument count before any connection
// is opened
func parseArgs(args []string, allowRemote bool) (command, error) {
	if len(args) < 3 {
		return command{}, errors.New("missing arguments")
	}

	host := args[0]
	if !allowRemote {
		if host != "localhost" && host != "127.0.0.1" {
			return command{}, fmt.Errorf(`please try "localhost" or "127.0.0.1", got %q`, host)
		}
		host = "127.0.0.1"
	}

	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 65535 {
		return command{}, fmt.Errorf("<port> must be a number between 1 and 65535, got %q", args[1])
	}

	cmd := command{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		op:   transport.Op(strings.ToUpper(args[2])),
	}
	switch cmd.op {
	case transport.OpList:
		if len(args) != 3 {
			return command{}, errors.New("LIST takes no filename")
		}
	case transport.OpPut, transport.OpGet:
		if len(args) != 4 {
			return command{}, fmt.Errorf("%s needs exactly one filename", cmd.op)
		}
		cmd.path = args[3]
		if err := transport.CheckFilename(client.RemoteName(cmd.path)); err != nil {
			return command{}, err
		}
	default:
		return command{}, fmt.Errorf("%w: %q", transport.ErrUnknownOperation, args[2])
	}
	return cmd, nil
}

func printProgress(op transport.Op, name string, done, total uint64) {
	pct := 100.0
	if total > 0 {
		pct = float64(done) * 100 / float64(total)
	}
	fmt.Fprintf(os.Stderr, "\r%s %s %d/%d bytes (%.0f%%)", op, name, done, total, pct)
	if done >= total {
		fmt.Fprintln(os.Stderr)
	}
}
