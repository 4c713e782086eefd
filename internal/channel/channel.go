// Package channel receives raw update commands from other processes.
//
// Two transports exist: a Unix domain socket (preferred) and standard input
// (fallback). Exactly one is chosen by Open at startup. Both are polled: Poll
// never blocks, so it can run on the same loop that draws the overlay.
package channel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// AppName prefixes socket file names.
const AppName = "linestatus"

// DefaultReadTimeout bounds the single read done on an accepted connection.
const DefaultReadTimeout = 50 * time.Millisecond

// Mode identifies the active transport.
type Mode int

const (
	ModeSocket Mode = iota
	ModeStdin
)

func (m Mode) String() string {
	if m == ModeStdin {
		return "stdin"
	}
	return "socket"
}

// Transport is a non-blocking source of raw commands.
type Transport interface {
	// Mode reports which transport this is.
	Mode() Mode
	// Addr describes where commands are read from.
	Addr() string
	// Poll returns the commands that arrived since the last call, in the
	// order they were received. It never blocks.
	Poll() ([][]byte, error)
	// Close releases the transport. It is safe to call more than once.
	Close() error
}

// Options configures Open.
type Options struct {
	// RuntimeDir is normally $XDG_RUNTIME_DIR. Empty selects stdin.
	RuntimeDir string
	// ChannelType separates concurrently running instances.
	ChannelType string
	// Stdin is the fallback source; os.Stdin when nil.
	Stdin *os.File
	// ReadTimeout bounds the read on an accepted connection.
	ReadTimeout time.Duration
	Logger      *zap.Logger
}

// SocketPath returns <runtimeDir>/linestatus-<channelType>.sock.
func SocketPath(runtimeDir, channelType string) string {
	return filepath.Join(runtimeDir, fmt.Sprintf("%s-%s.sock", AppName, channelType))
}

// Open selects the transport. A socket is tried first when RuntimeDir is set;
// if it cannot be created Open falls back to stdin once and for all.
func Open(opts Options) Transport {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("channel")

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	if opts.RuntimeDir == "" {
		log.Info("XDG_RUNTIME_DIR not set, using stdin")
		return NewStdin(stdin, log)
	}

	path := SocketPath(opts.RuntimeDir, opts.ChannelType)
	sock, err := Listen(path, opts.ReadTimeout, log)
	if err != nil {
		log.Warn("failed to create socket, falling back to stdin", zap.String("path", path), zap.Error(err))
		return NewStdin(stdin, log)
	}
	log.Info("socket created", zap.String("path", path))
	return sock
}

// readable does a zero-timeout readiness check on fd.
func readable(fd int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
	}
}
