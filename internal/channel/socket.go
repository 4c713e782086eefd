package channel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"linestatus/internal/command"
	"linestatus/internal/fault"
)

const (
	// Backlog is the listen(2) backlog of the update socket.
	Backlog = 5
	// MaxAcceptsPerPoll caps how many pending connections one Poll drains.
	MaxAcceptsPerPoll = Backlog
	// SocketMode lets any local process send updates. There is no
	// authentication: anyone who can reach the path can change the overlay.
	SocketMode = 0o666
)

// Socket is the Unix domain socket transport. Each client connects, writes
// one command of at most command.MaxLen bytes and disconnects.
type Socket struct {
	fd          int
	path        string
	readTimeout time.Duration
	log         *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Listen creates, binds and listens on a socket at path. Any failure wraps
// fault.ErrTransportUnavailable.
func Listen(path string, readTimeout time.Duration, log *zap.Logger) (*Socket, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	if err := removeStale(path); err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %v: %w", err, fault.ErrTransportUnavailable)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %v: %w", path, err, fault.ErrTransportUnavailable)
	}
	if err := unix.Listen(fd, Backlog); err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, fmt.Errorf("listen %s: %v: %w", path, err, fault.ErrTransportUnavailable)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, fmt.Errorf("nonblock %s: %v: %w", path, err, fault.ErrTransportUnavailable)
	}
	if err := os.Chmod(path, SocketMode); err != nil {
		log.Warn("chmod socket", zap.String("path", path), zap.Error(err))
	}

	return &Socket{fd: fd, path: path, readTimeout: readTimeout, log: log}, nil
}

// removeStale deletes a leftover socket file. If something still answers on
// it, another instance owns the path and the transport is unavailable.
func removeStale(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, 100*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("%s is served by another instance: %w", path, fault.ErrTransportUnavailable)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale %s: %v: %w", path, err, fault.ErrTransportUnavailable)
	}
	return nil
}

// Mode implements Transport.
func (s *Socket) Mode() Mode { return ModeSocket }

// Addr returns the socket path.
func (s *Socket) Addr() string { return s.path }

// Poll accepts pending connections, reads one command from each and closes
// them. A failed accept or read is dropped; the next Poll simply checks again.
func (s *Socket) Poll() ([][]byte, error) {
	if s.closed.Load() {
		return nil, nil
	}

	var out [][]byte
	for i := 0; i < MaxAcceptsPerPoll; i++ {
		ready, err := readable(s.fd)
		if err != nil {
			return out, fmt.Errorf("poll %s: %w", s.path, err)
		}
		if !ready {
			break
		}
		nfd, _, err := unix.Accept4(s.fd, unix.SOCK_CLOEXEC)
		if errors.Is(err, unix.EAGAIN) {
			break
		}
		if err != nil {
			s.log.Debug("accept failed", zap.Error(err))
			continue
		}
		buf, err := s.readOne(nfd)
		if err != nil {
			s.log.Debug("dropped connection", zap.Error(err))
			continue
		}
		if len(buf) > 0 {
			out = append(out, buf)
		}
	}
	return out, nil
}

// readOne does the single bounded read on an accepted connection and closes it.
func (s *Socket) readOne(nfd int) ([]byte, error) {
	defer unix.Close(nfd)

	tv := unix.NsecToTimeval(s.readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(nfd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	buf := make([]byte, command.BufferSize)
	n, err := unix.Read(nfd, buf[:command.MaxLen])
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return buf[:n], nil
}

// Close closes the listening descriptor and removes the socket path. Only
// the first call does any work; later calls return the first result.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var errs []error
		if err := unix.Close(s.fd); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %v: %w", s.path, err, fault.ErrResourceCleanup))
		}
		switch err := os.Remove(s.path); {
		case err == nil:
			s.log.Info("removed socket", zap.String("path", s.path))
		case !os.IsNotExist(err):
			errs = append(errs, fmt.Errorf("unlink %s: %v: %w", s.path, err, fault.ErrResourceCleanup))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
