package channel

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"linestatus/internal/command"
)

const stdinChunk = 512

// Stdin is the fallback transport: one command per line on a file
// descriptor, normally standard input. Lines longer than command.MaxLen are
// split, the way a fixed 32-byte line buffer would split them.
type Stdin struct {
	fd      int
	name    string
	pending []byte
	eof     bool
	log     *zap.Logger
}

// NewStdin wraps f. The descriptor is never closed by the transport.
func NewStdin(f *os.File, log *zap.Logger) *Stdin {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stdin{fd: int(f.Fd()), name: f.Name(), log: log}
}

// Mode implements Transport.
func (s *Stdin) Mode() Mode { return ModeStdin }

// Addr returns the name of the underlying file.
func (s *Stdin) Addr() string { return s.name }

// Poll reads whatever is available and returns complete lines. After EOF the
// final partial line is returned once and Poll goes quiet.
func (s *Stdin) Poll() ([][]byte, error) {
	if s.eof {
		return nil, nil
	}

	ready, err := readable(s.fd)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", s.name, err)
	}
	if !ready {
		return nil, nil
	}

	chunk := make([]byte, stdinChunk)
	n, err := unix.Read(s.fd, chunk)
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", s.name, err)
	case n == 0:
		s.eof = true
		s.log.Info("end of input", zap.String("source", s.name))
	default:
		s.pending = append(s.pending, chunk[:n]...)
	}
	return s.lines(), nil
}

func (s *Stdin) lines() [][]byte {
	var out [][]byte
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i >= 0 && i < command.MaxLen {
			out = append(out, bytes.Clone(s.pending[:i+1]))
			s.pending = s.pending[i+1:]
			continue
		}
		if len(s.pending) >= command.MaxLen {
			out = append(out, bytes.Clone(s.pending[:command.MaxLen]))
			s.pending = s.pending[command.MaxLen:]
			continue
		}
		break
	}
	if s.eof && len(s.pending) > 0 {
		out = append(out, bytes.Clone(s.pending))
		s.pending = nil
	}
	return out
}

// Close implements Transport. Standard input holds no resource of ours.
func (s *Stdin) Close() error {
	return nil
}
