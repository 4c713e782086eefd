// Package command decodes update commands received over the update channel.
//
// Wire format (one command per connection or per stdin line, at most MaxLen
// bytes):
//
//	N        set the default element to N percent, 0 <= N <= 100
//	key:N    set the element named key to N percent
//
// Anything else is rejected. No reply is sent either way.
package command

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"linestatus/internal/fault"
)

const (
	// BufferSize is the size of a receive buffer including its terminator.
	BufferSize = 32
	// MaxLen is the longest command payload; extra bytes are discarded.
	MaxLen = BufferSize - 1
)

// Command is a decoded update.
type Command struct {
	// Key is the addressed element name; empty when Default is set.
	Key     string
	Default bool
	Percent int
}

// Fraction returns Percent scaled to [0, 1].
func (c Command) Fraction() float64 {
	return float64(c.Percent) / 100
}

func (c Command) String() string {
	if c.Default {
		return strconv.Itoa(c.Percent)
	}
	return c.Key + ":" + strconv.Itoa(c.Percent)
}

// Parse decodes buf. Input past MaxLen bytes or after the first NUL byte is
// ignored.
func Parse(buf []byte) (Command, error) {
	if len(buf) > MaxLen {
		buf = buf[:MaxLen]
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}

	s := strings.TrimSpace(string(buf))
	if s == "" {
		return Command{}, fmt.Errorf("empty command: %w", fault.ErrMalformedCommand)
	}

	key, value, keyed := strings.Cut(s, ":")
	if !keyed {
		pct, err := parsePercent(s)
		if err != nil {
			return Command{}, err
		}
		return Command{Default: true, Percent: pct}, nil
	}

	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return Command{}, fmt.Errorf("command %q has no key: %w", s, fault.ErrMalformedCommand)
	}
	if value == "" {
		return Command{}, fmt.Errorf("command %q has no value: %w", s, fault.ErrMalformedCommand)
	}
	pct, err := parsePercent(value)
	if err != nil {
		return Command{}, fmt.Errorf("key %q: %w", key, err)
	}
	return Command{Key: key, Percent: pct}, nil
}

func parsePercent(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer: %w", s, fault.ErrInvalidValue)
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("%d is outside 0-100: %w", n, fault.ErrInvalidValue)
	}
	return n, nil
}
