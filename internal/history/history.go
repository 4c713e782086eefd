// Package history keeps a bounded in-memory log of engine events.
package history

import (
	"context"
	"strings"
	"sync"

	"linestatus/internal/eventbus"
)

const (
	defaultMaxSize = 256 * 1024 // 256KB
	trimPercent    = 25         // Remove 25% when limit reached
)

// Log is an append-only list of lines with a size cap. Offsets handed to
// ReadFrom are absolute and keep counting across trims.
type Log struct {
	entries    []string
	totalBytes int
	base       int64 // bytes trimmed so far
	maxSize    int
	mu         sync.RWMutex
	notifyCh   chan struct{}
}

// New creates a log capped at maxSize bytes; 0 selects the default.
func New(maxSize int) *Log {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Log{
		entries:  make([]string, 0, 256),
		maxSize:  maxSize,
		notifyCh: make(chan struct{}),
	}
}

// Append adds a line. A trailing newline is added when missing.
func (l *Log) Append(line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, line)
	l.totalBytes += len(line)
	if l.totalBytes > l.maxSize {
		l.trim()
	}

	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
}

// trim removes the oldest 25% of entries
func (l *Log) trim() {
	if len(l.entries) == 0 {
		return
	}

	removeCount := len(l.entries) * trimPercent / 100
	if removeCount == 0 {
		removeCount = 1
	}

	removedBytes := 0
	for _, e := range l.entries[:removeCount] {
		removedBytes += len(e)
	}

	l.entries = l.entries[removeCount:]
	l.totalBytes -= removedBytes
	l.base += int64(removedBytes)
}

// Read returns the retained log.
func (l *Log) Read() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return strings.Join(l.entries, "")
}

// ReadFrom returns content from an absolute byte offset. start is the offset
// the data actually begins at: it is greater than offset when the bytes in
// between were trimmed. The next read should ask for start+len(data).
func (l *Log) ReadFrom(offset int64) (data string, start int64, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start = max(offset, l.base)
	full := strings.Join(l.entries, "")
	rel := start - l.base
	if rel >= int64(len(full)) {
		return "", start, false
	}
	return full[rel:], start, true
}

// WaitForData returns a channel that is closed by the next Append. Every
// waiter holding it is woken.
func (l *Log) WaitForData() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.notifyCh
}

// Size returns the retained size in bytes.
func (l *Log) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalBytes
}

// Follow subscribes to bus before returning, so nothing published after the
// call is missed. The returned function appends events until ctx is done; run
// it on its own goroutine.
func (l *Log) Follow(bus *eventbus.Bus) func(ctx context.Context) {
	ch, cancel := bus.Subscribe()
	return func(ctx context.Context) {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				l.Append(string(eventbus.MarshalEvent(e)))
			}
		}
	}
}
