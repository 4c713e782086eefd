package p9

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"linestatus/internal/element"
	"linestatus/internal/history"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu        sync.Mutex
	snaps     []element.Snapshot
	submitted []string
}

func (f *fakeSource) Snapshots() []element.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]element.Snapshot(nil), f.snaps...)
}

func (f *fakeSource) Lookup(name string) (element.Snapshot, bool) {
	for _, s := range f.Snapshots() {
		if s.Name == name {
			return s, true
		}
	}
	return element.Snapshot{}, false
}

func (f *fakeSource) Submit(raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, string(raw))
	return nil
}

func newSource() *fakeSource {
	return &fakeSource{snaps: []element.Snapshot{
		{Name: "volume", Value: 0.75, Orientation: element.Vertical, Anchor: element.DefaultAnchor(element.Vertical), Color: element.Orange},
		{Name: "brightness", Value: 0.2, Orientation: element.Horizontal, Anchor: element.Anchor{Edge: element.EdgeOffset, X: 3, Y: 4}, Color: element.Sky},
	}}
}

// session drives a Server through handle without a socket.
type session struct {
	t    *testing.T
	s    *Server
	cs   *connState
	next uint32
}

func newSession(t *testing.T, s *Server) *session {
	ss := &session{t: t, s: s, cs: &connState{fids: make(map[uint32]*fid)}, next: 1}
	r := s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tattach, Fid: 0})
	require.Equal(t, uint8(plan9.Rattach), r.Type)
	return ss
}

func (ss *session) walk(names ...string) (uint32, *plan9.Fcall) {
	id := ss.next
	ss.next++
	r := ss.s.handle(ss.cs, &plan9.Fcall{Type: plan9.Twalk, Fid: 0, Newfid: id, Wname: names})
	return id, r
}

func (ss *session) readFile(name string) string {
	ss.t.Helper()
	id, r := ss.walk(strings.Split(name, "/")...)
	require.Equal(ss.t, uint8(plan9.Rwalk), r.Type, r.Ename)
	ss.s.handle(ss.cs, &plan9.Fcall{Type: plan9.Topen, Fid: id, Mode: plan9.OREAD})
	r = ss.s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tread, Fid: id, Count: 8192})
	require.Equal(ss.t, uint8(plan9.Rread), r.Type, r.Ename)
	return string(r.Data)
}

func (ss *session) writeFile(name, data string) *plan9.Fcall {
	ss.t.Helper()
	id, r := ss.walk(strings.Split(name, "/")...)
	require.Equal(ss.t, uint8(plan9.Rwalk), r.Type, r.Ename)
	ss.s.handle(ss.cs, &plan9.Fcall{Type: plan9.Topen, Fid: id, Mode: plan9.OWRITE})
	return ss.s.handle(ss.cs, &plan9.Fcall{Type: plan9.Twrite, Fid: id, Data: []byte(data)})
}

func newServer(src Source, hist *history.Log) *Server {
	return &Server{src: src, hist: hist, log: nopLogger, done: make(chan struct{})}
}

func TestList(t *testing.T) {
	ss := newSession(t, newServer(newSource(), nil))
	assert.Equal(t, "volume\t75\tvertical\tFFA500\nbrightness\t20\thorizontal\t00CCFF\n", ss.readFile("list"))
}

func TestElementFiles(t *testing.T) {
	ss := newSession(t, newServer(newSource(), nil))
	assert.Equal(t, "75\n", ss.readFile("volume/value"))
	assert.Equal(t, "vertical\n", ss.readFile("volume/orientation"))
	assert.Equal(t, "00CCFF\n", ss.readFile("brightness/color"))
	assert.Equal(t, "3,4\n", ss.readFile("brightness/anchor"))
	assert.Equal(t, "right\n", ss.readFile("volume/anchor"))
}

func TestWalkErrors(t *testing.T) {
	ss := newSession(t, newServer(newSource(), nil))

	_, r := ss.walk("mic")
	assert.Equal(t, uint8(plan9.Rerror), r.Type)

	_, r = ss.walk("volume", "pid")
	assert.Equal(t, uint8(plan9.Rerror), r.Type)

	_, r = ss.walk("volume", "value", "x")
	assert.Equal(t, uint8(plan9.Rerror), r.Type)
}

func TestReadDir(t *testing.T) {
	ss := newSession(t, newServer(newSource(), nil))
	r := ss.s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tread, Fid: 0, Count: 8192})
	require.Equal(t, uint8(plan9.Rread), r.Type)

	var names []string
	data := r.Data
	for len(data) > 0 {
		n := int(data[0]) | int(data[1])<<8
		d, err := plan9.UnmarshalDir(data[:n+2])
		require.NoError(t, err)
		names = append(names, d.Name)
		data = data[n+2:]
	}
	assert.Equal(t, []string{"ctl", "list", "events", "volume", "brightness"}, names)
}

func TestWrite(t *testing.T) {
	src := newSource()
	ss := newSession(t, newServer(src, nil))

	r := ss.writeFile("ctl", "40\n")
	assert.Equal(t, uint8(plan9.Rwrite), r.Type, r.Ename)
	assert.EqualValues(t, 3, r.Count)

	r = ss.writeFile("brightness/value", "90\n")
	assert.Equal(t, uint8(plan9.Rwrite), r.Type, r.Ename)

	assert.Equal(t, []string{"40\n", "brightness:90"}, src.submitted)
}

func TestWrite_Rejected(t *testing.T) {
	src := newSource()
	ss := newSession(t, newServer(src, nil))

	tests := []struct {
		file, data, want string
	}{
		{"ctl", "xyz", "invalid value"},
		{"ctl", "volume:", "malformed command"},
		{"ctl", "mic:10", "unknown element"},
		{"ctl", strings.Repeat("1", 40), "malformed command"},
		{"volume/value", "101", "invalid value"},
		{"list", "1", "read-only"},
		{"volume/color", "000000", "read-only"},
	}
	for _, tt := range tests {
		t.Run(tt.file+" "+tt.data, func(t *testing.T) {
			r := ss.writeFile(tt.file, tt.data)
			require.Equal(t, uint8(plan9.Rerror), r.Type)
			assert.Contains(t, r.Ename, tt.want)
		})
	}
	assert.Empty(t, src.submitted)
}

func TestEvents(t *testing.T) {
	hist := history.New(0)
	hist.Append(`{"type":"ValueChanged"}`)
	s := newServer(newSource(), hist)
	ss := newSession(t, s)

	id, r := ss.walk("events")
	require.Equal(t, uint8(plan9.Rwalk), r.Type)
	r = s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tread, Fid: id, Count: 8192})
	assert.Equal(t, "{\"type\":\"ValueChanged\"}\n", string(r.Data))

	// a read at the end returns once the server closes
	got := make(chan *plan9.Fcall, 1)
	go func() {
		got <- s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tread, Fid: id, Offset: uint64(len(r.Data)), Count: 8192})
	}()
	close(s.done)
	assert.Empty(t, (<-got).Data)
}

func TestEvents_LaggingReaderAfterTrim(t *testing.T) {
	hist := history.New(100)
	for i := 0; i < 10; i++ {
		hist.Append(strings.Repeat(string(rune('a'+i)), 19))
	}
	s := newServer(newSource(), hist)
	ss := newSession(t, s)
	id, _ := ss.walk("events")

	// The client starts at 0 although 100 bytes were trimmed.
	r := s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tread, Fid: id, Offset: 0, Count: 8192})
	require.Equal(t, uint8(plan9.Rread), r.Type)
	assert.Equal(t, hist.Read(), string(r.Data))
	off := uint64(len(r.Data))

	hist.Append("next")
	r = s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tread, Fid: id, Offset: off, Count: 8192})
	assert.Equal(t, "next\n", string(r.Data))
	off += uint64(len(r.Data))

	got := make(chan *plan9.Fcall, 1)
	go func() {
		got <- s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tread, Fid: id, Offset: off, Count: 8192})
	}()
	close(s.done)
	assert.Empty(t, (<-got).Data)
}

func TestEvents_ConcurrentReadersWake(t *testing.T) {
	hist := history.New(0)
	s := newServer(newSource(), hist)

	const readers = 2
	got := make(chan string, readers)
	for i := 0; i < readers; i++ {
		ss := newSession(t, s)
		id, _ := ss.walk("events")
		go func() {
			r := s.handle(ss.cs, &plan9.Fcall{Type: plan9.Tread, Fid: id, Count: 8192})
			got <- string(r.Data)
		}()
	}

	// One append has to release every reader, blocked or not yet.
	time.Sleep(20 * time.Millisecond)
	hist.Append(`{"type":"Shutdown"}`)
	for i := 0; i < readers; i++ {
		select {
		case d := <-got:
			assert.Equal(t, "{\"type\":\"Shutdown\"}\n", d)
		case <-time.After(time.Second):
			t.Fatal("reader still blocked after append")
		}
	}
	close(s.done)
}

func TestSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "p9")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, ServiceName("volume"))

	src := newSource()
	s, err := Listen(path, src, history.New(0), nil)
	require.NoError(t, err)

	_, err = Listen(path, src, nil, nil)
	assert.Error(t, err)

	conn, err := client.Dial("unix", path)
	require.NoError(t, err)
	fsys, err := conn.Attach(nil, "test", "")
	require.NoError(t, err)

	fid, err := fsys.Open("volume/value", plan9.OREAD)
	require.NoError(t, err)
	data, err := io.ReadAll(fid)
	require.NoError(t, err)
	assert.Equal(t, "75\n", string(data))
	fid.Close()

	fid, err = fsys.Open("ctl", plan9.OWRITE)
	require.NoError(t, err)
	_, err = fid.Write([]byte("volume:5"))
	require.NoError(t, err)
	fid.Close()
	conn.Close()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{"volume:5"}, src.submitted)
}

var nopLogger = zap.NewNop()
