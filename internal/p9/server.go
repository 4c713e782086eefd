// Package p9 serves linestatus element state as a 9P filesystem.
package p9

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"
	"go.uber.org/zap"

	"linestatus/internal/command"
	"linestatus/internal/element"
	"linestatus/internal/fault"
	"linestatus/internal/history"
)

/*
Filesystem layout:

linestatus-<type>/
    ctl                 (write) an update command: "N" or "name:N"
    list                (read)  "name\tpercent\torientation\tcolor" per element
    events              (read)  JSON lines of engine events (blocks like tail -f)
    {name}/
        value           (r/w)   percent; writing N updates the element
        orientation     (read)  "vertical" or "horizontal"
        color           (read)  RRGGBB
        anchor          (read)  edge name or "X,Y"
*/

const (
	QTDir  = plan9.QTDIR
	QTFile = plan9.QTFILE
)

// Qid paths
const (
	qidRoot = iota
	qidCtl
	qidList
	qidEvents
	qidElementBase = 1000
)

// File indices within an element directory
const (
	fileValue = iota
	fileOrientation
	fileColor
	fileAnchor
	fileCount
)

var fileNames = []string{"value", "orientation", "color", "anchor"}

// Source is the engine as seen by the filesystem. All methods must be safe
// to call from any goroutine.
type Source interface {
	Snapshots() []element.Snapshot
	Lookup(name string) (element.Snapshot, bool)
	Submit(raw []byte) error
}

type Server struct {
	src        Source
	hist       *history.Log
	listener   net.Listener
	socketPath string
	log        *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	mu        sync.Mutex
	conns     map[net.Conn]struct{}
}

type connState struct {
	fids map[uint32]*fid
	mu   sync.RWMutex
}

type fid struct {
	qid  plan9.Qid
	path string
	mode uint8
	// skew maps client offsets on events to history offsets. It grows
	// when history trimmed bytes the client never saw.
	skew int64
}

// ServiceName returns the name the server is posted under in the namespace.
func ServiceName(channelType string) string {
	return "linestatus-" + channelType
}

// NewServer posts the filesystem in the current namespace directory.
func NewServer(src Source, hist *history.Log, channelType string, log *zap.Logger) (*Server, error) {
	ns := client.Namespace()
	if ns == "" {
		return nil, fmt.Errorf("no namespace")
	}
	if err := os.MkdirAll(ns, 0700); err != nil {
		return nil, err
	}
	return Listen(filepath.Join(ns, ServiceName(channelType)), src, hist, log)
}

// Listen serves the filesystem on a Unix socket at sockPath.
func Listen(sockPath string, src Source, hist *history.Log, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// Remove stale socket
	if _, err := os.Stat(sockPath); err == nil {
		conn, err := net.Dial("unix", sockPath)
		if err == nil {
			conn.Close()
			return nil, fmt.Errorf("%s already served: %w", sockPath, fault.ErrTransportUnavailable)
		}
		os.Remove(sockPath)
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, fault.ErrTransportUnavailable)
	}

	s := &Server{
		src:        src,
		hist:       hist,
		listener:   listener,
		socketPath: sockPath,
		log:        log.Named("9p"),
		done:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	s.log.Info("serving", zap.String("path", sockPath))
	return s, nil
}

// SocketPath returns the path to the Unix socket
func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn("accept", zap.Error(err))
			}
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	cs := &connState{fids: make(map[uint32]*fid)}

	for {
		fc, err := plan9.ReadFcall(conn)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("read", zap.Error(err))
			}
			return
		}

		rfc := s.handle(cs, fc)
		if err := plan9.WriteFcall(conn, rfc); err != nil {
			s.log.Debug("write", zap.Error(err))
			return
		}
	}
}

func (s *Server) handle(cs *connState, fc *plan9.Fcall) *plan9.Fcall {
	switch fc.Type {
	case plan9.Tversion:
		return &plan9.Fcall{Type: plan9.Rversion, Tag: fc.Tag, Msize: fc.Msize, Version: "9P2000"}
	case plan9.Tauth:
		return errFcall(fc, "no auth required")
	case plan9.Tattach:
		return s.attach(cs, fc)
	case plan9.Twalk:
		return s.walk(cs, fc)
	case plan9.Topen:
		return s.open(cs, fc)
	case plan9.Tread:
		return s.read(cs, fc)
	case plan9.Twrite:
		return s.write(cs, fc)
	case plan9.Tstat:
		return s.stat(cs, fc)
	case plan9.Tclunk:
		cs.mu.Lock()
		delete(cs.fids, fc.Fid)
		cs.mu.Unlock()
		return &plan9.Fcall{Type: plan9.Rclunk, Tag: fc.Tag}
	default:
		return errFcall(fc, "not supported")
	}
}

func (s *Server) attach(cs *connState, fc *plan9.Fcall) *plan9.Fcall {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	qid := plan9.Qid{Type: QTDir, Path: qidRoot}
	cs.fids[fc.Fid] = &fid{qid: qid, path: "/"}
	return &plan9.Fcall{Type: plan9.Rattach, Tag: fc.Tag, Qid: qid}
}

func (s *Server) walk(cs *connState, fc *plan9.Fcall) *plan9.Fcall {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	f, ok := cs.fids[fc.Fid]
	if !ok {
		return errFcall(fc, "bad fid")
	}

	if len(fc.Wname) == 0 {
		cs.fids[fc.Newfid] = &fid{qid: f.qid, path: f.path}
		return &plan9.Fcall{Type: plan9.Rwalk, Tag: fc.Tag, Wqid: []plan9.Qid{}}
	}

	path := f.path
	var qids []plan9.Qid

	for _, name := range fc.Wname {
		var qid plan9.Qid
		var newPath string

		switch {
		case name == "..":
			qid = plan9.Qid{Type: QTDir, Path: qidRoot}
			newPath = "/"
		case path == "/":
			switch name {
			case "ctl":
				qid = plan9.Qid{Type: QTFile, Path: qidCtl}
			case "list":
				qid = plan9.Qid{Type: QTFile, Path: qidList}
			case "events":
				qid = plan9.Qid{Type: QTFile, Path: qidEvents}
			default:
				if _, ok := s.src.Lookup(name); !ok {
					return errFcall(fc, "not found")
				}
				qid = plan9.Qid{Type: QTDir, Path: elementQid(name)}
			}
			newPath = "/" + name
		case strings.Count(path, "/") == 1:
			elem := strings.TrimPrefix(path, "/")
			if _, ok := s.src.Lookup(elem); !ok {
				return errFcall(fc, "element not found")
			}
			idx := fileIndex(name)
			if idx < 0 {
				return errFcall(fc, "not found")
			}
			qid = plan9.Qid{Type: QTFile, Path: elementQid(elem)*fileCount + uint64(idx)}
			newPath = path + "/" + name
		default:
			return errFcall(fc, "not found")
		}

		qids = append(qids, qid)
		path = newPath
	}

	cs.fids[fc.Newfid] = &fid{qid: qids[len(qids)-1], path: path}
	return &plan9.Fcall{Type: plan9.Rwalk, Tag: fc.Tag, Wqid: qids}
}

func (s *Server) open(cs *connState, fc *plan9.Fcall) *plan9.Fcall {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	f, ok := cs.fids[fc.Fid]
	if !ok {
		return errFcall(fc, "bad fid")
	}
	f.mode = fc.Mode
	return &plan9.Fcall{Type: plan9.Ropen, Tag: fc.Tag, Qid: f.qid}
}

func (s *Server) read(cs *connState, fc *plan9.Fcall) *plan9.Fcall {
	cs.mu.RLock()
	f, ok := cs.fids[fc.Fid]
	cs.mu.RUnlock()
	if !ok {
		return errFcall(fc, "bad fid")
	}

	var data []byte

	switch {
	case f.qid.Type&QTDir != 0:
		data = s.readDir(f.path, fc.Offset, fc.Count)
	case f.path == "/events":
		data = s.readEvents(cs, f, fc.Offset, fc.Count)
	default:
		content, err := s.readFile(f.path)
		if err != nil {
			return errFcall(fc, err.Error())
		}
		if fc.Offset < uint64(len(content)) {
			end := min(int(fc.Offset)+int(fc.Count), len(content))
			data = []byte(content[fc.Offset:end])
		}
	}

	return &plan9.Fcall{Type: plan9.Rread, Tag: fc.Tag, Count: uint32(len(data)), Data: data}
}

// readEvents streams the event history. A read at the end blocks until a new
// event arrives or the server is closed.
func (s *Server) readEvents(cs *connState, f *fid, offset uint64, count uint32) []byte {
	if s.hist == nil {
		return nil
	}
	for {
		waitCh := s.hist.WaitForData()
		cs.mu.Lock()
		want := int64(offset) + f.skew
		data, start, ok := s.hist.ReadFrom(want)
		f.skew += start - want
		cs.mu.Unlock()
		if ok && len(data) > 0 {
			end := min(int(count), len(data))
			return []byte(data[:end])
		}
		select {
		case <-waitCh:
		case <-s.done:
			return nil
		}
	}
}

func (s *Server) write(cs *connState, fc *plan9.Fcall) *plan9.Fcall {
	cs.mu.RLock()
	f, ok := cs.fids[fc.Fid]
	cs.mu.RUnlock()
	if !ok {
		return errFcall(fc, "bad fid")
	}

	var raw []byte
	switch {
	case f.path == "/ctl":
		raw = fc.Data
	case strings.HasSuffix(f.path, "/value") && strings.Count(f.path, "/") == 2:
		elem := strings.TrimPrefix(strings.TrimSuffix(f.path, "/value"), "/")
		raw = []byte(elem + ":" + strings.TrimSpace(string(fc.Data)))
	default:
		return errFcall(fc, "read-only")
	}

	if err := s.submit(raw); err != nil {
		return errFcall(fc, err.Error())
	}
	return &plan9.Fcall{Type: plan9.Rwrite, Tag: fc.Tag, Count: uint32(len(fc.Data))}
}

// submit checks raw before queueing it so the writer sees parse errors and
// unknown elements. The engine applies it on its next tick.
func (s *Server) submit(raw []byte) error {
	if len(raw) > command.MaxLen {
		return fmt.Errorf("command longer than %d bytes: %w", command.MaxLen, fault.ErrMalformedCommand)
	}
	cmd, err := command.Parse(raw)
	if err != nil {
		return err
	}
	if !cmd.Default {
		if _, ok := s.src.Lookup(cmd.Key); !ok {
			return fmt.Errorf("element %q: %w", cmd.Key, fault.ErrUnknownElement)
		}
	}
	s.log.Debug("submit", zap.String("command", cmd.String()))
	return s.src.Submit(raw)
}

func (s *Server) stat(cs *connState, fc *plan9.Fcall) *plan9.Fcall {
	cs.mu.RLock()
	f, ok := cs.fids[fc.Fid]
	cs.mu.RUnlock()
	if !ok {
		return errFcall(fc, "bad fid")
	}

	dir := s.pathToDir(f.path, f.qid)
	stat, _ := dir.Bytes()
	return &plan9.Fcall{Type: plan9.Rstat, Tag: fc.Tag, Stat: stat}
}

func (s *Server) readDir(path string, offset uint64, count uint32) []byte {
	var dirs []plan9.Dir
	if path == "/" {
		dirs = append(dirs,
			plan9.Dir{Qid: plan9.Qid{Type: QTFile, Path: qidCtl}, Mode: 0222, Name: "ctl"},
			plan9.Dir{Qid: plan9.Qid{Type: QTFile, Path: qidList}, Mode: 0444, Name: "list"},
			plan9.Dir{Qid: plan9.Qid{Type: QTFile, Path: qidEvents}, Mode: 0444, Name: "events"},
		)
		for _, snap := range s.src.Snapshots() {
			dirs = append(dirs, plan9.Dir{
				Qid:  plan9.Qid{Type: QTDir, Path: elementQid(snap.Name)},
				Mode: plan9.DMDIR | 0555, Name: snap.Name,
			})
		}
	} else {
		elem := strings.TrimPrefix(path, "/")
		for i, name := range fileNames {
			mode := uint32(0444)
			if i == fileValue {
				mode = 0666
			}
			dirs = append(dirs, plan9.Dir{
				Qid:  plan9.Qid{Type: QTFile, Path: elementQid(elem)*fileCount + uint64(i)},
				Mode: plan9.Perm(mode), Name: name,
			})
		}
	}

	var data []byte
	for _, d := range dirs {
		d.Uid, d.Gid, d.Muid = "linestatus", "linestatus", "linestatus"
		b, _ := d.Bytes()
		data = append(data, b...)
	}
	if offset >= uint64(len(data)) {
		return nil
	}
	end := min(int(offset)+int(count), len(data))
	return data[offset:end]
}

func (s *Server) readFile(path string) (string, error) {
	if path == "/list" {
		var b strings.Builder
		for _, snap := range s.src.Snapshots() {
			fmt.Fprintf(&b, "%s\t%d\t%s\t%s\n", snap.Name, snap.Percent(), snap.Orientation, snap.Color)
		}
		return b.String(), nil
	}

	elem, file, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok {
		return "", nil
	}
	snap, found := s.src.Lookup(elem)
	if !found {
		return "", fmt.Errorf("element not found")
	}
	switch fileIndex(file) {
	case fileValue:
		return fmt.Sprintf("%d\n", snap.Percent()), nil
	case fileOrientation:
		return snap.Orientation.String() + "\n", nil
	case fileColor:
		return snap.Color.String() + "\n", nil
	case fileAnchor:
		return snap.Anchor.String() + "\n", nil
	}
	return "", nil
}

func (s *Server) pathToDir(path string, qid plan9.Qid) plan9.Dir {
	name := filepath.Base(path)
	if path == "/" {
		name = "."
	}
	mode := uint32(0444)
	switch {
	case qid.Type&QTDir != 0:
		mode = plan9.DMDIR | 0555
	case path == "/ctl":
		mode = 0222
	case strings.HasSuffix(path, "/value"):
		mode = 0666
	}
	return plan9.Dir{Qid: qid, Mode: plan9.Perm(mode), Name: name, Uid: "linestatus", Gid: "linestatus", Muid: "linestatus"}
}

// Close stops accepting, drops open connections and removes the socket.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.listener.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) {
			err = errors.Join(err, fmt.Errorf("unlink %s: %v: %w", s.socketPath, rmErr, fault.ErrResourceCleanup))
		}
	})
	return err
}

func errFcall(fc *plan9.Fcall, msg string) *plan9.Fcall {
	return &plan9.Fcall{Type: plan9.Rerror, Tag: fc.Tag, Ename: msg}
}

func fileIndex(name string) int {
	for i, n := range fileNames {
		if n == name {
			return i
		}
	}
	return -1
}

func elementQid(name string) uint64 {
	return qidElementBase + hashID(name)
}

func hashID(id string) uint64 {
	var h uint64 = 5381
	for _, c := range id {
		h = ((h << 5) + h) + uint64(c)
	}
	return h
}
