// Package stream provides Stream, an exclusively owned byte stream over an
// open I/O handle.
//
// A Stream freezes three capability flags when it is created: readable and
// writable are derived from the handle's open mode, seekable from the handle
// itself. Every operation checks the matching flag before it touches the
// handle, so a write on a read-only stream fails without any I/O.
//
// Operations are dispatched to one of two backends chosen once from the
// handle's Kind: the plain backend uses the file directly, the compressed
// backend reads and writes gzip data.
//
// # States
//
// A Stream starts attached to its handle. Detach releases the handle to the
// caller without closing it; Close closes it. Both leave the Stream detached:
// all flags are false and every operation fails with ErrDetached. A Stream
// that becomes unreachable while still attached closes its handle.
//
// Streams are not safe for concurrent use, with one exception: String
// serializes with other String calls, so values sharing a body can render
// it from several goroutines.
package stream

import (
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shapestone/shape-message/pkg/failure"
	"go.uber.org/zap"
)

var (
	// ErrDetached is returned by operations on a detached or closed Stream.
	ErrDetached = errors.New("stream: detached")
	// ErrNotReadable is returned when reading from a write-only Stream.
	ErrNotReadable = errors.New("stream: not readable")
	// ErrNotWritable is returned when writing to a read-only Stream.
	ErrNotWritable = errors.New("stream: not writable")
	// ErrNotSeekable is returned when seeking a non-seekable Stream.
	ErrNotSeekable = errors.New("stream: not seekable")
)

var readableModes = lo.SliceToMap([]string{
	"r", "w+", "r+", "x+", "c+", "a+",
	"rb", "w+b", "r+b", "x+b", "c+b", "a+b",
	"rt", "w+t", "r+t", "x+t", "c+t", "a+t",
}, func(m string) (string, bool) { return m, true })

var writableModes = lo.SliceToMap([]string{
	"w", "w+", "rw", "r+", "x+", "c+", "a", "a+", "x", "c",
	"wb", "w+b", "r+b", "x+b", "c+b", "ab", "a+b", "xb", "cb",
	"wt", "w+t", "r+t", "x+t", "c+t", "at", "a+t", "xt", "ct",
}, func(m string) (string, bool) { return m, true })

func isReadOnlyMode(mode string) bool {
	return readableModes[mode] && !writableModes[mode]
}

// binding is the ownership record of a handle. It is shared with the
// cleanup registered for the Stream, so it must not point back to it.
type binding struct {
	handle   *Handle
	backend  backend
	released bool
	logger   *zap.Logger
}

func (b *binding) release() {
	if b.released {
		return
	}
	b.released = true
	if err := b.backend.close(); err != nil {
		b.logger.Debug("closing unreachable stream handle", zap.String("uri", b.handle.uri), zap.Error(err))
	}
}

// Stream is a byte stream over exactly one handle.
type Stream struct {
	mu       sync.Mutex // held by String
	bound    *binding
	cleanup  runtime.Cleanup
	size     int64
	hasSize  bool
	readable bool
	writable bool
	seekable bool
	uri      string
	meta     map[string]any
	logger   *zap.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithMetadata adds custom metadata entries. They take precedence over the
// entries reported by the handle.
func WithMetadata(meta map[string]any) Option {
	return func(s *Stream) { s.meta = lo.Assign(s.meta, meta) }
}

// WithSize sets a known size, skipping the first stat.
func WithSize(size int64) Option {
	return func(s *Stream) { s.size, s.hasSize = size, true }
}

// WithLogger sets the logger for best-effort operations. The default
// discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// New binds a Stream to h. The Stream owns h from now on.
func New(h *Handle, opts ...Option) (*Stream, error) {
	if h == nil || h.file == nil {
		return nil, failure.InvalidArgument("stream: nil handle")
	}
	s := &Stream{
		readable: readableModes[h.mode],
		writable: writableModes[h.mode],
		seekable: h.seekable,
		uri:      h.uri,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bound = &binding{handle: h, backend: newBackend(h), logger: s.logger}
	s.cleanup = runtime.AddCleanup(s, (*binding).release, s.bound)
	return s, nil
}

// NewTemp returns a Stream over an empty in-memory handle.
func NewTemp(opts ...Option) *Stream {
	s, _ := New(Temp(), opts...)
	return s
}

// NewString returns a Stream over an in-memory copy of content, positioned
// at the start.
func NewString(content string, opts ...Option) *Stream {
	s, _ := New(Memory("w+b", []byte(content)), opts...)
	return s
}

func fail(sentinel error, op string) error {
	return failure.Kind(errors.Wrap(sentinel, op), failure.ErrOperation)
}

func ioFail(err error, op string) error {
	return failure.Kind(errors.Wrapf(err, "stream: %s", op), failure.ErrOperation)
}

// IsAttached reports whether the Stream still owns a handle.
func (s *Stream) IsAttached() bool { return s.bound != nil }

// IsReadable reports whether Read and Contents are allowed.
func (s *Stream) IsReadable() bool { return s.readable }

// IsWritable reports whether Write is allowed.
func (s *Stream) IsWritable() bool { return s.writable }

// IsSeekable reports whether Seek and Rewind are allowed.
func (s *Stream) IsSeekable() bool { return s.seekable }

// URI returns the location of the handle, or "" when detached.
func (s *Stream) URI() string { return s.uri }

// Kind reports the backend in use. A detached Stream reports KindPlain.
func (s *Stream) Kind() Kind {
	if s.bound == nil {
		return KindPlain
	}
	return s.bound.handle.kind
}

// Read reads up to length bytes. Fewer bytes are returned only at the end
// of the data. A zero length returns immediately without touching the
// handle; a negative length is an invalid argument.
func (s *Stream) Read(length int) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if length < 0 {
		return nil, failure.InvalidArgument("stream: negative read length %d", length)
	}
	if s.bound == nil {
		return nil, fail(ErrDetached, "read")
	}
	if !s.readable {
		return nil, fail(ErrNotReadable, "read")
	}
	buf := make([]byte, length)
	n, err := s.bound.backend.read(buf)
	if err != nil {
		return nil, ioFail(err, "read")
	}
	return buf[:n], nil
}

// Write writes p and invalidates the cached size.
func (s *Stream) Write(p []byte) (int, error) {
	if s.bound == nil {
		return 0, fail(ErrDetached, "write")
	}
	if !s.writable {
		return 0, fail(ErrNotWritable, "write")
	}
	s.hasSize = false
	n, err := s.bound.backend.write(p)
	if err != nil {
		return n, ioFail(err, "write")
	}
	return n, nil
}

// WriteString writes str.
func (s *Stream) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Seek moves the position. whence is one of io.SeekStart, io.SeekCurrent,
// io.SeekEnd.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if s.bound == nil {
		return 0, fail(ErrDetached, "seek")
	}
	if !s.seekable {
		return 0, fail(ErrNotSeekable, "seek")
	}
	if whence != io.SeekStart && whence != io.SeekCurrent && whence != io.SeekEnd {
		return 0, failure.InvalidArgument("stream: invalid whence %d", whence)
	}
	pos, err := s.bound.backend.seek(offset, whence)
	if err != nil || pos == -1 {
		if err == nil {
			err = errors.New("seek failed")
		}
		return 0, ioFail(err, "seek")
	}
	return pos, nil
}

// Rewind seeks to the start.
func (s *Stream) Rewind() error {
	_, err := s.Seek(0, io.SeekStart)
	return err
}

// Tell returns the current position.
func (s *Stream) Tell() (int64, error) {
	if s.bound == nil {
		return 0, fail(ErrDetached, "tell")
	}
	pos, err := s.bound.backend.tell()
	if err != nil {
		return 0, ioFail(err, "tell")
	}
	return pos, nil
}

// EOF reports whether the end of the readable data was reached. A detached
// Stream is always at EOF.
func (s *Stream) EOF() bool {
	if s.bound == nil {
		return true
	}
	return s.bound.backend.eof()
}

// Size returns the size in bytes and whether it is known. Compressed
// streams never know their size.
func (s *Stream) Size() (int64, bool) {
	if s.hasSize {
		return s.size, true
	}
	if s.bound == nil {
		return 0, false
	}
	size, err := s.bound.backend.stat()
	if err != nil {
		return 0, false
	}
	s.size, s.hasSize = size, true
	return size, true
}

// Contents reads everything from the current position to the end.
func (s *Stream) Contents() (string, error) {
	if s.bound == nil {
		return "", fail(ErrDetached, "read contents")
	}
	if !s.readable {
		return "", fail(ErrNotReadable, "read contents")
	}
	var b strings.Builder
	buf := make([]byte, 8192)
	for {
		n, err := s.bound.backend.read(buf)
		if err != nil {
			return "", ioFail(err, "read contents")
		}
		b.Write(buf[:n])
		if n < len(buf) {
			return b.String(), nil
		}
	}
}

// String returns the whole content, rewinding first when possible. Any
// failure yields "".
func (s *Stream) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seekable {
		if err := s.Rewind(); err != nil {
			s.logger.Debug("stream to string: rewind", zap.String("uri", s.uri), zap.Error(err))
			return ""
		}
	}
	content, err := s.Contents()
	if err != nil {
		s.logger.Debug("stream to string: read", zap.String("uri", s.uri), zap.Error(err))
		return ""
	}
	return content
}

// Metadata returns the handle's metadata merged with custom metadata.
// A detached Stream returns only the custom entries.
func (s *Stream) Metadata() map[string]any {
	meta := map[string]any{}
	if s.bound != nil {
		h := s.bound.handle
		meta = map[string]any{
			"mode":         h.mode,
			"seekable":     h.seekable,
			"uri":          h.uri,
			"stream_type":  h.streamType,
			"wrapper_type": h.wrapper,
			"eof":          s.bound.backend.eof(),
		}
	}
	return lo.Assign(meta, s.meta)
}

// MetadataValue returns a single metadata entry. Nothing is returned for a
// detached Stream.
func (s *Stream) MetadataValue(key string) (any, bool) {
	if s.bound == nil {
		return nil, false
	}
	v, ok := s.Metadata()[key]
	return v, ok
}

// Detach releases the handle to the caller without closing it and leaves
// the Stream detached. A second call returns nil.
func (s *Stream) Detach() *Handle {
	if s.bound == nil {
		return nil
	}
	h := s.bound.handle
	s.cleanup.Stop()
	s.bound.released = true
	s.bound = nil
	s.readable, s.writable, s.seekable = false, false, false
	s.hasSize, s.size = false, 0
	s.uri = ""
	return h
}

// Close closes the handle through its backend and detaches. Closing a
// detached Stream is a no-op.
func (s *Stream) Close() error {
	if s.bound == nil {
		return nil
	}
	b := s.bound.backend
	s.Detach()
	if err := b.close(); err != nil {
		return ioFail(err, "close")
	}
	return nil
}
