package stream

import (
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-message/pkg/failure"
)

// Kind tags a handle with the backend a Stream dispatches its operations to.
type Kind int

const (
	// KindPlain handles are read and written as-is.
	KindPlain Kind = iota
	// KindCompressed handles hold gzip data; reads decompress and writes
	// compress.
	KindCompressed
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// File is the I/O surface a Handle wraps. *os.File implements it.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// statFile is implemented by files that can report their size.
type statFile interface {
	Stat() (fs.FileInfo, error)
}

// Handle is an open byte-oriented resource together with the mode it was
// opened with. A Handle is owned by at most one Stream.
type Handle struct {
	file       File
	mode       string
	uri        string
	kind       Kind
	seekable   bool
	streamType string
	wrapper    string
}

// File returns the underlying file.
func (h *Handle) File() File { return h.file }

// Mode returns the fopen-style open mode, e.g. "r", "w+b".
func (h *Handle) Mode() string { return h.mode }

// URI returns the location the handle was opened from, or "".
func (h *Handle) URI() string { return h.uri }

// Kind reports the backend the handle requires.
func (h *Handle) Kind() Kind { return h.kind }

// Seekable reports whether the handle supports random access.
func (h *Handle) Seekable() bool { return h.seekable }

// openFlags translates an fopen-style mode into os.OpenFile flags.
func openFlags(mode string) (int, error) {
	m := strings.NewReplacer("b", "", "t", "").Replace(mode)
	plus := strings.HasSuffix(m, "+")
	m = strings.TrimSuffix(m, "+")

	var flags int
	switch m {
	case "r":
		flags = os.O_RDONLY
		if plus {
			flags = os.O_RDWR
		}
		return flags, nil
	case "w":
		flags = os.O_CREATE | os.O_TRUNC
	case "a":
		flags = os.O_CREATE | os.O_APPEND
	case "x":
		flags = os.O_CREATE | os.O_EXCL
	case "c":
		flags = os.O_CREATE
	default:
		return 0, failure.InvalidArgument("stream: invalid open mode %q", mode)
	}
	if plus {
		return flags | os.O_RDWR, nil
	}
	return flags | os.O_WRONLY, nil
}

// Open opens the file at path with an fopen-style mode ("r", "r+", "w",
// "w+", "a", "a+", "x", "x+", "c", "c+", optionally with "b" or "t").
func Open(path, mode string) (*Handle, error) {
	flags, err := openFlags(mode)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, failure.Kind(errors.Wrapf(err, "stream: open %s", path), failure.ErrOperation)
	}
	h := FromFile(f, mode)
	h.uri = path
	return h, nil
}

// OpenCompressed opens a gzip file at path. Compressed handles are either
// read-only ("r") or write-only ("w", "a", "x", "c").
func OpenCompressed(path, mode string) (*Handle, error) {
	if strings.Contains(mode, "+") {
		return nil, failure.InvalidArgument("stream: compressed streams cannot be opened with %q", mode)
	}
	flags, err := openFlags(mode)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, failure.Kind(errors.Wrapf(err, "stream: open %s", path), failure.ErrOperation)
	}
	return &Handle{
		file:       f,
		mode:       mode,
		uri:        "compress.zlib://" + path,
		kind:       KindCompressed,
		seekable:   true,
		streamType: "ZLIB",
		wrapper:    "ZLIB",
	}, nil
}

// FromFile wraps an already open file. The mode must describe how f was
// opened; it decides whether the Stream may read and write it.
func FromFile(f File, mode string) *Handle {
	h := &Handle{
		file:       f,
		mode:       mode,
		kind:       KindPlain,
		streamType: "STDIO",
		wrapper:    "plainfile",
	}
	if named, ok := f.(interface{ Name() string }); ok {
		h.uri = named.Name()
	}
	if _, err := f.Seek(0, io.SeekCurrent); err == nil {
		h.seekable = true
	}
	return h
}

// Memory returns a handle over an in-memory buffer holding a copy of data.
// The position starts at 0.
func Memory(mode string, data []byte) *Handle {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Handle{
		file:       &memFile{data: buf},
		mode:       mode,
		uri:        "memory://",
		kind:       KindPlain,
		seekable:   true,
		streamType: "MEMORY",
		wrapper:    "memory",
	}
}

// Temp returns an empty readable, writable and seekable in-memory handle.
func Temp() *Handle {
	h := Memory("w+b", nil)
	h.uri = "temp://"
	h.streamType = "TEMP"
	return h
}
