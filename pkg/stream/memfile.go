package stream

import (
	"io"
	"io/fs"
	"time"

	"github.com/cockroachdb/errors"
)

// memFile is a growable in-memory File.
type memFile struct {
	data   []byte
	pos    int64
	closed bool
}

var errMemClosed = errors.New("memory file already closed")

func (m *memFile) Read(p []byte) (int, error) {
	if m.closed {
		return 0, errMemClosed
	}
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memFile) Write(p []byte) (int, error) {
	if m.closed {
		return 0, errMemClosed
	}
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		if end > int64(cap(m.data)) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:end]
		}
	}
	copy(m.data[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	if m.closed {
		return 0, errMemClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.data)) + offset
	default:
		return 0, errors.Newf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.Newf("negative position %d", abs)
	}
	m.pos = abs
	return abs, nil
}

func (m *memFile) Close() error {
	if m.closed {
		return errMemClosed
	}
	m.closed = true
	m.data = nil
	return nil
}

func (m *memFile) Stat() (fs.FileInfo, error) {
	if m.closed {
		return nil, errMemClosed
	}
	return memInfo{size: int64(len(m.data))}, nil
}

type memInfo struct{ size int64 }

func (i memInfo) Name() string       { return "memory" }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o600 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }
