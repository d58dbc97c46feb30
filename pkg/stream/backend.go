package stream

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
)

// backend is the per-variant implementation of every operation a Stream
// delegates to its handle.
type backend interface {
	read(p []byte) (int, error)
	write(p []byte) (int, error)
	seek(offset int64, whence int) (int64, error)
	tell() (int64, error)
	eof() bool
	stat() (int64, error)
	close() error
}

var errStatUnsupported = errors.New("size is not available for compressed streams")

func newBackend(h *Handle) backend {
	if h.kind == KindCompressed {
		return &compressedBackend{f: h.file, writing: !isReadOnlyMode(h.mode)}
	}
	return &plainBackend{f: h.file}
}

// plainBackend passes operations straight to the file.
type plainBackend struct {
	f     File
	atEOF bool
}

func (b *plainBackend) read(p []byte) (int, error) {
	n, err := io.ReadFull(b.f, p)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		b.atEOF = true
		return n, nil
	}
	return n, err
}

func (b *plainBackend) write(p []byte) (int, error) {
	return b.f.Write(p)
}

func (b *plainBackend) seek(offset int64, whence int) (int64, error) {
	pos, err := b.f.Seek(offset, whence)
	if err != nil {
		return -1, err
	}
	b.atEOF = false
	return pos, nil
}

func (b *plainBackend) tell() (int64, error) {
	return b.f.Seek(0, io.SeekCurrent)
}

func (b *plainBackend) eof() bool { return b.atEOF }

func (b *plainBackend) stat() (int64, error) {
	sf, ok := b.f.(statFile)
	if !ok {
		return 0, errors.New("file does not report its size")
	}
	fi, err := sf.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (b *plainBackend) close() error {
	return b.f.Close()
}

// compressedBackend reads and writes gzip data. Positions refer to the
// uncompressed data. Reading seeks forward by discarding and backward by
// restarting decompression; writing seeks forward only, filling with zeros.
type compressedBackend struct {
	f       File
	writing bool
	r       *gzip.Reader
	w       *gzip.Writer
	pos     int64
	atEOF   bool
}

func (b *compressedBackend) reader() (*gzip.Reader, error) {
	if b.r != nil {
		return b.r, nil
	}
	r, err := gzip.NewReader(b.f)
	if err != nil {
		return nil, err
	}
	b.r = r
	return r, nil
}

func (b *compressedBackend) writer() *gzip.Writer {
	if b.w == nil {
		b.w = gzip.NewWriter(b.f)
	}
	return b.w
}

func (b *compressedBackend) read(p []byte) (int, error) {
	if b.writing {
		return 0, errors.New("compressed stream is write-only")
	}
	if b.atEOF {
		return 0, nil
	}
	r, err := b.reader()
	if errors.Is(err, io.EOF) {
		b.atEOF = true
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := io.ReadFull(r, p)
	b.pos += int64(n)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		b.atEOF = true
		return n, nil
	}
	return n, err
}

func (b *compressedBackend) write(p []byte) (int, error) {
	if !b.writing {
		return 0, errors.New("compressed stream is read-only")
	}
	n, err := b.writer().Write(p)
	b.pos += int64(n)
	return n, err
}

func (b *compressedBackend) seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = b.pos + offset
	default:
		return -1, errors.New("compressed streams cannot seek relative to the end")
	}
	if target < 0 {
		return -1, errors.Newf("negative position %d", target)
	}

	if b.writing {
		if target < b.pos {
			return -1, errors.New("compressed streams cannot seek backwards while writing")
		}
		if _, err := b.write(make([]byte, target-b.pos)); err != nil {
			return -1, err
		}
		return b.pos, nil
	}

	if target < b.pos {
		if _, err := b.f.Seek(0, io.SeekStart); err != nil {
			return -1, err
		}
		b.r, b.pos, b.atEOF = nil, 0, false
	}
	if skip := target - b.pos; skip > 0 {
		r, err := b.reader()
		if err != nil && !errors.Is(err, io.EOF) {
			return -1, err
		}
		if r != nil {
			n, err := io.CopyN(io.Discard, r, skip)
			b.pos += n
			if err != nil && !errors.Is(err, io.EOF) {
				return -1, err
			}
		}
	}
	b.atEOF = false
	return b.pos, nil
}

func (b *compressedBackend) tell() (int64, error) { return b.pos, nil }

// eof reports the end of readable data; a write-only stream has none.
func (b *compressedBackend) eof() bool {
	return b.writing || b.atEOF
}

func (b *compressedBackend) stat() (int64, error) {
	return 0, errStatUnsupported
}

func (b *compressedBackend) close() error {
	var err error
	if b.writing {
		err = b.writer().Close()
	}
	if b.r != nil {
		err = errors.CombineErrors(err, b.r.Close())
	}
	return errors.CombineErrors(err, b.f.Close())
}
