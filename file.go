package filelib

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source is the capability interface the upload engine requires of any byte
// stream: seekable and readable, with an optional close. Implementations of
// os.File satisfy it directly; in-memory readers can be wrapped with
// NewStreamSource.
type Source interface {
	io.Reader
	io.Seeker
	io.Closer
}

type streamSource struct {
	io.ReadSeeker
}

func (s streamSource) Close() error {
	if c, ok := s.ReadSeeker.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewStreamSource adapts any io.ReadSeeker into a Source, closing it on
// Close only if it also implements io.Closer.
func NewStreamSource(rs io.ReadSeeker) Source {
	return streamSource{ReadSeeker: rs}
}

// FileDescriptor is a named, seekable, readable upload source (§3). For a
// path source the size is taken from the file's stat when it is opened; for
// a stream it is computed lazily by seeking to the end once and then cached.
type FileDescriptor struct {
	Name   string
	Stream Source

	size     int64
	sizeKnown bool
}

// ProcessFile implements §4.D: source is either a filesystem path (string)
// or an already-open Source. name, if empty, must be derivable from the
// source (its basename for a path).
func ProcessFile(name string, source any) (*FileDescriptor, error) {
	switch v := source.(type) {
	case string:
		return processPath(name, v)
	case Source:
		return processStream(name, v)
	case io.ReadSeeker:
		return processStream(name, NewStreamSource(v))
	default:
		return nil, fmt.Errorf("%w", ErrFileObjectNotReadable)
	}
}

func processPath(name, path string) (*FileDescriptor, error) {
	abs, err := expandAndAbs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileDoesNotExist, path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileDoesNotExist, abs)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileDoesNotExist, abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrAccessToFileDenied, abs)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFileDoesNotExist, abs, err)
	}

	resolvedName := name
	if resolvedName == "" {
		resolvedName = filepath.Base(abs)
	} else {
		resolvedName = filepath.Base(resolvedName)
	}

	return &FileDescriptor{
		Name:      resolvedName,
		Stream:    f,
		size:      info.Size(),
		sizeKnown: true,
	}, nil
}

func processStream(name string, s Source) (*FileDescriptor, error) {
	if name == "" {
		if named, ok := s.(interface{ Name() string }); ok {
			name = named.Name()
		}
	}
	if name == "" {
		return nil, fmt.Errorf("%w", ErrFileNameRequired)
	}
	if _, err := s.Seek(0, io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("%w", ErrFileNotSeekable)
	}
	return &FileDescriptor{Name: filepath.Base(name), Stream: s}, nil
}

// Size returns the source's byte length, computed lazily by seeking to the
// end once and caching the result; the read position is restored.
func (fd *FileDescriptor) Size() (int64, error) {
	if fd.sizeKnown {
		return fd.size, nil
	}
	cur, err := fd.Stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := fd.Stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := fd.Stream.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	fd.size = end
	fd.sizeKnown = true
	return fd.size, nil
}

// Cleanup releases the stream reference so the descriptor can be handed to
// another worker without carrying an open handle (§4.F.6 cleanup()).
func (fd *FileDescriptor) Cleanup() error {
	if fd.Stream == nil {
		return nil
	}
	err := fd.Stream.Close()
	fd.Stream = nil
	return err
}
