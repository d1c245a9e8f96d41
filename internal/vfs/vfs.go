// Package vfs defines the file I/O capability the resource manager reads
// assets through, plus an OS-backed default implementation. No on-disk
// format is defined by the core: this is purely a thin seam so the resource
// manager never calls os.Open directly, keeping file access swappable for
// tests and alternate storage backends.
package vfs

import (
	"io"
	"os"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

// File is a single opened handle. A given File is accessed by one thread at
// a time; the VFS itself must be safe to use concurrently across different
// files.
type File interface {
	io.ReadSeekCloser
}

// VFS is the external file-system contract.
type VFS interface {
	Open(path string) (File, datasource.Result)

	// ReadFile slurps the whole file into memory in one call, the
	// convenience the resource manager's synchronous data-buffer load path
	// uses.
	ReadFile(path string) ([]byte, datasource.Result)
}

// OS is the default VFS, backed directly by the host file system. The
// resource manager accepts an injected VFS rather than reaching for global
// state, and defaults to this singleton-like value when none is given.
type OS struct{}

// Default is the package-level OS-backed VFS instance.
var Default VFS = OS{}

func (OS) Open(path string) (File, datasource.Result) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, datasource.InvalidArgs
		}
		return nil, datasource.InvalidOperation
	}
	return f, datasource.Success
}

func (OS) ReadFile(path string) ([]byte, datasource.Result) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, datasource.InvalidArgs
		}
		return nil, datasource.InvalidOperation
	}
	return data, datasource.Success
}
