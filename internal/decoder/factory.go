// Package decoder supplies concrete datasource.Decoder backends (Opus, AAC)
// and a path-extension-based factory matching resource.DecoderFactory, so
// the resource manager stays codec-agnostic while the engine still only
// needs to hand it a file path.
package decoder

import (
	"path/filepath"
	"strings"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/vfs"
)

// New dispatches to a concrete decoder by path's extension. It matches
// resource.DecoderFactory's signature so it can be passed straight into
// resource.NewManager.
func New(f vfs.File, path string) (datasource.Decoder, datasource.Result) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".opus", ".ogg":
		return NewOpusDecoder(f, path)
	case ".aac":
		return NewAacDecoder(f, path)
	default:
		f.Close()
		return nil, datasource.NoBackend
	}
}
