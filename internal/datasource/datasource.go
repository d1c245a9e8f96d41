package datasource

// Format describes the PCM layout a DataSource produces. The core operates
// on f32 throughout; sample-format conversion into f32 is treated as an
// external pure function and is not redescribed here.
type Format struct {
	Channels uint32
	Rate     uint32
}

// DataSource is the external contract leaf nodes pull frames through.
// Decoders, in-memory buffers, and the resource manager's streaming pager
// all implement it. Frame counts are in frames, not samples (frames *
// channels = samples).
type DataSource interface {
	// ReadPCMFrames reads up to len(dst)/channels frames into dst (already
	// sized for the source's channel count) and returns the number actually
	// read. isLooping controls whether reaching the end wraps back to the
	// start instead of returning AtEnd.
	ReadPCMFrames(dst []float32, isLooping bool) (framesRead uint64, res Result)

	// SeekToPCMFrame repositions the read cursor.
	SeekToPCMFrame(frame uint64) Result

	// GetDataFormat reports the source's native channel count and sample rate.
	GetDataFormat() (fmt Format, res Result)

	// GetCursorInPCMFrames reports the current read position.
	GetCursorInPCMFrames() (cursor uint64, res Result)

	// GetLengthInPCMFrames reports the total frame count, or NotImplemented
	// if the source cannot know this (e.g. an infinite or non-seekable stream).
	GetLengthInPCMFrames() (length uint64, res Result)
}

// MapUnmapper is an optional zero-copy extension to DataSource. Sources that
// cannot support zero-copy reads simply don't implement it; callers type-
// assert and fall back to ReadPCMFrames, which itself may be implemented in
// terms of Map/Unmap.
type MapUnmapper interface {
	// Map returns a pointer (as a slice view) into up to *n frames of
	// internal storage without copying. The caller must not hold the
	// returned slice past the next Unmap call.
	Map(n uint64) (dst []float32, res Result)

	// Unmap commits n frames as consumed, advancing the cursor.
	Unmap(n uint64) Result
}

// Decoder is the external collaborator contract for a concrete codec
// backend: a DataSource plus a Close to release codec-owned resources.
type Decoder interface {
	DataSource
	Close() error
}
