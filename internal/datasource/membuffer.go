package datasource

import "sync/atomic"

// MemoryBuffer is a DataSource backed by an in-memory f32 PCM slice. It is
// the connector type the resource manager uses for fully-decoded (or
// caller-registered) audio.
//
// frameCount is an atomic so a partially-decoded buffer's watermark can be
// advanced by a decode-paging worker goroutine while readers on other
// goroutines observe it safely.
type MemoryBuffer struct {
	format     Format
	data       []float32 // interleaved, capacity sized for the full asset
	frameCount atomic.Uint64
	cursor     uint64
}

// NewMemoryBuffer wraps data (interleaved, channels per format.Channels) as a
// DataSource. frameCount is the number of frames currently valid in data;
// SetFrameCount may be called later to grow the watermark as decode paging
// completes.
func NewMemoryBuffer(format Format, data []float32, frameCount uint64) *MemoryBuffer {
	b := &MemoryBuffer{format: format, data: data}
	b.frameCount.Store(frameCount)
	return b
}

// SetFrameCount advances the decoded-frame watermark. Callers must ensure
// data up to frameCount is fully written before calling this (release
// semantics via the atomic store).
func (b *MemoryBuffer) SetFrameCount(frameCount uint64) {
	b.frameCount.Store(frameCount)
}

func (b *MemoryBuffer) GetDataFormat() (Format, Result) {
	return b.format, Success
}

func (b *MemoryBuffer) GetCursorInPCMFrames() (uint64, Result) {
	return b.cursor, Success
}

func (b *MemoryBuffer) GetLengthInPCMFrames() (uint64, Result) {
	return b.frameCount.Load(), Success
}

func (b *MemoryBuffer) SeekToPCMFrame(frame uint64) Result {
	total := b.frameCount.Load()
	if frame > total {
		return InvalidArgs
	}
	b.cursor = frame
	return Success
}

func (b *MemoryBuffer) ReadPCMFrames(dst []float32, isLooping bool) (uint64, Result) {
	ch := uint64(b.format.Channels)
	if ch == 0 {
		return 0, InvalidOperation
	}
	requested := uint64(len(dst)) / ch
	if requested == 0 {
		return 0, Success
	}

	total := b.frameCount.Load()
	if b.cursor >= total {
		if !isLooping {
			return 0, AtEnd
		}
		b.cursor = 0
		if total == 0 {
			return 0, AtEnd
		}
	}

	var written uint64
	for written < requested {
		available := total - b.cursor
		if available == 0 {
			if !isLooping {
				break
			}
			b.cursor = 0
			available = total
			if available == 0 {
				break
			}
		}
		n := requested - written
		if n > available {
			n = available
		}
		copy(dst[written*ch:(written+n)*ch], b.data[b.cursor*ch:(b.cursor+n)*ch])
		b.cursor += n
		written += n
		if !isLooping {
			break
		}
	}

	res := Success
	if written == 0 {
		res = AtEnd
	}
	return written, res
}
