// Package fader implements a linear volume ramp driven by its own
// frame cursor, independent of the caller's timeline.
package fader

import "github.com/mackron/miniaudio-sub001/internal/datasource"

// Fader ramps linearly from volumeBeg to volumeEnd over lengthInFrames,
// tracked by an internal cursor that advances one frame per frame
// processed. Once the cursor reaches lengthInFrames, every subsequent frame
// is scaled by volumeEnd (a straight copy when volumeEnd == 1).
type Fader struct {
	channels  int
	volumeBeg float32
	volumeEnd float32
	length    uint64
	cursor    uint64
}

// New returns a Fader with no active ramp (volumeBeg == volumeEnd == 1).
func New(channels int) *Fader {
	return &Fader{channels: channels, volumeBeg: 1, volumeEnd: 1}
}

// SetFade starts a new ramp from volumeBeg to volumeEnd over lengthInFrames,
// resetting the cursor to 0. lengthInFrames == 0 jumps straight to
// volumeEnd.
func (f *Fader) SetFade(volumeBeg, volumeEnd float32, lengthInFrames uint64) {
	f.volumeBeg = volumeBeg
	f.volumeEnd = volumeEnd
	f.length = lengthInFrames
	f.cursor = 0
}

// Cursor reports how many ramp frames have been consumed so far.
func (f *Fader) Cursor() uint64 { return f.cursor }

// ProcessF32 scales an interleaved f32 buffer in place or into a separate
// out buffer. out and in may alias.
func (f *Fader) ProcessF32(out, in []float32) datasource.Result {
	if f.channels <= 0 || len(in)%f.channels != 0 || len(out) < len(in) {
		return datasource.InvalidArgs
	}
	frames := len(in) / f.channels
	for i := 0; i < frames; i++ {
		vol := f.nextVolume()
		base := i * f.channels
		if vol == 1 {
			copy(out[base:base+f.channels], in[base:base+f.channels])
			continue
		}
		for ch := 0; ch < f.channels; ch++ {
			out[base+ch] = in[base+ch] * vol
		}
	}
	return datasource.Success
}

func (f *Fader) nextVolume() float32 {
	if f.length == 0 || f.cursor >= f.length {
		return f.volumeEnd
	}
	t := float32(f.cursor) / float32(f.length)
	f.cursor++
	return f.volumeBeg + t*(f.volumeEnd-f.volumeBeg)
}
