// Package spatializer implements the engine's mandatory channel-count
// conversion stage. Full 3D positional audio (distance attenuation,
// rotation, HRTF) is out of scope; this placeholder exists because
// downstream nodes (panner, device output) must always see the engine's
// channel count regardless of what channel count a source was decoded at.
package spatializer

import "github.com/mackron/miniaudio-sub001/internal/datasource"

// Spatializer converts between a fixed input and output channel count,
// frame-for-frame (it never changes the frame count, only the channel
// layout).
type Spatializer struct {
	channelsIn  int
	channelsOut int
}

// New returns a Spatializer converting channelsIn -> channelsOut.
func New(channelsIn, channelsOut int) *Spatializer {
	return &Spatializer{channelsIn: channelsIn, channelsOut: channelsOut}
}

func (s *Spatializer) ChannelsIn() int  { return s.channelsIn }
func (s *Spatializer) ChannelsOut() int { return s.channelsOut }

// ProcessF32 converts an interleaved f32 buffer of channelsIn channels into
// one of channelsOut channels. out and in must not alias when the channel
// counts differ, since frame strides differ.
func (s *Spatializer) ProcessF32(out, in []float32) datasource.Result {
	if s.channelsIn <= 0 || s.channelsOut <= 0 {
		return datasource.InvalidArgs
	}
	if len(in)%s.channelsIn != 0 {
		return datasource.InvalidArgs
	}
	frames := len(in) / s.channelsIn
	if len(out) < frames*s.channelsOut {
		return datasource.InvalidArgs
	}

	if s.channelsIn == s.channelsOut {
		copy(out[:frames*s.channelsOut], in)
		return datasource.Success
	}

	for f := 0; f < frames; f++ {
		inFrame := in[f*s.channelsIn : (f+1)*s.channelsIn]
		outFrame := out[f*s.channelsOut : (f+1)*s.channelsOut]
		if s.channelsOut < s.channelsIn {
			downmix(outFrame, inFrame)
		} else {
			upmix(outFrame, inFrame)
		}
	}
	return datasource.Success
}

// downmix averages every input channel into each output channel, the
// simplest channel-count-reducing conversion that doesn't privilege any one
// input channel.
func downmix(out, in []float32) {
	var sum float32
	for _, s := range in {
		sum += s
	}
	avg := sum / float32(len(in))
	for i := range out {
		out[i] = avg
	}
}

// upmix repeats input channels round-robin to fill the wider output layout
// (e.g. mono -> stereo duplicates the single channel into both).
func upmix(out, in []float32) {
	for i := range out {
		out[i] = in[i%len(in)]
	}
}
