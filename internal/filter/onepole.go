package filter

import (
	"math"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

// OnePole is a 1st-order one-pole filter (LPF1/HPF1). It is a separate,
// simpler state machine from Biquad since a single real pole needs only the
// previous output per channel, plus the previous input for the high-pass
// form.
type OnePole struct {
	channels int
	highpass bool
	a        float64
	y1       []float64 // previous output, per channel
	x1       []float64 // previous input, per channel (highpass only)
}

// NewLPF1 returns a 1st-order low-pass at cutoff Hz.
func NewLPF1(channels int, sampleRate, cutoff float64) *OnePole {
	p := &OnePole{channels: channels, y1: make([]float64, channels), x1: make([]float64, channels)}
	p.Reinit(sampleRate, cutoff)
	return p
}

// NewHPF1 returns a 1st-order high-pass at cutoff Hz.
func NewHPF1(channels int, sampleRate, cutoff float64) *OnePole {
	p := &OnePole{channels: channels, highpass: true, y1: make([]float64, channels), x1: make([]float64, channels)}
	p.Reinit(sampleRate, cutoff)
	return p
}

// Reinit recomputes the pole coefficient without clearing state.
func (p *OnePole) Reinit(sampleRate, cutoff float64) {
	p.a = math.Exp(-2 * math.Pi * cutoff / sampleRate)
}

// Latency reports the filter's group delay in frames.
func (p *OnePole) Latency() int { return 1 }

// ProcessF32 filters an interleaved f32 buffer; out and in may alias.
func (p *OnePole) ProcessF32(out, in []float32) datasource.Result {
	if len(in)%p.channels != 0 || len(out) < len(in) {
		return datasource.InvalidArgs
	}
	for i := 0; i < len(in); i += p.channels {
		for ch := 0; ch < p.channels; ch++ {
			x := float64(in[i+ch])
			var y float64
			if p.highpass {
				y = p.a*(p.y1[ch]+x-p.x1[ch])
			} else {
				y = (1-p.a)*x + p.a*p.y1[ch]
			}
			p.x1[ch] = x
			p.y1[ch] = y
			out[i+ch] = float32(y)
		}
	}
	return datasource.Success
}

// ProcessS16 filters an interleaved s16 buffer, converting through float64
// internally and clamping the result. Unlike Biquad, OnePole has no
// fixed-point coefficient form; only the biquad-derived filters carry a
// Q1.14 path.
func (p *OnePole) ProcessS16(out, in []int16) datasource.Result {
	if len(in)%p.channels != 0 || len(out) < len(in) {
		return datasource.InvalidArgs
	}
	for i := 0; i < len(in); i += p.channels {
		for ch := 0; ch < p.channels; ch++ {
			x := float64(in[i+ch])
			var y float64
			if p.highpass {
				y = p.a*(p.y1[ch]+x-p.x1[ch])
			} else {
				y = (1-p.a)*x + p.a*p.y1[ch]
			}
			p.x1[ch] = x
			p.y1[ch] = y
			out[i+ch] = clampS16(int64(y))
		}
	}
	return datasource.Success
}
