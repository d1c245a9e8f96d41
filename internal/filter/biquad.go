// Package filter implements LPF/HPF/BPF/notch/peak/low-shelf/high-shelf,
// each a standard RBJ-cookbook 2nd-order section (or a chain of them for
// higher orders), plus 1st-order one-pole LPF1/HPF1. Both f32 and s16
// (Q1.14 fixed-point) sample formats are supported, and in-place processing
// (out == in) is always safe because each sample is read before it is
// overwritten.
package filter

import "github.com/mackron/miniaudio-sub001/internal/datasource"

// DefaultQ is the RBJ-cookbook default Q.
const DefaultQ = 0.7071067811865476 // 1/sqrt(2)

// Q14Shift/Q14One define the Q1.14 fixed-point representation the s16 path
// computes in.
const Q14Shift = 14
const Q14One = int32(1) << Q14Shift

// Coeffs holds a normalized (a0 == 1) biquad transfer function.
type Coeffs struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Biquad is a single 2nd-order IIR section with per-channel transposed
// direct-form-II state (r1, r2). Reinit recomputes Coeffs without touching
// state; New (via a fresh Biquad) zeroes it.
type Biquad struct {
	channels int
	coeffs   Coeffs
	coeffsQ  coeffsQ14

	r1, r2 []float64 // f32 path state, per channel
	q1, q2 []int32   // s16 path state (Q1.14), per channel
}

type coeffsQ14 struct {
	b0, b1, b2 int32
	a1, a2     int32
}

// New returns a Biquad for the given channel count with zeroed state.
func New(channels int, coeffs Coeffs) *Biquad {
	b := &Biquad{
		channels: channels,
		r1:       make([]float64, channels),
		r2:       make([]float64, channels),
		q1:       make([]int32, channels),
		q2:       make([]int32, channels),
	}
	b.Reinit(coeffs)
	return b
}

// Reinit recomputes the filter's coefficients without clearing the
// per-channel state registers.
func (b *Biquad) Reinit(coeffs Coeffs) {
	b.coeffs = coeffs
	b.coeffsQ = coeffsQ14{
		b0: toQ14(coeffs.B0),
		b1: toQ14(coeffs.B1),
		b2: toQ14(coeffs.B2),
		a1: toQ14(coeffs.A1),
		a2: toQ14(coeffs.A2),
	}
}

// Latency reports the filter's group delay in frames (2 for a biquad).
func (b *Biquad) Latency() int { return 2 }

func toQ14(v float64) int32 {
	return int32(v * float64(Q14One))
}

// ProcessF32 filters an interleaved f32 buffer of channels*n samples. out
// and in may be the same slice.
func (b *Biquad) ProcessF32(out, in []float32) datasource.Result {
	if len(in)%b.channels != 0 || len(out) < len(in) {
		return datasource.InvalidArgs
	}
	c := b.coeffs
	for i := 0; i < len(in); i += b.channels {
		for ch := 0; ch < b.channels; ch++ {
			x := float64(in[i+ch])
			y := c.B0*x + b.r1[ch]
			b.r1[ch] = c.B1*x + b.r2[ch] - c.A1*y
			b.r2[ch] = c.B2*x - c.A2*y
			out[i+ch] = float32(y)
		}
	}
	return datasource.Success
}

// ProcessS16 filters an interleaved s16 buffer using Q1.14 fixed-point
// arithmetic, clamping output to the s16 range.
func (b *Biquad) ProcessS16(out, in []int16) datasource.Result {
	if len(in)%b.channels != 0 || len(out) < len(in) {
		return datasource.InvalidArgs
	}
	c := b.coeffsQ
	for i := 0; i < len(in); i += b.channels {
		for ch := 0; ch < b.channels; ch++ {
			x := int64(in[i+ch])
			y := (int64(c.b0)*x)>>Q14Shift + int64(b.q1[ch])
			b.q1[ch] = int32((int64(c.b1)*x)>>Q14Shift + int64(b.q2[ch]) - (int64(c.a1)*y)>>Q14Shift)
			b.q2[ch] = int32((int64(c.b2)*x)>>Q14Shift - (int64(c.a2)*y)>>Q14Shift)
			out[i+ch] = clampS16(y)
		}
	}
	return datasource.Success
}

func clampS16(v int64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
