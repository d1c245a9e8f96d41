package filter

import "github.com/mackron/miniaudio-sub001/internal/datasource"

// stage is the subset of Biquad/OnePole's API a Chain drives each section
// through; both satisfy it.
type stage interface {
	ProcessF32(out, in []float32) datasource.Result
	Latency() int
}

// Chain runs any sequence of stages back-to-back. NewLPFOrderN and
// NewHPFOrderN use it to realize an Nth-order filter as N/2 biquads that
// all share the same coefficients; callers that need a Butterworth-style
// cascade with per-section Q should build sections individually and use
// Chain only to sequence them.
type Chain struct {
	stages []stage
}

// NewChain returns a Chain that runs frames through each stage in order.
func NewChain(stages ...stage) *Chain {
	return &Chain{stages: stages}
}

// Latency reports the summed group delay of every stage: a stacked order-N
// filter reports 2*(N/2).
func (c *Chain) Latency() int {
	total := 0
	for _, s := range c.stages {
		total += s.Latency()
	}
	return total
}

// ProcessF32 runs an interleaved f32 buffer through every stage in sequence.
// out and in may alias; intermediate stages process in place against out.
func (c *Chain) ProcessF32(out, in []float32) datasource.Result {
	if len(c.stages) == 0 {
		if len(out) >= len(in) {
			copy(out, in)
		}
		return datasource.Success
	}
	if res := c.stages[0].ProcessF32(out, in); res != datasource.Success {
		return res
	}
	for _, s := range c.stages[1:] {
		if res := s.ProcessF32(out, out); res != datasource.Success {
			return res
		}
	}
	return datasource.Success
}

// NewLPFOrderN builds an even-order low-pass as count/2 cascaded biquads,
// each at the same cutoff. count must be even and >= 2.
func NewLPFOrderN(channels int, sampleRate, cutoff float64, count int) *Chain {
	return newBiquadCascade(channels, count, func() Coeffs {
		return LowpassCoeffs(sampleRate, cutoff, DefaultQ)
	})
}

// NewHPFOrderN builds an even-order high-pass the same way as NewLPFOrderN.
func NewHPFOrderN(channels int, sampleRate, cutoff float64, count int) *Chain {
	return newBiquadCascade(channels, count, func() Coeffs {
		return HighpassCoeffs(sampleRate, cutoff, DefaultQ)
	})
}

func newBiquadCascade(channels, count int, coeffsFn func() Coeffs) *Chain {
	if count < 2 {
		count = 2
	}
	n := count / 2
	stages := make([]stage, n)
	for i := range stages {
		stages[i] = New(channels, coeffsFn())
	}
	return NewChain(stages...)
}
