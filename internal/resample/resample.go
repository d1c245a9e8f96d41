// Package resample implements a linear resampler driven by
// integer+fractional time accumulators, plus an optional higher-quality
// pluggable Backend loaded lazily (absence returns NoBackend).
package resample

import (
	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/filter"
)

// DefaultLPFCount is the number of chained low-pass stages the anti-alias
// filter uses by default. 0 disables filtering entirely, which is what lets
// a rate_in == rate_out conversion reproduce its input exactly.
const DefaultLPFCount = 0

// DefaultLPFNyquistFactor scales the Nyquist-relative cutoff of the
// anti-alias filter.
const DefaultLPFNyquistFactor = 0.9

// Config configures a Linear resampler.
type Config struct {
	Channels         int
	RateIn, RateOut  uint32
	LPFCount         int
	LPFNyquistFactor float64
}

// Linear is the core's mandatory resampler backend. The first Process call
// consumes one "bootstrap" input frame to prime the interpolation window (x0 starts
// at silence, x1 becomes the first real sample) — this is the "1" in
// InputLatency's "1 + lpf latency". RequiredInputFrameCount /
// ExpectedOutputFrameCount describe steady-state consumption *after* that
// bootstrap, matching Process's behavior from the second call onward.
type Linear struct {
	channels int
	rateIn   uint32 // post-GCD-simplified
	rateOut  uint32

	inTimeInt  uint64
	inTimeFrac uint64

	x0, x1  []float32 // previous/next input frame, per channel
	primed  bool
	lpf     *filter.Chain
	lpfCfg  Config
}

// New returns a Linear resampler. Rates are simplified by their GCD.
func New(cfg Config) *Linear {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.LPFNyquistFactor == 0 {
		cfg.LPFNyquistFactor = DefaultLPFNyquistFactor
	}
	rin, rout := simplify(cfg.RateIn, cfg.RateOut)
	r := &Linear{
		channels: cfg.Channels,
		rateIn:   rin,
		rateOut:  rout,
		x0:       make([]float32, cfg.Channels),
		x1:       make([]float32, cfg.Channels),
		lpfCfg:   cfg,
	}
	r.rebuildLPF(cfg.LPFCount)
	return r
}

func simplify(a, b uint32) (uint32, uint32) {
	if a == 0 || b == 0 {
		return a, b
	}
	g := gcd(a, b)
	return a / g, b / g
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// SetRate changes the conversion ratio in place, preserving the
// interpolation window and accumulator state. Used to retune a resampler
// for a pitch change without losing continuity across the retune point.
func (r *Linear) SetRate(rateIn, rateOut uint32) {
	rin, rout := simplify(rateIn, rateOut)
	r.rateIn, r.rateOut = rin, rout
	r.rebuildLPF(r.lpfCfg.LPFCount)
}

func (r *Linear) advanceInt() uint64  { return uint64(r.rateIn) / uint64(r.rateOut) }
func (r *Linear) advanceFrac() uint64 { return uint64(r.rateIn) % uint64(r.rateOut) }

func (r *Linear) rebuildLPF(count int) {
	if count <= 0 {
		r.lpf = nil
		return
	}
	cutoff := float64(min32(r.rateIn, r.rateOut)) * 0.5 * r.lpfCfg.LPFNyquistFactor
	sampleRate := float64(max32(r.rateIn, r.rateOut))
	r.lpf = filter.NewLPFOrderN(r.channels, sampleRate, cutoff, count*2)
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// isDownsample reports whether this conversion reduces the sample rate; the
// anti-alias filter runs before loading new input samples in this mode and
// after interpolation otherwise.
func (r *Linear) isDownsample() bool { return r.rateIn > r.rateOut }

func (r *Linear) lpfLatency() int {
	if r.lpf == nil {
		return 0
	}
	return r.lpf.Latency()
}

// InputLatency reports the resampler's latency in input frames.
func (r *Linear) InputLatency() int {
	return 1 + r.lpfLatency()
}

// OutputLatency reports the resampler's latency in output frames.
func (r *Linear) OutputLatency() int {
	if r.rateIn == 0 {
		return 0
	}
	return int(uint64(r.InputLatency()) * uint64(r.rateOut) / uint64(r.rateIn))
}

// RequiredInputFrameCount predicts how many input frames Process will
// consume to produce outN more output frames, given the resampler's current
// (already-primed) accumulator state.
func (r *Linear) RequiredInputFrameCount(outN uint64) uint64 {
	if outN == 0 {
		return 0
	}
	// Whole frames still owed (inTimeInt) are loaded before the first output;
	// each later output adds one advance. The advance after the last output
	// is not paid within this call.
	steps := outN - 1
	return r.inTimeInt + steps*r.advanceInt() + (r.inTimeFrac+steps*r.advanceFrac())/uint64(r.rateOut)
}

// ExpectedOutputFrameCount predicts how many output frames Process will
// produce from inN available input frames, given the resampler's current
// accumulator state. It simulates the accumulator without touching real
// state or sample data; its cost is linear in the input and output frame
// counts rather than constant-time.
func (r *Linear) ExpectedOutputFrameCount(inN uint64) uint64 {
	if r.advanceInt() == 0 && r.advanceFrac() == 0 {
		return 0
	}
	timeInt, timeFrac := r.inTimeInt, r.inTimeFrac
	var consumed, produced uint64
	for {
		for timeInt > 0 {
			if consumed >= inN {
				return produced
			}
			consumed++
			timeInt--
		}
		produced++
		timeInt += r.advanceInt()
		timeFrac += r.advanceFrac()
		if timeFrac >= uint64(r.rateOut) {
			timeFrac -= uint64(r.rateOut)
			timeInt++
		}
	}
}

// loadNext pulls the next input frame (applying the anti-alias filter first
// in downsample mode) into the x0/x1 window, shifting x1 into x0.
func (r *Linear) loadNext(in []float32, cursor *uint64, inFrames uint64) bool {
	if *cursor >= inFrames {
		return false
	}
	ch := uint64(r.channels)
	frame := in[*cursor*ch : (*cursor+1)*ch]
	if r.isDownsample() && r.lpf != nil {
		filtered := make([]float32, r.channels)
		r.lpf.ProcessF32(filtered, frame)
		frame = filtered
	}
	copy(r.x0, r.x1)
	copy(r.x1, frame)
	*cursor++
	return true
}

// Process converts in (interleaved, channels per Config) into out, writing
// up to len(out)/channels produced frames. It returns the number of input
// frames consumed and output frames produced. out may be nil to advance
// internal state (e.g. while seeking) without producing audio.
func (r *Linear) Process(out []float32, in []float32) (consumed, produced uint64, res datasource.Result) {
	ch := uint64(r.channels)
	if ch == 0 || len(in)%int(ch) != 0 || (out != nil && len(out)%int(ch) != 0) {
		return 0, 0, datasource.InvalidArgs
	}
	inFrames := uint64(len(in)) / ch
	var outFrames uint64 = ^uint64(0)
	if out != nil {
		outFrames = uint64(len(out)) / ch
	}

	var inCursor uint64
	if !r.primed {
		if !r.loadNext(in, &inCursor, inFrames) {
			return inCursor, 0, datasource.Success
		}
		r.primed = true
	}

	var outCursor uint64
	for outCursor < outFrames {
		for r.inTimeInt > 0 {
			if !r.loadNext(in, &inCursor, inFrames) {
				return inCursor, outCursor, datasource.Success
			}
			r.inTimeInt--
		}

		frac := float32(r.inTimeFrac) / float32(r.rateOut)
		frameOut := make([]float32, ch)
		for c := uint64(0); c < ch; c++ {
			frameOut[c] = r.x0[c] + frac*(r.x1[c]-r.x0[c])
		}
		if !r.isDownsample() && r.lpf != nil {
			r.lpf.ProcessF32(frameOut, frameOut)
		}
		if out != nil {
			copy(out[outCursor*ch:(outCursor+1)*ch], frameOut)
		}
		outCursor++

		r.inTimeInt += r.advanceInt()
		r.inTimeFrac += r.advanceFrac()
		if r.inTimeFrac >= uint64(r.rateOut) {
			r.inTimeFrac -= uint64(r.rateOut)
			r.inTimeInt++
		}

		if out == nil && inCursor >= inFrames && r.inTimeInt > 0 {
			break
		}
	}

	return inCursor, outCursor, datasource.Success
}
