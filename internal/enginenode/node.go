// Package enginenode implements the composite node every Sound and every
// Group is built from: a resampler, a fader, a (placeholder) spatializer,
// and a panner wired in the fixed order that minimizes work before channel
// expansion: data -> resampler -> fader -> spatializer -> panner -> output.
package enginenode

import (
	"math"
	"sync/atomic"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/fader"
	"github.com/mackron/miniaudio-sub001/internal/graph"
	"github.com/mackron/miniaudio-sub001/internal/panner"
	"github.com/mackron/miniaudio-sub001/internal/resample"
	"github.com/mackron/miniaudio-sub001/internal/spatializer"
)

const noSeek = ^uint64(0)

// EngineNode is the shared handle type for both Sound and Group: a
// *graph.Node plus the chain accessors a caller needs (pitch, spatial
// toggle, bus volume lives on graph.OutputBus already).
type EngineNode struct {
	*graph.Node
	chain *chain
}

// SetPitch changes the playback rate ratio. The change is latched at the
// end of the next Process call, never mid-call, so RequiredInputFrameCount
// queries stay consistent with what Process actually consumes within one
// call.
func (e *EngineNode) SetPitch(p float32) {
	if p <= 0 {
		p = 1
	}
	e.chain.pitchBits.Store(math.Float32bits(p))
}

func (e *EngineNode) Pitch() float32 { return math.Float32frombits(e.chain.pitchBits.Load()) }

// SetPitchDisabled forces pitch to 1 regardless of SetPitch, without losing
// the caller's requested pitch value (restored when re-enabled).
func (e *EngineNode) SetPitchDisabled(disabled bool) { e.chain.pitchDisabled = disabled }

// SetSpatial toggles whether the spatializer should treat this node's
// output as positioned audio. The current spatializer is a channel-count
// placeholder, so this only affects whether callers route it through a
// spatial-aware group; the chain's conversion behavior is unconditional.
func (e *EngineNode) SetSpatial(spatial bool) { e.chain.isSpatial = spatial }
func (e *EngineNode) IsSpatial() bool         { return e.chain.isSpatial }

// Fader exposes the fade ramp controls directly.
func (e *EngineNode) Fader() *fader.Fader { return e.chain.fader }

// Panner exposes the stereo pan/balance controls directly.
func (e *EngineNode) Panner() *panner.Panner { return e.chain.panner }

// chain is the Processor shared by Sound and Group; the only difference
// between them is whether source is set (Sound, 0 graph inputs, pulled
// directly from a DataSource) or nil (Group, 1 graph input, fed by
// whatever is attached upstream).
type chain struct {
	channelsIn, channelsOut int

	algo                resample.Algorithm
	baseRateIn, baseRateOut uint32
	resampler           *resample.Resampler
	fader               *fader.Fader
	spatializer         *spatializer.Spatializer
	panner              *panner.Panner

	pitchBits     atomic.Uint32
	oldPitch      float32
	pitchDisabled bool
	isSpatial     bool

	// Sound-only; nil/zero-valued for a Group.
	source     datasource.DataSource
	seekTarget atomic.Uint64
	isLooping  atomic.Bool
	atEnd      atomic.Bool
	self       *graph.Node // set after construction so Process can update local time on seek

	scratchSrc   []float32 // channelsIn, leaf source chunks
	scratchResam []float32 // channelsIn
	scratchSpat  []float32 // channelsOut
}

func newChain(channelsIn, channelsOut int, rateIn, rateOut uint32, algo resample.Algorithm) (*chain, datasource.Result) {
	r, res := resample.NewResampler(algo, resample.Config{Channels: channelsIn, RateIn: rateIn, RateOut: rateOut})
	if res != datasource.Success {
		return nil, res
	}
	c := &chain{
		channelsIn:  channelsIn,
		channelsOut: channelsOut,
		algo:        algo,
		baseRateIn:  rateIn,
		baseRateOut: rateOut,
		resampler:   r,
		fader:       fader.New(channelsIn),
		spatializer: spatializer.New(channelsIn, channelsOut),
		panner:      panner.New(),
		oldPitch:    1,
	}
	c.pitchBits.Store(math.Float32bits(1))
	c.seekTarget.Store(noSeek)
	return c, datasource.Success
}

func (c *chain) InputBusCount() int {
	if c.source != nil {
		return 0
	}
	return 1
}
func (c *chain) OutputBusCount() int { return 1 }

// effectivePitch returns the pitch to actually drive the resampler with
// this call, honoring SetPitchDisabled without discarding the caller's
// requested value.
func (c *chain) effectivePitch() float32 {
	if c.pitchDisabled {
		return 1
	}
	return math.Float32frombits(c.pitchBits.Load())
}

// latchPitch retunes the resampler if the effective pitch changed since the
// last call. Scale factor 1<<16 gives the integer rate pair enough
// resolution to represent fractional pitches precisely.
func (c *chain) latchPitch() {
	p := c.effectivePitch()
	if p == c.oldPitch {
		return
	}
	const scale = 1 << 16
	rateIn := uint32(float64(c.baseRateIn) * float64(p) * scale)
	rateOut := c.baseRateOut * scale
	if lin, ok := c.resampler.Backend.(*resample.Linear); ok {
		lin.SetRate(rateIn, rateOut)
	} else if r, res := resample.NewResampler(c.algo, resample.Config{Channels: c.channelsIn, RateIn: rateIn, RateOut: rateOut}); res == datasource.Success {
		c.resampler = r
	}
	c.oldPitch = p
}

func (c *chain) ensureScratch(framesOut uint64) {
	need := int(framesOut) * c.channelsIn
	if len(c.scratchResam) < need {
		c.scratchResam = make([]float32, need)
	}
	needOut := int(framesOut) * c.channelsOut
	if len(c.scratchSpat) < needOut {
		c.scratchSpat = make([]float32, needOut)
	}
}

// Process implements graph.Processor. A Sound (source != nil) pulls its own
// input from the DataSource in chunks sized by the resampler's
// RequiredInputFrameCount; a Group consumes whatever its single input bus
// already mixed for it. Pitch is latched once, at the end, so frame-count
// queries made mid-call stay consistent with this call's behavior.
func (c *chain) Process(in [][]float32, framesIn uint64, out [][]float32, framesOut uint64, globalTime uint64) (uint64, uint64, datasource.Result) {
	c.ensureScratch(framesOut)

	var consumed, produced uint64
	var res datasource.Result

	if c.source != nil {
		consumed, produced, res = c.processLeaf(framesOut)
	} else {
		consumed, produced, res = c.resampler.Process(c.scratchResam[:framesOut*uint64(c.channelsIn)], in[0][:framesIn*uint64(c.channelsIn)])
	}
	if res != datasource.Success && res != datasource.AtEnd {
		for i := range out[0][:framesOut*uint64(c.channelsOut)] {
			out[0][i] = 0
		}
		return consumed, 0, res
	}

	c.runPostResample(c.scratchResam, produced, out[0], framesOut)
	c.latchPitch()
	if res == datasource.AtEnd {
		// Reaching end-of-source stops the node at the next tick; this
		// call's output (already written above) still plays out in full.
		if c.self != nil {
			c.self.SetState(graph.Stopped)
		}
		return consumed, framesOut, datasource.AtEnd
	}
	return consumed, framesOut, datasource.Success
}

// processLeaf handles the seek/read/resample sub-flow unique to Sound
// nodes: honor a pending seek, then pull source chunks sized by
// RequiredInputFrameCount until framesOut output frames exist or the
// source ends.
func (c *chain) processLeaf(framesOut uint64) (uint64, uint64, datasource.Result) {
	if target := c.seekTarget.Swap(noSeek); target != noSeek {
		if res := c.source.SeekToPCMFrame(target); res != datasource.Success {
			return 0, 0, res
		}
		if c.self != nil {
			c.self.SetLocalTime(target)
			c.self.SetState(graph.Started)
		}
		c.atEnd.Store(false)
	}

	ch := uint64(c.channelsIn)
	var totalConsumed, totalProduced uint64
	looping := c.isLooping.Load()

	for totalProduced < framesOut {
		need := c.resampler.RequiredInputFrameCount(framesOut - totalProduced)
		if need == 0 {
			need = 1
		}
		if uint64(len(c.scratchSrc)) < need*ch {
			c.scratchSrc = make([]float32, need*ch)
		}
		got, res := c.source.ReadPCMFrames(c.scratchSrc[:need*ch], looping)
		atSourceEnd := res == datasource.AtEnd || (res == datasource.Success && got < need)

		consumed, produced, rres := c.resampler.Process(
			c.scratchResam[totalProduced*ch:framesOut*ch],
			c.scratchSrc[:got*ch],
		)
		totalConsumed += consumed
		totalProduced += produced

		if rres != datasource.Success {
			return totalConsumed, totalProduced, rres
		}
		if atSourceEnd {
			if !looping {
				c.atEnd.Store(true)
			}
			break
		}
		if produced == 0 && consumed == 0 {
			break // resampler made no progress on a full chunk; avoid spinning
		}
	}
	if totalProduced < framesOut {
		for i := totalProduced * ch; i < framesOut*ch; i++ {
			c.scratchResam[i] = 0
		}
	}
	res := datasource.Success
	if c.atEnd.Load() {
		res = datasource.AtEnd
	}
	return totalConsumed, totalProduced, res
}

// AtEnd reports whether a Sound's data source has been fully consumed
// (non-looping only); always false for a Group.
func (c *chain) AtEnd() bool { return c.atEnd.Load() }

// runPostResample applies fader -> spatializer -> panner to resampled
// (channelsIn, produced frames) and writes the final channelsOut result
// into out (framesOut capacity, zero-padded beyond produced).
func (c *chain) runPostResample(resampled []float32, produced uint64, out []float32, framesOut uint64) {
	ch := uint64(c.channelsIn)
	faded := resampled[:produced*ch]
	c.fader.ProcessF32(faded, faded)

	chOut := uint64(c.channelsOut)
	spatOut := c.scratchSpat[:produced*chOut]
	c.spatializer.ProcessF32(spatOut, faded)

	if c.channelsOut == 2 {
		c.panner.ProcessF32(spatOut, spatOut)
	}

	copy(out[:produced*chOut], spatOut)
	for i := produced * chOut; i < framesOut*chOut; i++ {
		out[i] = 0
	}
}
