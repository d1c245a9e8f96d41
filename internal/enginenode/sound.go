package enginenode

import (
	"io"
	"math"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/fader"
	"github.com/mackron/miniaudio-sub001/internal/graph"
	"github.com/mackron/miniaudio-sub001/internal/resample"
	"github.com/mackron/miniaudio-sub001/internal/spatializer"
)

// Sound is a leaf EngineNode: 0 graph inputs, pulling its own audio from a
// DataSource through the resampler/fader/spatializer/panner chain.
type Sound struct {
	*EngineNode
	closer io.Closer // non-nil when this Sound owns ds and must close it on Close
}

// NewSound builds a leaf EngineNode around ds. channelsIn/rateIn describe
// ds's native format; channelsOut/rateOut describe the graph's device
// format the chain converts into. isLooping controls end-of-stream wrap.
func NewSound(ds datasource.DataSource, channelsIn, channelsOut int, rateIn, rateOut uint32, isLooping bool, algo resample.Algorithm) (*Sound, datasource.Result) {
	c, res := newChain(channelsIn, channelsOut, rateIn, rateOut, algo)
	if res != datasource.Success {
		return nil, res
	}
	c.source = ds
	c.isLooping.Store(isLooping)

	node := graph.NewNode(c, nil, []int{channelsOut}, 0)
	c.self = node

	s := &Sound{EngineNode: &EngineNode{Node: node, chain: c}}
	if cl, ok := ds.(io.Closer); ok {
		s.closer = cl
	}
	return s, datasource.Success
}

// Seek requests a seek to frame on the next Process call; the sub-flow runs
// at the start of that call, before any audio is produced.
func (s *Sound) Seek(frame uint64) { s.chain.seekTarget.Store(frame) }

// SetLooping toggles whether reaching end-of-stream wraps back to frame 0
// instead of setting AtEnd.
func (s *Sound) SetLooping(loop bool) { s.chain.isLooping.Store(loop) }
func (s *Sound) IsLooping() bool      { return s.chain.isLooping.Load() }

// AtEnd reports whether the data source has been fully consumed. Only
// meaningful when not looping.
func (s *Sound) AtEnd() bool { return s.chain.AtEnd() }

// ReplaceDataSource swaps out the sound's underlying DataSource in place,
// for recycling a "fire and forget" sound once it reaches end rather than
// tearing down and reallocating its node and graph attachment. The
// resampler is rebuilt only if channelsIn or rateIn differ from the
// current configuration.
func (s *Sound) ReplaceDataSource(ds datasource.DataSource, channelsIn int, rateIn uint32) datasource.Result {
	c := s.chain
	if channelsIn != c.channelsIn || rateIn != c.baseRateIn {
		r, res := resample.NewResampler(c.algo, resample.Config{Channels: channelsIn, RateIn: rateIn, RateOut: c.baseRateOut})
		if res != datasource.Success {
			return res
		}
		c.resampler = r
		c.channelsIn = channelsIn
		c.baseRateIn = rateIn
		c.fader = fader.New(channelsIn)
		c.spatializer = spatializer.New(channelsIn, c.channelsOut)
	}

	c.source = ds
	c.seekTarget.Store(noSeek)
	c.atEnd.Store(false)
	c.oldPitch = 1
	c.pitchBits.Store(math.Float32bits(1))

	s.closer = nil
	if cl, ok := ds.(io.Closer); ok {
		s.closer = cl
	}
	s.Node.SetLocalTime(0)
	s.Node.SetState(graph.Started)
	return datasource.Success
}

// Close releases the underlying DataSource if this Sound owns it (i.e. it
// implements io.Closer). A Sound created over caller-retained or
// resource-manager-owned data is a no-op here; ownership lives elsewhere.
func (s *Sound) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
