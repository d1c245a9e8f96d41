package enginenode

import (
	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/graph"
	"github.com/mackron/miniaudio-sub001/internal/resample"
)

// Group is a non-leaf EngineNode: one input bus mixing whatever is
// attached to it, run through the same resampler/fader/spatializer/panner
// chain as a Sound. Used to apply shared pitch/fade/pan to a whole subtree
// without each leaf needing its own.
type Group struct {
	*EngineNode
}

// NewGroup builds a Group converting channelsIn/rateIn audio (its input
// bus's format) into channelsOut/rateOut (what it presents to whatever it
// is attached to).
func NewGroup(channelsIn, channelsOut int, rateIn, rateOut uint32, algo resample.Algorithm, cacheCapFrames uint64) (*Group, datasource.Result) {
	c, res := newChain(channelsIn, channelsOut, rateIn, rateOut, algo)
	if res != datasource.Success {
		return nil, res
	}
	node := graph.NewNode(c, []int{channelsIn}, []int{channelsOut}, cacheCapFrames)
	c.self = node
	return &Group{EngineNode: &EngineNode{Node: node, chain: c}}, datasource.Success
}
