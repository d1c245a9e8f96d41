package graph

import (
	"sync/atomic"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

// NodeGraph owns the dedicated endpoint node every other node ultimately
// feeds, and the per-tick read counter that breaks cycles.
type NodeGraph struct {
	channels    int
	endpoint    *Node
	readCounter atomic.Uint32
	isReading   atomic.Bool
}

// New returns a NodeGraph whose endpoint accepts and emits channels-wide f32
// audio.
func New(channels int) *NodeGraph {
	g := &NodeGraph{channels: channels}
	g.endpoint = NewNode(&endpointProcessor{channels: channels}, []int{channels}, []int{channels}, 1024)
	return g
}

// Endpoint returns the graph's single output node. Attach other nodes to
// Endpoint().InputBus(0) to have them included in the final mix.
func (g *NodeGraph) Endpoint() *Node { return g.endpoint }

// ReadPCMFrames advances the graph by one tick, producing up to n frames
// into out (sized n*channels).
func (g *NodeGraph) ReadPCMFrames(out []float32, n uint64) (uint64, datasource.Result) {
	g.isReading.Store(true)
	defer g.isReading.Store(false)

	tick := g.readCounter.Add(1)
	globalTime := g.endpoint.LocalTime()
	return g.endpoint.readOutputBus(tick, 0, out, n, globalTime)
}

// endpointProcessor is an identity passthrough: it exists only to give the
// graph a single well-known sink with a stable input bus to attach to.
type endpointProcessor struct{ channels int }

func (e *endpointProcessor) Process(in [][]float32, framesIn uint64, out [][]float32, framesOut uint64, globalTime uint64) (uint64, uint64, datasource.Result) {
	n := framesIn
	if framesOut < n {
		n = framesOut
	}
	ch := uint64(e.channels)
	if len(in) == 0 || in[0] == nil {
		for i := uint64(0); i < framesOut*ch; i++ {
			out[0][i] = 0
		}
		return 0, framesOut, datasource.Success
	}
	copy(out[0][:n*ch], in[0][:n*ch])
	for i := n * ch; i < framesOut*ch; i++ {
		out[0][i] = 0
	}
	return n, framesOut, datasource.Success
}

func (e *endpointProcessor) InputBusCount() int  { return 1 }
func (e *endpointProcessor) OutputBusCount() int { return 1 }
