package graph

import "github.com/mackron/miniaudio-sub001/internal/datasource"

// NewDataSourceNode wraps a DataSource as a 0-input, 1-output leaf. Leaves
// always take the fast path: there is nothing to cache when a node has
// only one output.
func NewDataSourceNode(ds datasource.DataSource, channels int, isLooping bool) *Node {
	return NewNode(&dataSourceProcessor{ds: ds, channels: channels, looping: isLooping}, nil, []int{channels}, 0)
}

type dataSourceProcessor struct {
	ds       datasource.DataSource
	channels int
	looping  bool
}

func (p *dataSourceProcessor) Process(in [][]float32, framesIn uint64, out [][]float32, framesOut uint64, globalTime uint64) (uint64, uint64, datasource.Result) {
	ch := uint64(p.channels)
	buf := out[0][:framesOut*ch]
	n, res := p.ds.ReadPCMFrames(buf, p.looping)
	if res != datasource.Success && res != datasource.AtEnd {
		for i := range buf {
			buf[i] = 0
		}
		return 0, framesOut, res
	}
	for i := n * ch; i < framesOut*ch; i++ {
		buf[i] = 0
	}
	return 0, framesOut, datasource.Success
}

func (p *dataSourceProcessor) InputBusCount() int  { return 0 }
func (p *dataSourceProcessor) OutputBusCount() int { return 1 }

// NewSplitterNode returns a 1-input, outputCount-output node that copies its
// single input to every output bus, each independently volume-scaled via
// that bus's OutputBus.SetVolume.
func NewSplitterNode(channels, outputCount int, cacheCapFrames uint64) *Node {
	outs := make([]int, outputCount)
	for i := range outs {
		outs[i] = channels
	}
	return NewNode(&splitterProcessor{channels: channels, outputs: outputCount}, []int{channels}, outs, cacheCapFrames)
}

type splitterProcessor struct {
	channels int
	outputs  int
}

func (p *splitterProcessor) Process(in [][]float32, framesIn uint64, out [][]float32, framesOut uint64, globalTime uint64) (uint64, uint64, datasource.Result) {
	n := framesIn
	if framesOut < n {
		n = framesOut
	}
	ch := uint64(p.channels)
	for _, o := range out {
		if len(in) == 0 || in[0] == nil {
			for i := uint64(0); i < framesOut*ch; i++ {
				o[i] = 0
			}
			continue
		}
		copy(o[:n*ch], in[0][:n*ch])
		for i := n * ch; i < framesOut*ch; i++ {
			o[i] = 0
		}
	}
	return n, framesOut, datasource.Success
}

func (p *splitterProcessor) InputBusCount() int  { return 1 }
func (p *splitterProcessor) OutputBusCount() int { return p.outputs }
