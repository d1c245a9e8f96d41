// Package graph implements the processing DAG: nodes with typed input and
// output buses, lock-light attach/detach safe against a concurrent render
// thread, and the per-node output cache that lets a node with several
// output buses run its Process callback at most once per graph tick.
package graph

import (
	"sync"
	"sync/atomic"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

// State is a node's gross Started/Stopped gate. A node also carries a pair
// of scheduled global-time boundaries (stateTimes) at which it crosses into
// Started or Stopped; stateByTimeRange folds the two together so a single
// Process call spanning a boundary only has its leading or trailing portion
// silenced, instead of the whole call being dropped or let through.
type State int32

const (
	Started State = iota
	Stopped
)

// noStateTime marks a stateTimes slot with no scheduled transition.
const noStateTime = ^uint64(0)

// ClearStateTime cancels a previously scheduled state transition when passed
// to SetStateTime.
const ClearStateTime = noStateTime

// Processor is the per-node-kind behavior a Node drives. Unlike a
// pointer-out-params C callback, Process reports consumed/produced as
// ordinary return values — more idiomatic Go, same information.
type Processor interface {
	// Process runs one unit of work: up to framesIn frames are available in
	// each slice of in (empty for a 0-input node), and up to framesOut
	// frames of storage are available in each slice of out. It returns how
	// many input frames were actually consumed and output frames actually
	// produced; these may differ (a resampler changes the ratio).
	Process(in [][]float32, framesIn uint64, out [][]float32, framesOut uint64, globalTime uint64) (consumed, produced uint64, res datasource.Result)

	InputBusCount() int
	OutputBusCount() int
}

// Node is a polymorphic processing element: a Processor plus the bus
// plumbing and per-tick cache the graph needs to read it safely from
// multiple downstream consumers.
type Node struct {
	proc Processor

	inputBuses  []*InputBus
	outputBuses []*OutputBus

	cacheCapFrames uint64
	cachedIn       [][]float32 // per input bus, cacheCapFrames*channels each
	cachedOut      [][]float32 // per output bus, cacheCapFrames*channels each

	mu                   sync.Mutex // guards the cache fields below across bus reads in one tick
	lastProcessedTick    uint32     // tick at which Process last ran; cache is valid for this tick only
	cachedFrameCountIn   uint64
	cachedFrameCountOut  uint64
	cachedLeadingOut     uint64 // leading silence frames folded into this tick's cached output
	consumedFrameCountIn uint64

	state      atomic.Int32
	stateTimes [2]atomic.Uint64 // indexed by State: global time at which the node crosses into that state
	localTime  atomic.Uint64

	// readCounter holds 0 between ticks, tick+1 while this node's own
	// Process call is in progress (marking a concurrent pull from an
	// ancestor as a cycle to be silenced), and tick once it has completed
	// processing for the current graph tick (so sibling bus reads of this
	// node within the same tick are served from cache rather than treated
	// as a cycle).
	readCounter atomic.Uint32
}

// NewNode constructs a Node around proc, with one InputBus per entry of
// inputChannels and one OutputBus per entry of outputChannels.
// cacheCapFrames bounds how many frames of cache each bus gets; it is
// irrelevant for the 0-input/1-output fast path, which bypasses the cache
// entirely.
func NewNode(proc Processor, inputChannels []int, outputChannels []int, cacheCapFrames uint64) *Node {
	if cacheCapFrames == 0 {
		cacheCapFrames = 1024
	}
	n := &Node{proc: proc, cacheCapFrames: cacheCapFrames}
	n.state.Store(int32(Started))
	n.stateTimes[Started].Store(noStateTime)
	n.stateTimes[Stopped].Store(noStateTime)

	for i, ch := range inputChannels {
		n.inputBuses = append(n.inputBuses, &InputBus{owner: n, busIndex: i, channels: ch})
	}
	for i, ch := range outputChannels {
		ob := &OutputBus{owner: n, busIndex: i, channels: ch}
		ob.setVolume(1)
		n.outputBuses = append(n.outputBuses, ob)
	}

	if len(inputChannels) > 0 || len(outputChannels) > 1 {
		n.cachedIn = make([][]float32, len(inputChannels))
		for i, ch := range inputChannels {
			n.cachedIn[i] = make([]float32, cacheCapFrames*uint64(ch))
		}
		n.cachedOut = make([][]float32, len(outputChannels))
		for i, ch := range outputChannels {
			n.cachedOut[i] = make([]float32, cacheCapFrames*uint64(ch))
		}
	}
	return n
}

func (n *Node) InputBus(i int) *InputBus   { return n.inputBuses[i] }
func (n *Node) OutputBus(i int) *OutputBus { return n.outputBuses[i] }
func (n *Node) InputBusCount() int         { return len(n.inputBuses) }
func (n *Node) OutputBusCount() int        { return len(n.outputBuses) }

func (n *Node) State() State     { return State(n.state.Load()) }
func (n *Node) SetState(s State) { n.state.Store(int32(s)) }

// StateTime reports the global time at which the node is scheduled to cross
// into s, or false if no such transition is scheduled.
func (n *Node) StateTime(s State) (uint64, bool) {
	t := n.stateTimes[s].Load()
	return t, t != noStateTime
}

// SetStateTime schedules the node to cross into s at globalTime. Passing
// ClearStateTime cancels a previously scheduled transition.
func (n *Node) SetStateTime(s State, globalTime uint64) { n.stateTimes[s].Store(globalTime) }

// stateByTimeRange resolves this node's effective state across the span
// [rangeStart, rangeStart+requested), folding the gross Started/Stopped gate
// together with any scheduled stateTimes crossing. It reports:
//   - state: Stopped if the whole span is silent, Started otherwise.
//   - leading: how many frames at the head of the span must be silenced
//     because a scheduled start boundary falls inside it.
//   - live: how many frames after the leading silence are actually eligible
//     to be processed, truncated by a scheduled stop boundary falling
//     inside the remainder of the span.
//
// Frames beyond leading+live are simply not produced; callers already treat
// a shortfall against the requested count as trailing silence.
func (n *Node) stateByTimeRange(rangeStart, requested uint64) (state State, live uint64, leading uint64) {
	rangeEnd := rangeStart + requested
	started := n.State() == Started

	if !started {
		startAt := n.stateTimes[Started].Load()
		if startAt == noStateTime || startAt >= rangeEnd {
			return Stopped, 0, 0
		}
		if startAt > rangeStart {
			leading = startAt - rangeStart
		}
		started = true
	}

	live = requested - leading
	if stopAt := n.stateTimes[Stopped].Load(); stopAt != noStateTime {
		liveStart := rangeStart + leading
		switch {
		case stopAt <= liveStart:
			if leading == 0 {
				return Stopped, 0, 0
			}
			live = 0
		case stopAt < rangeEnd:
			live = stopAt - liveStart
		}
	}
	return Started, live, leading
}

// LocalTime reports how many output frames this node has produced so far.
func (n *Node) LocalTime() uint64 { return n.localTime.Load() }

// SetLocalTime overrides the produced-frame counter, used after a seek so a
// node's notion of its own position matches the data source's new cursor.
func (n *Node) SetLocalTime(t uint64) { n.localTime.Store(t) }

// isFastPath reports whether this node can skip the cache entirely: 0
// inputs and exactly 1 output means there is only ever one reader's worth
// of work to do per tick, so there is nothing to memoize.
func (n *Node) isFastPath() bool {
	return len(n.inputBuses) == 0 && len(n.outputBuses) == 1
}
