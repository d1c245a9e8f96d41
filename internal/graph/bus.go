package graph

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

// InputBus is the head of a forward-only intrusive list of attached
// OutputBus records. mu guards list mutation (attach/detach); iteration
// never takes mu, relying instead on nextCounter to make detach wait-safe.
type InputBus struct {
	owner    *Node
	busIndex int
	channels int

	mu          sync.Mutex
	head        atomic.Pointer[OutputBus]
	nextCounter atomic.Int32
}

func (ib *InputBus) Channels() int { return ib.channels }

// first returns the first attached OutputBus (skipping any mid-detach),
// bumping its reference count so a concurrent Detach waits for this reader
// to finish. Returns nil if nothing is attached.
func (ib *InputBus) first() *OutputBus {
	ib.nextCounter.Add(1)
	defer ib.nextCounter.Add(-1)
	cur := ib.head.Load()
	for cur != nil && !cur.isAttached.Load() {
		cur = cur.next.Load()
	}
	if cur != nil {
		cur.refCount.Add(1)
	}
	return cur
}

// next advances the iterator from cur, releasing cur's reference count
// after acquiring the next one so a bus is never dereferenced with a zero
// refcount mid-step.
func (ib *InputBus) next(cur *OutputBus) *OutputBus {
	ib.nextCounter.Add(1)
	defer ib.nextCounter.Add(-1)
	nxt := cur.next.Load()
	for nxt != nil && !nxt.isAttached.Load() {
		nxt = nxt.next.Load()
	}
	if nxt != nil {
		nxt.refCount.Add(1)
	}
	cur.refCount.Add(-1)
	return nxt
}

// OutputBus is a list node owned by a source node, describing one output
// stream and (when attached) where it feeds.
type OutputBus struct {
	owner    *Node
	busIndex int
	channels int

	volumeBits atomic.Uint32
	isAttached atomic.Bool
	refCount   atomic.Int32

	mu   sync.Mutex // guards attach/detach bookkeeping on this bus; never held across Process
	next atomic.Pointer[OutputBus]
	prev atomic.Pointer[OutputBus] // only ever read/written by detach

	destNode     *Node
	destBusIndex int
}

func (ob *OutputBus) Channels() int { return ob.channels }
func (ob *OutputBus) Owner() *Node  { return ob.owner }

func (ob *OutputBus) Volume() float32 { return math.Float32frombits(ob.volumeBits.Load()) }
func (ob *OutputBus) SetVolume(v float32) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	ob.setVolume(v)
}
func (ob *OutputBus) setVolume(v float32) { ob.volumeBits.Store(math.Float32bits(v)) }

func (ob *OutputBus) IsAttached() bool { return ob.isAttached.Load() }

// Attach connects source's output bus srcBusIdx to dest's input bus
// destBusIdx, detaching any previous destination first. Fails with
// InvalidArgs if channel counts don't match.
func Attach(source *Node, srcBusIdx int, dest *Node, destBusIdx int) datasource.Result {
	ob := source.outputBuses[srcBusIdx]
	ib := dest.inputBuses[destBusIdx]
	if ob.channels != ib.channels {
		return datasource.InvalidArgs
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.isAttached.Load() {
		ob.detachLocked()
	}
	ob.destNode = dest
	ob.destBusIndex = destBusIdx

	ib.mu.Lock()
	old := ib.head.Load()
	ob.next.Store(old)
	ob.prev.Store(nil)
	if old != nil {
		old.prev.Store(ob)
	}
	ib.head.Store(ob)
	ib.mu.Unlock()

	ob.isAttached.Store(true)
	return datasource.Success
}

// Detach disconnects source's output bus srcBusIdx, blocking until any
// in-flight reader of it (on the render thread) has finished.
func Detach(source *Node, srcBusIdx int) datasource.Result {
	ob := source.outputBuses[srcBusIdx]
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if !ob.isAttached.Load() {
		return datasource.Success
	}
	ob.detachLocked()
	return datasource.Success
}

// detachLocked performs the splice-and-wait; caller must hold ob.mu.
func (ob *OutputBus) detachLocked() {
	ob.isAttached.Store(false)
	dest := ob.destNode
	if dest == nil {
		return
	}
	ib := dest.inputBuses[ob.destBusIndex]

	ib.mu.Lock()
	prev := ob.prev.Load()
	next := ob.next.Load()
	if prev != nil {
		prev.next.Store(next)
	} else {
		ib.head.Store(next)
	}
	if next != nil {
		next.prev.Store(prev)
	}
	ob.next.Store(nil)
	ob.prev.Store(nil)
	ob.destNode = nil
	ib.mu.Unlock()

	for ib.nextCounter.Load() != 0 {
		runtime.Gosched()
	}
	for ob.refCount.Load() != 0 {
		runtime.Gosched()
	}
}
