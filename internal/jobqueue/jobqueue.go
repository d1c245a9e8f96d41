// Package jobqueue implements a lock-free MPMC FIFO: a Michael-Scott queue
// over a fixed-size backing array, with the array index doubling as the
// intrusive "next" link so no separate list-node allocation is needed. Slot
// reuse is mediated by slotalloc so a stale index can never silently alias a
// freshly-posted job.
package jobqueue

import (
	"sync/atomic"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/slotalloc"
)

const none int32 = -1

type record struct {
	job  Job
	next atomic.Int32 // slot index of the next record, or none
}

// Queue is a fixed-capacity lock-free MPMC FIFO of Job records. The zero
// value is not usable; use New.
type Queue struct {
	alloc    *slotalloc.Allocator
	records  [slotalloc.Capacity]record
	head     atomic.Int32 // slot index of the dummy/consumed head
	tail     atomic.Int32 // slot index of the last record attached
	blocking bool
	sem      chan struct{} // counting semaphore mirroring queue depth, used only when blocking
}

// New returns an empty Queue. When blocking is true, Next blocks until a job
// is available instead of returning NoDataAvailable.
func New(blocking bool) *Queue {
	q := &Queue{
		alloc:    slotalloc.New(),
		blocking: blocking,
	}
	// Dummy head: allocate a slot up front so head == tail initially and the
	// dummy is never mistaken for a posted job.
	h, res := q.alloc.Alloc()
	if res != datasource.Success {
		panic("jobqueue: failed to allocate dummy head slot")
	}
	slot := int32(h.Slot())
	q.records[slot].next.Store(none)
	q.head.Store(slot)
	q.tail.Store(slot)
	if blocking {
		q.sem = make(chan struct{}, slotalloc.Capacity)
	}
	return q
}

// Post enqueues job. It fails with OutOfMemory if no slot is free.
func (q *Queue) Post(job Job) datasource.Result {
	h, res := q.alloc.Alloc()
	if res != datasource.Success {
		return datasource.OutOfMemory
	}
	slot := int32(h.Slot())
	q.records[slot].job = job
	q.records[slot].next.Store(none)

	for {
		tail := q.tail.Load()
		tailNext := q.records[tail].next.Load()
		if tailNext == none {
			if q.records[tail].next.CompareAndSwap(none, slot) {
				// Help advance the tail pointer; ignore failure, whoever
				// wins (including us on a retry below) moves it eventually.
				q.tail.CompareAndSwap(tail, slot)
				break
			}
		} else {
			// Tail lagged behind; help it catch up and retry.
			q.tail.CompareAndSwap(tail, tailNext)
		}
	}

	if q.blocking {
		q.sem <- struct{}{}
	}
	return datasource.Success
}

// Next dequeues the oldest job into out. In blocking mode it waits until a
// job is posted; in non-blocking mode it returns NoDataAvailable immediately
// if the queue is empty. If the dequeued job's Code is Quit, Next re-posts a
// Quit job (so sibling workers also observe termination) and returns
// Cancelled with out left as the Quit job.
func (q *Queue) Next(out *Job) datasource.Result {
	if q.blocking {
		<-q.sem
	}

	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := q.records[head].next.Load()

		if head == tail {
			if next == none {
				return datasource.NoDataAvailable
			}
			// Tail lagged behind a completed append; help and retry.
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		job := q.records[next].job
		if q.head.CompareAndSwap(head, next) {
			q.alloc.Free(slotalloc.Handle(uint32(head))) // old dummy slot retired
			*out = job
			break
		}
	}

	if out.Code == Quit {
		// Re-post so sibling workers also observe termination.
		_ = q.Post(*out)
		return datasource.Cancelled
	}
	return datasource.Success
}
