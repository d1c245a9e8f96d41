// Package resource implements the ResourceManager: a path-keyed table of
// shared, refcounted DataBuffer nodes and a registry of streaming
// DataStream nodes, both serviced by a pool of job-queue workers that
// decode, page, seek, and free asset data off the render thread.
package resource

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mackron/miniaudio-sub001/internal/async"
	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/jobqueue"
	"github.com/mackron/miniaudio-sub001/internal/vfs"
)

// DecoderFactory opens a Decoder over an already-open file. The resource
// manager never picks a codec itself; every decode goes through an injected
// factory so the core stays codec-agnostic.
type DecoderFactory func(f vfs.File, path string) (datasource.Decoder, datasource.Result)

// LoadMode selects whether an Init call blocks the caller until decoding
// completes (Sync) or hands back a handle immediately and finishes on a
// job-queue worker (Async).
type LoadMode int

const (
	Sync LoadMode = iota
	Async
)

// InitOptions configures a DataBuffer or DataStream Init call.
type InitOptions struct {
	Mode LoadMode

	// WaitInit forces a caller using Async to block until the connector is
	// queryable (format and channel count known), so the returned handle
	// can be used immediately instead of returning Busy for a while.
	WaitInit bool
}

// Manager is the ResourceManager.
type Manager struct {
	vfsImpl vfs.VFS
	decode  DecoderFactory
	log     *slog.Logger

	jobs *jobqueue.Queue
	wg   sync.WaitGroup

	buffersMu sync.Mutex
	buffers   map[uint32]*bufferNode

	streamsMu    sync.Mutex
	streams      map[uint64]*streamNode
	nextStreamID atomic.Uint64
}

// NewManager starts jobWorkerCount workers servicing a blocking job queue.
// decode must be non-nil; vfsImpl defaults to vfs.Default, log defaults to
// slog.Default.
func NewManager(vfsImpl vfs.VFS, decode DecoderFactory, jobWorkerCount int, log *slog.Logger) *Manager {
	if vfsImpl == nil {
		vfsImpl = vfs.Default
	}
	if jobWorkerCount <= 0 {
		jobWorkerCount = 1
	}
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		vfsImpl: vfsImpl,
		decode:  decode,
		log:     log,
		jobs:    jobqueue.New(true),
		buffers: make(map[uint32]*bufferNode),
		streams: make(map[uint64]*streamNode),
	}
	for i := 0; i < jobWorkerCount; i++ {
		m.wg.Add(1)
		go m.workerLoop()
	}
	return m
}

// Close posts a Quit job and waits for every worker to observe it.
func (m *Manager) Close() {
	m.jobs.Post(jobqueue.Job{Code: jobqueue.Quit})
	m.wg.Wait()
}

func (m *Manager) workerLoop() {
	defer m.wg.Done()
	var job jobqueue.Job
	for {
		switch m.jobs.Next(&job) {
		case datasource.Cancelled:
			return // Quit was re-posted for the next sibling worker to see
		case datasource.Success:
			m.dispatch(job)
		}
	}
}

// dispatch runs one job. DataStream jobs carry a per-node order and are
// reposted to the back of the queue, untouched, if it isn't their turn yet
// — this gives per-node FIFO semantics without a per-node lock.
func (m *Manager) dispatch(job jobqueue.Job) {
	switch job.Code {
	case jobqueue.LoadDataBuffer:
		p := job.Payload.(loadDataBufferPayload)
		m.runLoadDataBuffer(p.node)

	case jobqueue.PageDataBuffer:
		p := job.Payload.(pageDataBufferPayload)
		m.runPageDataBuffer(p.node)

	case jobqueue.FreeDataBuffer:
		p := job.Payload.(freeDataBufferPayload)
		m.runFreeDataBuffer(p.node)
		p.done.OnSignal(async.Complete)

	case jobqueue.LoadDataStream:
		p := job.Payload.(loadDataStreamPayload)
		if !m.myTurn(p.node, job.Order) {
			m.jobs.Post(job)
			return
		}
		m.runLoadDataStream(p.node)
		p.node.executionPointer.Add(1)

	case jobqueue.PageDataStream:
		p := job.Payload.(pageDataStreamPayload)
		if !m.myTurn(p.node, job.Order) {
			m.jobs.Post(job)
			return
		}
		m.runPageDataStream(p.node, p.pageIndex)
		p.node.executionPointer.Add(1)

	case jobqueue.SeekDataStream:
		p := job.Payload.(seekDataStreamPayload)
		if !m.myTurn(p.node, job.Order) {
			m.jobs.Post(job)
			return
		}
		m.runSeekDataStream(p.node, p.frame)
		p.node.executionPointer.Add(1)

	case jobqueue.FreeDataStream:
		p := job.Payload.(freeDataStreamPayload)
		if !m.myTurn(p.node, job.Order) {
			m.jobs.Post(job)
			return
		}
		m.runFreeDataStream(p.node)
		p.node.executionPointer.Add(1)
		p.done.OnSignal(async.Complete)
	}
}

func (m *Manager) myTurn(n *streamNode, order uint64) bool {
	return n.executionPointer.Load() == order
}

// openConnector opens path through the injected VFS and decoder factory.
// The returned Decoder owns the underlying File; closing it closes both.
func (m *Manager) openConnector(path string) (datasource.Decoder, datasource.Result) {
	f, res := m.vfsImpl.Open(path)
	if res != datasource.Success {
		return nil, res
	}
	dec, res := m.decode(f, path)
	if res != datasource.Success {
		f.Close()
		return nil, res
	}
	return dec, datasource.Success
}
