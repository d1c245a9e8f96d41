package resource

import (
	"sync"
	"sync/atomic"

	"github.com/mackron/miniaudio-sub001/internal/async"
	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/jobqueue"
)

// streamNode backs one DataStreamHandle: a decoder plus a two-page ring
// buffer, with every page/seek/free job for this node carrying an order
// checked against executionPointer so jobs apply in FIFO order without a
// per-node lock.
type streamNode struct {
	path string
	dec  datasource.Decoder

	format          datasource.Format
	totalFrameCount atomic.Uint64 // 0 until known (captured on the first loop wrap)

	isLooping atomic.Bool

	mu             sync.Mutex
	page           [2][]float32
	pageFrameCount [2]uint64
	pageValid      [2]bool
	isDecoderAtEnd bool
	currentPage    int

	relativeCursor uint64 // within currentPage
	absoluteCursor uint64

	seekCounter atomic.Int32

	executionCounter atomic.Uint64
	executionPointer atomic.Uint64

	result atomic.Value // datasource.Result
	ready  *async.Event
}

func (n *streamNode) loadResult() datasource.Result { return n.result.Load().(datasource.Result) }

func (n *streamNode) nextOrder() uint64 { return n.executionCounter.Add(1) - 1 }

type loadDataStreamPayload struct{ node *streamNode }
type pageDataStreamPayload struct {
	node      *streamNode
	pageIndex int
}
type seekDataStreamPayload struct {
	node  *streamNode
	frame uint64
}
type freeDataStreamPayload struct {
	node *streamNode
	done *async.Event
}

// DataStreamHandle is the public handle InitDataStream returns.
type DataStreamHandle struct {
	node *streamNode
	m    *Manager
}

// defaultPageFrames sizes a stream's pages when the decoder reports no rate
// (format.Rate == 0); otherwise each page holds one second at the decoded
// rate, computed in runLoadDataStream once the format is known.
const defaultPageFrames = 4096

// InitDataStream opens path as a streaming DataSource: a decoder plus a
// two-page look-ahead buffer serviced by job-queue workers. isLooping
// controls whether reaching the end wraps the decoder back to frame 0.
func (m *Manager) InitDataStream(path string, isLooping bool, opts InitOptions) (*DataStreamHandle, datasource.Result) {
	n := &streamNode{path: path, ready: async.NewEvent()}
	n.isLooping.Store(isLooping)
	n.result.Store(datasource.Busy)

	id := m.nextStreamID.Add(1)
	m.streamsMu.Lock()
	m.streams[id] = n
	m.streamsMu.Unlock()

	order := n.nextOrder()
	job := jobqueue.Job{Code: jobqueue.LoadDataStream, Order: order, Payload: loadDataStreamPayload{node: n}}

	if opts.Mode == Sync {
		m.dispatch(job)
	} else {
		m.jobs.Post(job)
		if opts.WaitInit {
			n.ready.Wait()
		}
	}
	return &DataStreamHandle{node: n, m: m}, datasource.Success
}

func (m *Manager) runLoadDataStream(n *streamNode) {
	dec, res := m.openConnector(n.path)
	if res != datasource.Success {
		m.log.Error("data stream open failed", "path", n.path, "event", n.ready.ID(), "result", res)
		n.result.Store(res)
		n.ready.OnSignal(async.Failed)
		return
	}
	format, res := dec.GetDataFormat()
	if res != datasource.Success {
		m.log.Error("data stream format query failed", "path", n.path, "event", n.ready.ID(), "result", res)
		dec.Close()
		n.result.Store(res)
		n.ready.OnSignal(async.Failed)
		return
	}

	n.mu.Lock()
	n.dec = dec
	n.format = format
	if length, lres := dec.GetLengthInPCMFrames(); lres == datasource.Success {
		n.totalFrameCount.Store(length)
	}
	pageFrames := uint64(format.Rate)
	if pageFrames == 0 {
		pageFrames = defaultPageFrames
	}
	n.page[0] = make([]float32, pageFrames*uint64(format.Channels))
	n.page[1] = make([]float32, pageFrames*uint64(format.Channels))
	n.mu.Unlock()

	n.result.Store(datasource.Success)
	n.ready.OnSignal(async.Complete)

	m.fillPage(n, 0)
	m.fillPage(n, 1)
}

// fillPage reads into page[idx] until it is full, looping the decoder back
// to frame 0 on a short read when isLooping is set; otherwise it flags
// isDecoderAtEnd once a read comes up short.
func (m *Manager) fillPage(n *streamNode, idx int) {
	n.mu.Lock()
	dec := n.dec
	ch := uint64(n.format.Channels)
	page := n.page[idx]
	n.mu.Unlock()
	if dec == nil || ch == 0 {
		return
	}

	looping := n.isLooping.Load()
	want := uint64(len(page)) / ch
	var written uint64
	for written < want {
		got, res := dec.ReadPCMFrames(page[written*ch:want*ch], false)
		written += got
		if res.IsFailure() {
			m.log.Error("data stream page decode failed", "path", n.path, "event", n.ready.ID(), "result", res)
		}
		if res == datasource.AtEnd || got == 0 {
			if !looping {
				n.mu.Lock()
				n.isDecoderAtEnd = true
				n.mu.Unlock()
				break
			}
			if n.totalFrameCount.Load() == 0 {
				// First wrap reveals the total length.
				cur, _ := dec.GetCursorInPCMFrames()
				n.totalFrameCount.Store(cur)
			}
			dec.SeekToPCMFrame(0)
		}
	}

	n.mu.Lock()
	n.pageFrameCount[idx] = written
	n.pageValid[idx] = true
	n.mu.Unlock()
}

// Map returns a view into the current page with up to remaining-in-page
// frames, for zero-copy consumption. Busy is returned during a seek or
// while the current page is still being filled; AtEnd only once the
// decoder is finished and no frames remain anywhere.
func (h *DataStreamHandle) Map(maxFrames uint64) ([]float32, uint64, datasource.Result) {
	n := h.node
	if n.seekCounter.Load() > 0 {
		return nil, 0, datasource.Busy
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	idx := n.currentPage
	if !n.pageValid[idx] {
		return nil, 0, datasource.Busy
	}
	remaining := n.pageFrameCount[idx] - n.relativeCursor
	if remaining == 0 {
		if n.isDecoderAtEnd {
			return nil, 0, datasource.AtEnd
		}
		return nil, 0, datasource.Busy
	}
	if maxFrames < remaining {
		remaining = maxFrames
	}
	ch := uint64(n.format.Channels)
	view := n.page[idx][n.relativeCursor*ch : (n.relativeCursor+remaining)*ch]
	return view, remaining, datasource.Success
}

// Unmap advances past n frames just consumed via Map, refilling and
// swapping pages on a boundary crossing.
func (h *DataStreamHandle) Unmap(frames uint64) datasource.Result {
	n := h.node
	n.mu.Lock()
	idx := n.currentPage
	n.relativeCursor += frames
	n.absoluteCursor += frames
	crossed := n.relativeCursor >= n.pageFrameCount[idx]
	n.mu.Unlock()

	if crossed {
		n.mu.Lock()
		old := n.currentPage
		n.pageValid[old] = false
		n.currentPage = 1 - old
		n.relativeCursor = 0
		n.mu.Unlock()

		order := n.nextOrder()
		h.m.jobs.Post(jobqueue.Job{Code: jobqueue.PageDataStream, Order: order, Payload: pageDataStreamPayload{node: n, pageIndex: old}})
	}
	return datasource.Success
}

func (m *Manager) runPageDataStream(n *streamNode, pageIndex int) {
	m.fillPage(n, pageIndex)
}

// ReadPCMFrames implements DataSource in terms of repeated Map/Unmap.
func (h *DataStreamHandle) ReadPCMFrames(dst []float32, isLooping bool) (uint64, datasource.Result) {
	n := h.node
	n.isLooping.Store(isLooping)
	ch := uint64(n.format.Channels)
	if ch == 0 {
		return 0, datasource.Busy
	}
	requested := uint64(len(dst)) / ch

	var written uint64
	for written < requested {
		view, got, res := h.Map(requested - written)
		if res != datasource.Success {
			if res == datasource.AtEnd && written > 0 {
				return written, datasource.Success
			}
			return written, res
		}
		copy(dst[written*ch:(written+got)*ch], view)
		h.Unmap(got)
		written += got
	}
	return written, datasource.Success
}

func (h *DataStreamHandle) GetDataFormat() (datasource.Format, datasource.Result) {
	if h.node.loadResult() == datasource.Busy {
		return datasource.Format{}, datasource.Busy
	}
	return h.node.format, datasource.Success
}

func (h *DataStreamHandle) GetCursorInPCMFrames() (uint64, datasource.Result) {
	return h.node.absoluteCursor, datasource.Success
}

func (h *DataStreamHandle) GetLengthInPCMFrames() (uint64, datasource.Result) {
	if l := h.node.totalFrameCount.Load(); l != 0 {
		return l, datasource.Success
	}
	return 0, datasource.NotImplemented
}

// SeekToPCMFrame invalidates both pages and posts a SeekDataStream job;
// reads return Busy until the job completes and refills them.
func (h *DataStreamHandle) SeekToPCMFrame(frame uint64) datasource.Result {
	n := h.node
	n.mu.Lock()
	n.pageValid[0] = false
	n.pageValid[1] = false
	n.relativeCursor = 0
	n.absoluteCursor = frame
	n.mu.Unlock()
	n.seekCounter.Add(1)

	order := n.nextOrder()
	h.m.jobs.Post(jobqueue.Job{Code: jobqueue.SeekDataStream, Order: order, Payload: seekDataStreamPayload{node: n, frame: frame}})
	return datasource.Success
}

func (m *Manager) runSeekDataStream(n *streamNode, frame uint64) {
	n.mu.Lock()
	dec := n.dec
	n.mu.Unlock()
	if dec != nil {
		dec.SeekToPCMFrame(frame)
		n.mu.Lock()
		n.isDecoderAtEnd = false
		n.currentPage = 0
		n.mu.Unlock()
		m.fillPage(n, 0)
		m.fillPage(n, 1)
	}
	n.seekCounter.Add(-1)
}

// Close releases the stream's decoder and page buffers.
func (h *DataStreamHandle) Close() error {
	n := h.node
	n.result.Store(datasource.Unavailable)
	done := async.NewEvent()
	order := n.nextOrder()
	h.m.jobs.Post(jobqueue.Job{Code: jobqueue.FreeDataStream, Order: order, Payload: freeDataStreamPayload{node: n, done: done}})
	done.Wait()
	return nil
}

func (m *Manager) runFreeDataStream(n *streamNode) {
	m.log.Debug("data stream evicted", "path", n.path, "event", n.ready.ID())
	n.mu.Lock()
	dec := n.dec
	n.dec = nil
	n.page[0], n.page[1] = nil, nil
	n.mu.Unlock()
	if dec != nil {
		dec.Close()
	}
}
