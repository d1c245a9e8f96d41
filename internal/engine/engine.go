// Package engine ties the processing graph, the resource manager, and a
// device-facing ring buffer together into the single object an application
// embeds: create sounds and groups, attach them, and pump PCM out of a
// device callback.
package engine

import (
	"log/slog"
	"sync"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/decoder"
	"github.com/mackron/miniaudio-sub001/internal/enginenode"
	"github.com/mackron/miniaudio-sub001/internal/graph"
	"github.com/mackron/miniaudio-sub001/internal/resample"
	"github.com/mackron/miniaudio-sub001/internal/resource"
	"github.com/mackron/miniaudio-sub001/internal/vfs"
)

// DataSourceFlags mirror the bitmask the consumed-capability surface
// defines for sound creation.
type DataSourceFlags uint32

const (
	FlagStream              DataSourceFlags = 1 << 0
	FlagDecode              DataSourceFlags = 1 << 1
	FlagAsync               DataSourceFlags = 1 << 2
	FlagWaitInit            DataSourceFlags = 1 << 3
	FlagNoDefaultAttachment DataSourceFlags = 1 << 4
	FlagDisablePitch        DataSourceFlags = 1 << 5
)

// Options configures a new Engine.
type Options struct {
	Channels   int
	Rate       uint32
	PeriodSize uint64 // frames per graph tick; 0 defaults to 1024

	Algo resample.Algorithm

	// VFS and Decode default to an OS-backed filesystem and the opus/AAC
	// extension-dispatching factory in internal/decoder when left zero.
	VFS            vfs.VFS
	Decode         resource.DecoderFactory
	JobWorkerCount int // defaults to 2

	Log *slog.Logger
}

// Engine is the top-level object: a NodeGraph sized to the device's channel
// count, a ResourceManager for file-backed sounds, a ring buffer bridging
// arbitrary device callback sizes to the graph's fixed period, and a pool
// of recyclable "fire and forget" sounds.
type Engine struct {
	graph     *graph.NodeGraph
	resources *resource.Manager
	channels  int
	rate      uint32
	algo      resample.Algorithm
	log       *slog.Logger

	period uint64
	ring   *ring

	listener Listener

	inlineMu sync.Mutex
	inline   []*enginenode.Sound
}

// New constructs an Engine per opts.
func New(opts Options) *Engine {
	if opts.PeriodSize == 0 {
		opts.PeriodSize = 1024
	}
	if opts.JobWorkerCount <= 0 {
		opts.JobWorkerCount = 2
	}
	if opts.VFS == nil {
		opts.VFS = vfs.Default
	}
	if opts.Decode == nil {
		opts.Decode = decoder.New
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	e := &Engine{
		graph:     graph.New(opts.Channels),
		resources: resource.NewManager(opts.VFS, opts.Decode, opts.JobWorkerCount, opts.Log),
		channels:  opts.Channels,
		rate:      opts.Rate,
		algo:      opts.Algo,
		log:       opts.Log,
		period:    opts.PeriodSize,
		ring:      newRing(opts.PeriodSize, opts.Channels),
		listener:  NewListener(),
	}
	e.log.Info("engine started", "channels", opts.Channels, "rate", opts.Rate, "period", opts.PeriodSize)
	return e
}

// Close tears down the resource manager's worker pool. The graph itself
// owns no background goroutines.
func (e *Engine) Close() {
	e.resources.Close()
}

// Graph exposes the underlying NodeGraph for attaching raw nodes that
// aren't Sounds or Groups.
func (e *Engine) Graph() *graph.NodeGraph { return e.graph }

// Listener returns the current listener pose.
func (e *Engine) Listener() Listener { return e.listener }

// SetListener updates the listener pose.
func (e *Engine) SetListener(l Listener) { e.listener = l }

// ReadPCMFrames is the device-facing entry point: it services an arbitrary
// frame request out of a fixed-period ring buffer, refilling the ring from
// the graph exactly one period at a time whenever it runs dry.
func (e *Engine) ReadPCMFrames(out []float32, framesRequested uint64) (uint64, datasource.Result) {
	ch := uint64(e.channels)
	var written uint64

	for written < framesRequested {
		if e.ring.avail == 0 {
			e.ring.readPos = 0
			n, res := e.graph.ReadPCMFrames(e.ring.buf, e.ring.capacityFrames())
			e.ring.avail = n
			if n == 0 {
				for i := written * ch; i < framesRequested*ch; i++ {
					out[i] = 0
				}
				if res == datasource.Success {
					res = datasource.NoDataAvailable
				}
				return written, res
			}
		}
		take := framesRequested - written
		if take > e.ring.avail {
			take = e.ring.avail
		}
		copy(out[written*ch:(written+take)*ch], e.ring.buf[e.ring.readPos*ch:(e.ring.readPos+take)*ch])
		e.ring.readPos += take
		e.ring.avail -= take
		written += take
	}
	return written, datasource.Success
}

// openDataSource resolves path to a DataSource through the resource
// manager, choosing DataStream vs DataBuffer by FlagStream and forcing
// WAIT_INIT so the caller can read the format back synchronously.
func (e *Engine) openDataSource(path string, flags DataSourceFlags) (datasource.DataSource, datasource.Format, datasource.Result) {
	mode := resource.Sync
	if flags&FlagAsync != 0 {
		mode = resource.Async
	}
	opts := resource.InitOptions{Mode: mode, WaitInit: true}

	var ds datasource.DataSource
	if flags&FlagStream != 0 {
		h, res := e.resources.InitDataStream(path, false, opts)
		if res != datasource.Success {
			return nil, datasource.Format{}, res
		}
		ds = h
	} else {
		h, res := e.resources.InitDataBuffer(path, opts)
		if res != datasource.Success {
			return nil, datasource.Format{}, res
		}
		ds = h
	}
	format, res := ds.GetDataFormat()
	if res != datasource.Success {
		return nil, datasource.Format{}, res
	}
	return ds, format, datasource.Success
}

// CreateSoundFromFile opens path (format discovered synchronously, per the
// forced WAIT_INIT above) and builds a Sound around it. If dest is nil, the
// sound attaches to the graph endpoint unless FlagNoDefaultAttachment is
// set; otherwise it attaches to dest.
func (e *Engine) CreateSoundFromFile(path string, flags DataSourceFlags, dest *enginenode.Group) (*enginenode.Sound, datasource.Result) {
	ds, format, res := e.openDataSource(path, flags)
	if res != datasource.Success {
		return nil, res
	}

	snd, res := enginenode.NewSound(ds, int(format.Channels), e.channels, format.Rate, e.rate, false, e.algo)
	if res != datasource.Success {
		return nil, res
	}
	snd.SetPitchDisabled(flags&FlagDisablePitch != 0)

	if flags&FlagNoDefaultAttachment == 0 {
		target := e.graph.Endpoint()
		if dest != nil {
			target = dest.Node
		}
		if res := graph.Attach(snd.Node, 0, target, 0); res != datasource.Success {
			return snd, res
		}
	}
	return snd, datasource.Success
}

// PlaySoundInline plays path as a "fire and forget" sound: an existing,
// already-finished pool entry is recycled (its data source replaced) in
// preference to allocating a new node and graph attachment.
func (e *Engine) PlaySoundInline(path string, flags DataSourceFlags) (*enginenode.Sound, datasource.Result) {
	e.inlineMu.Lock()
	defer e.inlineMu.Unlock()

	for _, snd := range e.inline {
		if !snd.AtEnd() {
			continue
		}
		ds, format, res := e.openDataSource(path, flags)
		if res != datasource.Success {
			return nil, res
		}
		if res := snd.ReplaceDataSource(ds, int(format.Channels), format.Rate); res != datasource.Success {
			return nil, res
		}
		return snd, datasource.Success
	}

	snd, res := e.CreateSoundFromFile(path, flags, nil)
	if res != datasource.Success {
		return nil, res
	}
	e.inline = append(e.inline, snd)
	return snd, datasource.Success
}
