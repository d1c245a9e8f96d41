package resource

import (
	"bytes"
	"io"
	"runtime"
	"testing"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/vfs"
)

// fakeFile satisfies vfs.File over an in-memory byte slice.
type fakeFile struct{ *bytes.Reader }

func (fakeFile) Close() error { return nil }

type fakeVFS struct{ files map[string][]byte }

func (v fakeVFS) Open(path string) (vfs.File, datasource.Result) {
	data, ok := v.files[path]
	if !ok {
		return nil, datasource.InvalidArgs
	}
	return fakeFile{bytes.NewReader(data)}, datasource.Success
}

func (v fakeVFS) ReadFile(path string) ([]byte, datasource.Result) {
	data, ok := v.files[path]
	if !ok {
		return nil, datasource.InvalidArgs
	}
	return data, datasource.Success
}

// fakeDecoder treats the file's raw bytes as little-endian f32 mono
// samples at 48kHz; it exists purely to exercise the manager without a
// real codec.
type fakeDecoder struct {
	f      vfs.File
	data   []float32
	cursor uint64
}

func newFakeDecoder(f vfs.File, path string) (datasource.Decoder, datasource.Result) {
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, datasource.InvalidOperation
	}
	n := len(raw) / 4
	data := make([]float32, n)
	for i := 0; i < n; i++ {
		v := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		data[i] = float32(int32(v)) // store a plain integer code as the "sample" for test visibility
	}
	return &fakeDecoder{f: f, data: data}, datasource.Success
}

func (d *fakeDecoder) ReadPCMFrames(dst []float32, isLooping bool) (uint64, datasource.Result) {
	total := uint64(len(d.data))
	if d.cursor >= total {
		if !isLooping {
			return 0, datasource.AtEnd
		}
		d.cursor = 0
	}
	n := uint64(len(dst))
	avail := total - d.cursor
	if n > avail {
		n = avail
	}
	copy(dst, d.data[d.cursor:d.cursor+n])
	d.cursor += n
	if n < uint64(len(dst)) && !isLooping {
		return n, datasource.AtEnd
	}
	return n, datasource.Success
}
func (d *fakeDecoder) SeekToPCMFrame(frame uint64) datasource.Result { d.cursor = frame; return datasource.Success }
func (d *fakeDecoder) GetDataFormat() (datasource.Format, datasource.Result) {
	return datasource.Format{Channels: 1, Rate: 48000}, datasource.Success
}
func (d *fakeDecoder) GetCursorInPCMFrames() (uint64, datasource.Result) { return d.cursor, datasource.Success }
func (d *fakeDecoder) GetLengthInPCMFrames() (uint64, datasource.Result) {
	return uint64(len(d.data)), datasource.Success
}
func (d *fakeDecoder) Close() error { return d.f.Close() }

func encodeFrames(values ...int32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		u := uint32(v)
		buf[i*4] = byte(u)
		buf[i*4+1] = byte(u >> 8)
		buf[i*4+2] = byte(u >> 16)
		buf[i*4+3] = byte(u >> 24)
	}
	return buf
}

func newTestManager(files map[string][]byte) *Manager {
	return NewManager(fakeVFS{files: files}, newFakeDecoder, 2, nil)
}

func TestInitDataBufferSyncReadsWholeFile(t *testing.T) {
	m := newTestManager(map[string][]byte{"a.raw": encodeFrames(1, 2, 3, 4)})
	defer m.Close()

	h, res := m.InitDataBuffer("a.raw", InitOptions{Mode: Sync})
	if res != datasource.Success {
		t.Fatalf("InitDataBuffer: %v", res)
	}
	format, res := h.GetDataFormat()
	if res != datasource.Success || format.Channels != 1 {
		t.Fatalf("GetDataFormat: %v %+v", res, format)
	}

	dst := make([]float32, 4)
	n, res := h.ReadPCMFrames(dst, false)
	if res != datasource.Success || n != 4 {
		t.Fatalf("ReadPCMFrames: n=%d res=%v", n, res)
	}
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d]=%v want %v", i, dst[i], want[i])
		}
	}
}

func TestInitDataBufferSharesNodeByPath(t *testing.T) {
	m := newTestManager(map[string][]byte{"a.raw": encodeFrames(9, 9, 9)})
	defer m.Close()

	h1, _ := m.InitDataBuffer("a.raw", InitOptions{Mode: Sync})
	h2, _ := m.InitDataBuffer("a.raw", InitOptions{Mode: Sync})
	if h1.node != h2.node {
		t.Fatal("expected both handles to share the same underlying node")
	}
	if got := h1.node.refCount.Load(); got != 2 {
		t.Fatalf("refCount = %d, want 2", got)
	}

	h1.Release(m)
	if h1.node.refCount.Load() != 1 {
		t.Fatal("expected refCount 1 after first release")
	}
	h2.Release(m)
	m.buffersMu.Lock()
	_, stillThere := m.buffers[h1.node.hash]
	m.buffersMu.Unlock()
	if stillThere {
		t.Fatal("node should be removed once the last reference releases")
	}
}

func TestInitDataBufferAsyncWaitInit(t *testing.T) {
	m := newTestManager(map[string][]byte{"a.raw": encodeFrames(5, 6)})
	defer m.Close()

	h, res := m.InitDataBuffer("a.raw", InitOptions{Mode: Async, WaitInit: true})
	if res != datasource.Success {
		t.Fatalf("InitDataBuffer: %v", res)
	}
	format, res := h.GetDataFormat()
	if res != datasource.Success {
		t.Fatalf("format should be known immediately after WaitInit: %v", res)
	}
	if format.Channels != 1 {
		t.Fatalf("channels = %d, want 1", format.Channels)
	}
}

func TestDataStreamReadPCMFramesMatchesSource(t *testing.T) {
	m := newTestManager(map[string][]byte{"s.raw": encodeFrames(1, 2, 3, 4, 5, 6, 7, 8)})
	defer m.Close()

	h, res := m.InitDataStream("s.raw", false, InitOptions{Mode: Sync})
	if res != datasource.Success {
		t.Fatalf("InitDataStream: %v", res)
	}
	defer h.Close()

	dst := make([]float32, 8)
	n, res := h.ReadPCMFrames(dst, false)
	if res != datasource.Success {
		t.Fatalf("ReadPCMFrames: %v", res)
	}
	if n != 8 {
		t.Fatalf("n = %d, want 8", n)
	}
	for i, v := range dst {
		if v != float32(i+1) {
			t.Fatalf("dst[%d] = %v, want %v", i, v, i+1)
		}
	}
}

func TestDataStreamSeekRepositions(t *testing.T) {
	m := newTestManager(map[string][]byte{"s.raw": encodeFrames(10, 20, 30, 40, 50)})
	defer m.Close()

	h, _ := m.InitDataStream("s.raw", false, InitOptions{Mode: Sync})
	defer h.Close()

	if res := h.SeekToPCMFrame(3); res != datasource.Success {
		t.Fatalf("SeekToPCMFrame: %v", res)
	}
	// The seek job runs asynchronously; Sync mode only guarantees the load
	// job ran inline, so poll briefly for the seek to land.
	for i := 0; i < 100000 && h.node.seekCounter.Load() > 0; i++ {
		runtime.Gosched()
	}

	dst := make([]float32, 2)
	n, res := h.ReadPCMFrames(dst, false)
	if res != datasource.Success || n != 2 {
		t.Fatalf("ReadPCMFrames after seek: n=%d res=%v", n, res)
	}
	if dst[0] != 40 || dst[1] != 50 {
		t.Fatalf("dst = %v, want [40 50]", dst)
	}
}
