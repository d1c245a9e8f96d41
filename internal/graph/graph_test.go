package graph

import (
	"sync"
	"testing"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

// countingSource produces a constant value and counts how many times
// ReadPCMFrames is actually called, so tests can assert a node's Process
// runs at most once per graph tick.
type countingSource struct {
	mu     sync.Mutex
	value  float32
	calls  int
	frames uint64
}

func (s *countingSource) ReadPCMFrames(dst []float32, isLooping bool) (uint64, datasource.Result) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	for i := range dst {
		dst[i] = s.value
	}
	n := uint64(len(dst))
	s.frames += n
	return n, datasource.Success
}

func (s *countingSource) SeekToPCMFrame(uint64) datasource.Result { return datasource.Success }
func (s *countingSource) GetDataFormat() (datasource.Format, datasource.Result) {
	return datasource.Format{Channels: 1, Rate: 48000}, datasource.Success
}
func (s *countingSource) GetCursorInPCMFrames() (uint64, datasource.Result) { return 0, datasource.Success }
func (s *countingSource) GetLengthInPCMFrames() (uint64, datasource.Result) {
	return 0, datasource.NotImplemented
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPassthroughBitExact(t *testing.T) {
	g := New(1)
	src := &countingSource{value: 0.5}
	leaf := NewDataSourceNode(src, 1, false)

	if res := Attach(leaf, 0, g.Endpoint(), 0); res != datasource.Success {
		t.Fatalf("attach failed: %v", res)
	}

	out := make([]float32, 8)
	n, res := g.ReadPCMFrames(out, 8)
	if res != datasource.Success {
		t.Fatalf("ReadPCMFrames: %v", res)
	}
	if n != 8 {
		t.Fatalf("got %d frames, want 8", n)
	}
	for i, v := range out {
		if v != 0.5 {
			t.Fatalf("out[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestSplitterFanOutSumsToSourceVolume(t *testing.T) {
	g := New(1)
	src := &countingSource{value: 1.0}
	leaf := NewDataSourceNode(src, 1, false)
	splitter := NewSplitterNode(1, 2, 0)

	if res := Attach(leaf, 0, splitter, 0); res != datasource.Success {
		t.Fatalf("attach leaf->splitter: %v", res)
	}

	mixer := NewSplitterNode(1, 1, 0) // reused as a 1-in/1-out pass node feeding the endpoint
	if res := Attach(splitter, 0, mixer, 0); res != datasource.Success {
		t.Fatalf("attach splitter bus0->mixer: %v", res)
	}
	splitter.OutputBus(0).SetVolume(0.25)

	// Route the splitter's second output bus into the SAME destination input
	// bus as the first, so InputBus.Read must mix both contributions.
	if res := Attach(splitter, 1, mixer, 0); res != datasource.Success {
		t.Fatalf("attach splitter bus1->mixer: %v", res)
	}
	splitter.OutputBus(1).SetVolume(0.75)

	if res := Attach(mixer, 0, g.Endpoint(), 0); res != datasource.Success {
		t.Fatalf("attach mixer->endpoint: %v", res)
	}

	out := make([]float32, 4)
	n, res := g.ReadPCMFrames(out, 4)
	if res != datasource.Success {
		t.Fatalf("ReadPCMFrames: %v", res)
	}
	if n != 4 {
		t.Fatalf("got %d frames, want 4", n)
	}
	for i, v := range out {
		if diff := v - 1.0; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("out[%d] = %v, want ~1.0 (0.25+0.75 of source)", i, v)
		}
	}
	if got := src.Calls(); got != 1 {
		t.Fatalf("leaf source read %d times in one tick, want 1 (per-tick cache should dedupe)", got)
	}
}

func TestCycleTerminatesAndSourceReadOnce(t *testing.T) {
	g := New(1)
	src := &countingSource{value: 1.0}
	leaf := NewDataSourceNode(src, 1, false)
	splitter := NewSplitterNode(1, 2, 0)

	if res := Attach(leaf, 0, splitter, 0); res != datasource.Success {
		t.Fatalf("attach leaf->splitter: %v", res)
	}
	if res := Attach(splitter, 0, g.Endpoint(), 0); res != datasource.Success {
		t.Fatalf("attach splitter bus0->endpoint: %v", res)
	}
	// Route the splitter's second output bus back into its own input bus: a
	// direct self-loop.
	if res := Attach(splitter, 1, splitter, 0); res != datasource.Success {
		t.Fatalf("attach splitter bus1->splitter in0 (self-loop): %v", res)
	}

	out := make([]float32, 4)
	n, res := g.ReadPCMFrames(out, 4)
	if res != datasource.Success {
		t.Fatalf("ReadPCMFrames: %v", res)
	}
	if n != 4 {
		t.Fatalf("got %d frames, want 4", n)
	}
	for i, v := range out {
		if v != v { // NaN check
			t.Fatalf("out[%d] is NaN", i)
		}
	}
	if got := src.Calls(); got != 1 {
		t.Fatalf("leaf source read %d times in one tick, want exactly 1", got)
	}
}

func TestStoppedNodeProducesSilence(t *testing.T) {
	g := New(1)
	src := &countingSource{value: 1.0}
	leaf := NewDataSourceNode(src, 1, false)
	if res := Attach(leaf, 0, g.Endpoint(), 0); res != datasource.Success {
		t.Fatalf("attach: %v", res)
	}
	leaf.SetState(Stopped)

	out := make([]float32, 8)
	n, res := g.ReadPCMFrames(out, 8)
	if res != datasource.Success {
		t.Fatalf("ReadPCMFrames: %v", res)
	}
	if n != 8 {
		t.Fatalf("got %d frames, want 8 (short reads are silenced downstream)", n)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0 from a Stopped node", i, v)
		}
	}
	if got := src.Calls(); got != 0 {
		t.Fatalf("leaf source read %d times, want 0 for a Stopped node", got)
	}
}

func TestStateTimeSilencesLeadingSpanOnly(t *testing.T) {
	leaf := NewDataSourceNode(&countingSource{value: 1.0}, 1, false)
	leaf.SetState(Stopped)
	leaf.SetStateTime(Started, 4)

	out := make([]float32, 8)
	produced, res := leaf.readOutputBus(1, 0, out, 8, 0)
	if res != datasource.Success {
		t.Fatalf("readOutputBus: %v", res)
	}
	if produced != 8 {
		t.Fatalf("produced = %d, want 8 (4 silent + 4 live)", produced)
	}
	for i := 0; i < 4; i++ {
		if out[i] != 0 {
			t.Fatalf("out[%d] = %v, want 0 before the scheduled start boundary", i, out[i])
		}
	}
	for i := 4; i < 8; i++ {
		if out[i] != 1.0 {
			t.Fatalf("out[%d] = %v, want 1.0 past the scheduled start boundary", i, out[i])
		}
	}
}

func TestStateTimeTruncatesAtScheduledStop(t *testing.T) {
	leaf := NewDataSourceNode(&countingSource{value: 1.0}, 1, false)
	leaf.SetStateTime(Stopped, 4)

	out := make([]float32, 8)
	for i := range out {
		out[i] = -1 // sentinel so untouched tail is easy to spot
	}
	produced, res := leaf.readOutputBus(1, 0, out, 8, 0)
	if res != datasource.Success {
		t.Fatalf("readOutputBus: %v", res)
	}
	if produced != 4 {
		t.Fatalf("produced = %d, want 4 (truncated at the scheduled stop boundary)", produced)
	}
}

func TestConcurrentAttachDetachWhileReading(t *testing.T) {
	g := New(1)
	src := &countingSource{value: 0.25}
	leaf := NewDataSourceNode(src, 1, false)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		out := make([]float32, 16)
		for {
			select {
			case <-stop:
				return
			default:
				g.ReadPCMFrames(out, 16)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		Attach(leaf, 0, g.Endpoint(), 0)
		Detach(leaf, 0)
	}
	close(stop)
	wg.Wait()
}
