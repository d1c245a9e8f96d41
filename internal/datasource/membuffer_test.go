package datasource

import "testing"

func ramp(n int, ch int) []float32 {
	out := make([]float32, n*ch)
	for i := 0; i < n; i++ {
		for c := 0; c < ch; c++ {
			out[i*ch+c] = float32(i)
		}
	}
	return out
}

func TestMemoryBufferReadExact(t *testing.T) {
	buf := NewMemoryBuffer(Format{Channels: 2, Rate: 48000}, ramp(8, 2), 8)
	dst := make([]float32, 16)
	n, res := buf.ReadPCMFrames(dst, false)
	if res != Success || n != 8 {
		t.Fatalf("got n=%d res=%v", n, res)
	}
	if dst[0] != 0 || dst[14] != 7 {
		t.Fatalf("unexpected samples: %v", dst)
	}
}

func TestMemoryBufferAtEnd(t *testing.T) {
	buf := NewMemoryBuffer(Format{Channels: 1, Rate: 48000}, ramp(4, 1), 4)
	dst := make([]float32, 4)
	if n, res := buf.ReadPCMFrames(dst, false); n != 4 || res != Success {
		t.Fatalf("first read: n=%d res=%v", n, res)
	}
	n, res := buf.ReadPCMFrames(dst, false)
	if n != 0 || res != AtEnd {
		t.Fatalf("expected AtEnd with 0 frames, got n=%d res=%v", n, res)
	}
}

func TestMemoryBufferLoop(t *testing.T) {
	buf := NewMemoryBuffer(Format{Channels: 1, Rate: 48000}, ramp(3, 1), 3)
	dst := make([]float32, 5)
	n, res := buf.ReadPCMFrames(dst, true)
	if res != Success || n != 5 {
		t.Fatalf("got n=%d res=%v", n, res)
	}
	want := []float32{0, 1, 2, 0, 1}
	for i, w := range want {
		if dst[i] != w {
			t.Fatalf("dst[%d] = %v, want %v (full=%v)", i, dst[i], w, dst)
		}
	}
}

func TestMemoryBufferSeek(t *testing.T) {
	buf := NewMemoryBuffer(Format{Channels: 1, Rate: 48000}, ramp(4, 1), 4)
	if res := buf.SeekToPCMFrame(2); res != Success {
		t.Fatalf("seek failed: %v", res)
	}
	dst := make([]float32, 2)
	n, res := buf.ReadPCMFrames(dst, false)
	if res != Success || n != 2 || dst[0] != 2 || dst[1] != 3 {
		t.Fatalf("got n=%d res=%v dst=%v", n, res, dst)
	}
	if res := buf.SeekToPCMFrame(99); res != InvalidArgs {
		t.Fatalf("expected InvalidArgs for out-of-range seek, got %v", res)
	}
}

func TestMemoryBufferPartialWatermark(t *testing.T) {
	// Simulates decode paging: only 2 of eventual 4 frames are valid so far.
	buf := NewMemoryBuffer(Format{Channels: 1, Rate: 48000}, make([]float32, 4), 2)
	dst := make([]float32, 4)
	n, res := buf.ReadPCMFrames(dst, false)
	if res != Success || n != 2 {
		t.Fatalf("expected watermark-limited read of 2 frames, got n=%d res=%v", n, res)
	}
	buf.SetFrameCount(4)
	n, res = buf.ReadPCMFrames(dst, false)
	if res != Success || n != 2 {
		t.Fatalf("expected remaining 2 frames after watermark advance, got n=%d res=%v", n, res)
	}
}
