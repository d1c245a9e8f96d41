package filter

import (
	"math"
	"testing"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

func sine(n int, freq, rate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / rate))
	}
	return out
}

// In-place processing must match the two-buffer form.
func TestBiquadInPlaceMatchesTwoBuffer(t *testing.T) {
	in := sine(256, 440, 48000)

	a := New(1, LowpassCoeffs(48000, 2000, DefaultQ))
	outTwoBuf := make([]float32, len(in))
	if res := a.ProcessF32(outTwoBuf, in); res != datasource.Success {
		t.Fatalf("two-buffer process failed: %v", res)
	}

	b := New(1, LowpassCoeffs(48000, 2000, DefaultQ))
	inPlace := append([]float32(nil), in...)
	if res := b.ProcessF32(inPlace, inPlace); res != datasource.Success {
		t.Fatalf("in-place process failed: %v", res)
	}

	for i := range outTwoBuf {
		if outTwoBuf[i] != inPlace[i] {
			t.Fatalf("sample %d: two-buffer=%v in-place=%v", i, outTwoBuf[i], inPlace[i])
		}
	}
}

func TestOnePoleInPlaceMatchesTwoBuffer(t *testing.T) {
	in := sine(128, 1000, 48000)

	a := NewLPF1(1, 48000, 500)
	outTwoBuf := make([]float32, len(in))
	a.ProcessF32(outTwoBuf, in)

	b := NewLPF1(1, 48000, 500)
	inPlace := append([]float32(nil), in...)
	b.ProcessF32(inPlace, inPlace)

	for i := range outTwoBuf {
		if outTwoBuf[i] != inPlace[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, outTwoBuf[i], inPlace[i])
		}
	}
}

func TestBiquadLatencyIsTwo(t *testing.T) {
	b := New(2, LowpassCoeffs(48000, 1000, DefaultQ))
	if b.Latency() != 2 {
		t.Fatalf("got %d, want 2", b.Latency())
	}
}

func TestChainLatencyIsDoubleOrderOverTwo(t *testing.T) {
	c := NewLPFOrderN(1, 48000, 1000, 8)
	if got, want := c.Latency(), 2*(8/2); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestReinitPreservesState(t *testing.T) {
	b := New(1, LowpassCoeffs(48000, 1000, DefaultQ))
	in := sine(64, 1000, 48000)
	out := make([]float32, 64)
	b.ProcessF32(out, in)

	r1Before, r2Before := b.r1[0], b.r2[0]
	b.Reinit(LowpassCoeffs(48000, 2000, DefaultQ))
	if b.r1[0] != r1Before || b.r2[0] != r2Before {
		t.Fatal("Reinit must not clear state registers")
	}
}

func TestBiquadS16Clamps(t *testing.T) {
	b := New(1, HighShelfCoeffs(48000, 1000, 1.0, 24)) // large boost to force clipping
	in := []int16{32000, -32000, 32000, -32000, 32000, -32000, 32000, -32000}
	out := make([]int16, len(in))
	if res := b.ProcessS16(out, in); res != datasource.Success {
		t.Fatalf("process failed: %v", res)
	}
	for _, s := range out {
		if s > 32767 || s < -32768 {
			t.Fatalf("sample out of s16 range: %d", s)
		}
	}
}

func TestLowpassAttenuatesHighFrequency(t *testing.T) {
	const rate = 48000.0
	in := sine(4096, 8000, rate) // well above the 500 Hz cutoff
	b := New(1, LowpassCoeffs(rate, 500, DefaultQ))
	out := make([]float32, len(in))
	b.ProcessF32(out, in)

	rmsIn := rms(in[1024:])
	rmsOut := rms(out[1024:])
	if rmsOut >= rmsIn*0.5 {
		t.Fatalf("expected strong attenuation of 8kHz tone through 500Hz LPF: in=%v out=%v", rmsIn, rmsOut)
	}
}

func rms(buf []float32) float64 {
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buf)))
}
