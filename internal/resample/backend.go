package resample

import "github.com/mackron/miniaudio-sub001/internal/datasource"

// Algorithm selects which resampler implementation backs a Resampler.
type Algorithm int

const (
	AlgorithmLinear Algorithm = iota
	AlgorithmSpeex
)

// Backend is the frame-count-query contract every resampler implementation
// satisfies, so the public Resampler can dispatch on Algorithm while
// exposing identical semantics regardless of which backend answers. *Linear
// implements this directly.
type Backend interface {
	Process(out, in []float32) (consumed, produced uint64, res datasource.Result)
	RequiredInputFrameCount(outN uint64) uint64
	ExpectedOutputFrameCount(inN uint64) uint64
	InputLatency() int
	OutputLatency() int
}

// Resampler is the public, algorithm-dispatching resampler. The optional
// higher-quality backend (Speex-style) is loaded lazily: constructing one
// with AlgorithmSpeex when the backend cannot be initialized for the
// requested configuration returns NoBackend rather than failing the whole
// graph.
type Resampler struct {
	Backend
}

// NewResampler constructs a Resampler using the given algorithm.
// AlgorithmLinear always succeeds; AlgorithmSpeex returns NoBackend if the
// optional backend is unavailable for this channel/rate combination.
func NewResampler(algo Algorithm, cfg Config) (*Resampler, datasource.Result) {
	switch algo {
	case AlgorithmLinear:
		return &Resampler{Backend: New(cfg)}, datasource.Success
	case AlgorithmSpeex:
		b, res := newSpeexBackend(cfg)
		if res != datasource.Success {
			return nil, res
		}
		return &Resampler{Backend: b}, datasource.Success
	default:
		return nil, datasource.InvalidArgs
	}
}
