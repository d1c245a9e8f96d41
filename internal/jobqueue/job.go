package jobqueue

// Code identifies the kind of work a Job carries. Values below 0xFF are
// reserved for the core; Custom and above are for host-defined work.
type Code uint32

const (
	Quit Code = iota
	LoadDataBuffer
	FreeDataBuffer
	PageDataBuffer
	LoadDataStream
	FreeDataStream
	PageDataStream
	SeekDataStream
)

// Custom is the first code value available to callers for their own job
// payloads.
const Custom Code = 0xFF

// Job is a fixed-size work record. Payload is left as `any` rather than a
// tagged union/interface hierarchy: Go has no compact sum type, and boxing a
// small pointer-sized payload is the idiomatic equivalent the language
// offers (the resource manager defines concrete payload structs per job
// code, e.g. loadDataBufferPayload).
type Job struct {
	Code    Code
	Order   uint64 // per-target serialization sequence
	Payload any
}
