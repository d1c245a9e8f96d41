package decoder

import (
	"encoding/binary"
	"io"

	"gopkg.in/hraban/opus.v2"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/vfs"
)

// opusFrameSamples is the largest packet hraban/opus will decode into in one
// call: 120ms at 48kHz, the maximum Opus frame duration.
const opusFrameSamples = 960 * 6

// OpusDecoder adapts an Ogg-Opus bitstream to datasource.Decoder, decoding
// through gopkg.in/hraban/opus.v2 one packet at a time into an internal
// ring the ReadPCMFrames call drains from.
type OpusDecoder struct {
	file vfs.File
	demux *oggDemuxer
	dec   *opus.Decoder

	channels int
	rate     uint32
	preSkip  int

	scratch []float32 // opusFrameSamples * channels
	carry   []float32 // undrained tail of the last decoded packet
	cursor  uint64
	atEnd   bool
}

// NewOpusDecoder opens f as an Ogg-Opus stream, reading the identification
// header to discover channel count before the first packet is decoded.
func NewOpusDecoder(f vfs.File, path string) (datasource.Decoder, datasource.Result) {
	demux := newOggDemuxer(f)
	head, err := demux.nextPacket()
	if err != nil {
		return nil, datasource.InvalidOperation
	}
	channels, preSkip, ok := parseOpusHead(head)
	if !ok {
		return nil, datasource.InvalidOperation
	}
	// Opus comment header follows; skip it.
	if _, err := demux.nextPacket(); err != nil {
		return nil, datasource.InvalidOperation
	}

	dec, err := opus.NewDecoder(48000, channels)
	if err != nil {
		return nil, datasource.InvalidOperation
	}

	return &OpusDecoder{
		file:     f,
		demux:    demux,
		dec:      dec,
		channels: channels,
		rate:     48000,
		preSkip:  preSkip,
		scratch:  make([]float32, opusFrameSamples*channels),
	}, datasource.Success
}

func parseOpusHead(b []byte) (channels, preSkip int, ok bool) {
	if len(b) < 19 || string(b[0:8]) != "OpusHead" {
		return 0, 0, false
	}
	channels = int(b[9])
	preSkip = int(binary.LittleEndian.Uint16(b[10:12]))
	if channels <= 0 {
		return 0, 0, false
	}
	return channels, preSkip, true
}

func (d *OpusDecoder) GetDataFormat() (datasource.Format, datasource.Result) {
	return datasource.Format{Channels: uint32(d.channels), Rate: d.rate}, datasource.Success
}

func (d *OpusDecoder) GetCursorInPCMFrames() (uint64, datasource.Result) { return d.cursor, datasource.Success }

// GetLengthInPCMFrames is not knowable without indexing every page's
// granule position up front; the resource manager falls back to its
// capacity-doubling decode-paging path when this returns NotImplemented.
func (d *OpusDecoder) GetLengthInPCMFrames() (uint64, datasource.Result) {
	return 0, datasource.NotImplemented
}

// SeekToPCMFrame only supports rewinding to the very start: Opus packets
// aren't independently seekable without a granule-position page index,
// which this minimal demuxer doesn't build.
func (d *OpusDecoder) SeekToPCMFrame(frame uint64) datasource.Result {
	if frame != 0 {
		return datasource.NotImplemented
	}
	seeker, ok := d.file.(io.Seeker)
	if !ok {
		return datasource.NotImplemented
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return datasource.InvalidOperation
	}
	d.demux = newOggDemuxer(d.file)
	if _, err := d.demux.nextPacket(); err != nil { // OpusHead
		return datasource.InvalidOperation
	}
	if _, err := d.demux.nextPacket(); err != nil { // OpusTags
		return datasource.InvalidOperation
	}
	d.carry = nil
	d.cursor = 0
	d.atEnd = false
	return datasource.Success
}

func (d *OpusDecoder) ReadPCMFrames(dst []float32, isLooping bool) (uint64, datasource.Result) {
	ch := uint64(d.channels)
	want := uint64(len(dst)) / ch
	var written uint64

	for written < want {
		if len(d.carry) == 0 {
			if d.atEnd {
				if !isLooping {
					if written == 0 {
						return 0, datasource.AtEnd
					}
					return written, datasource.Success
				}
				if res := d.SeekToPCMFrame(0); res != datasource.Success {
					return written, res
				}
			}
			packet, err := d.demux.nextPacket()
			if err != nil {
				d.atEnd = true
				continue
			}
			n, derr := d.dec.DecodeFloat32(packet, d.scratch)
			if derr != nil {
				d.atEnd = true
				continue
			}
			d.carry = d.scratch[:uint64(n)*ch]
		}
		take := uint64(len(d.carry)) / ch
		if take > want-written {
			take = want - written
		}
		copy(dst[written*ch:(written+take)*ch], d.carry[:take*ch])
		d.carry = d.carry[take*ch:]
		written += take
		d.cursor += take
	}
	return written, datasource.Success
}

func (d *OpusDecoder) Close() error { return d.file.Close() }
