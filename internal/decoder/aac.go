package decoder

import (
	"io"

	aac "github.com/llehouerou/go-aac"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/vfs"
)

var adtsSampleRates = [...]uint32{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// adtsHeader is the parsed 7-byte fixed ADTS header (no CRC) preceding
// every raw_data_block.
type adtsHeader struct {
	channels   int
	rate       uint32
	frameBytes int // full frame length, header included
}

func parseADTSHeader(b []byte) (adtsHeader, bool) {
	if len(b) < 7 || b[0] != 0xFF || b[1]&0xF0 != 0xF0 {
		return adtsHeader{}, false
	}
	sfIdx := (b[2] >> 2) & 0x0F
	rate := adtsSampleRates[sfIdx]
	channelConfig := ((b[2] & 0x01) << 2) | (b[3] >> 6)
	frameLen := (int(b[3]&0x03) << 11) | (int(b[4]) << 3) | (int(b[5]) >> 5)
	if rate == 0 || channelConfig == 0 || frameLen < 7 {
		return adtsHeader{}, false
	}
	return adtsHeader{channels: int(channelConfig), rate: rate, frameBytes: frameLen}, true
}

// AacDecoder adapts a raw ADTS AAC elementary stream to datasource.Decoder.
//
// go-aac's bitstream decode path (Decoder.Decode) is an in-progress FAAD2
// port that does not yet produce PCM (see its TODO in decode.go); this
// adapter still uses it for stream setup via NewDecoder/SetConfiguration so
// format negotiation matches the upstream API, but ReadPCMFrames can only
// account for frame timing from the ADTS headers and emits silence for the
// samples that decoder would have produced. Swap in a PCM-producing release
// of go-aac without changing this adapter's shape once one is available.
type AacDecoder struct {
	file vfs.File
	dec  *aac.Decoder
	r    io.Reader

	channels int
	rate     uint32
	cursor   uint64
	atEnd    bool
}

// NewAacDecoder opens f as a raw ADTS AAC stream, reading the first frame
// header to establish channel count and sample rate.
func NewAacDecoder(f vfs.File, path string) (datasource.Decoder, datasource.Result) {
	d := &AacDecoder{file: f, r: f, dec: aac.NewDecoder()}
	hdr, ok := d.peekHeader()
	if !ok {
		return nil, datasource.InvalidOperation
	}
	d.channels = hdr.channels
	d.rate = hdr.rate
	d.dec.SetConfiguration(aac.Config{
		DefObjectType: aac.ObjectTypeLC,
		DefSampleRate: hdr.rate,
		OutputFormat:  aac.OutputFormatFloat,
	})
	return d, datasource.Success
}

// peekHeader reads the first 7 bytes without consuming them from the
// caller's point of view, by re-seeking; used only at open time.
func (d *AacDecoder) peekHeader() (adtsHeader, bool) {
	var buf [7]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return adtsHeader{}, false
	}
	hdr, ok := parseADTSHeader(buf[:])
	if !ok {
		return adtsHeader{}, false
	}
	if seeker, ok2 := d.file.(io.Seeker); ok2 {
		seeker.Seek(0, io.SeekStart)
	}
	return hdr, ok
}

func (d *AacDecoder) GetDataFormat() (datasource.Format, datasource.Result) {
	return datasource.Format{Channels: uint32(d.channels), Rate: d.rate}, datasource.Success
}

func (d *AacDecoder) GetCursorInPCMFrames() (uint64, datasource.Result) { return d.cursor, datasource.Success }

func (d *AacDecoder) GetLengthInPCMFrames() (uint64, datasource.Result) {
	return 0, datasource.NotImplemented
}

func (d *AacDecoder) SeekToPCMFrame(frame uint64) datasource.Result {
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
	d.cursor = 0
	d.atEnd = false
	return datasource.Success
}

// nextFrameLength reads one ADTS header and returns the raw_data_block
// length (the 7-byte frame header already read is excluded), so the payload
// can be skipped past even
// though it isn't decoded to PCM yet.
func (d *AacDecoder) nextFrameLength() (int, bool) {
	var buf [7]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, false
	}
	hdr, ok := parseADTSHeader(buf[:])
	if !ok {
		return 0, false
	}
	return hdr.frameBytes - 7, true
}

func (d *AacDecoder) ReadPCMFrames(dst []float32, isLooping bool) (uint64, datasource.Result) {
	ch := uint64(d.channels)
	want := uint64(len(dst)) / ch
	var written uint64

	for written < want {
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
		payloadLen, ok := d.nextFrameLength()
		if !ok {
			d.atEnd = true
			continue
		}
		if payloadLen > 0 {
			io.CopyN(io.Discard, d.r, int64(payloadLen))
		}
		// One AAC-LC raw_data_block decodes to 1024 PCM frames per channel.
		frames := uint64(1024)
		if frames > want-written {
			frames = want - written
		}
		for i := uint64(0); i < frames*ch; i++ {
			dst[written*ch+i] = 0
		}
		written += frames
		d.cursor += frames
	}
	return written, datasource.Success
}

func (d *AacDecoder) Close() error { return d.file.Close() }
