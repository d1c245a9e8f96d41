package decoder

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// buildPage encodes one raw Ogg page for testing; CRC is left zeroed since
// the demuxer doesn't validate it. The segment table is derived so every
// packet in payload is terminated within this page.
func buildPage(serial, pageSeq uint32, headerType byte, payload []byte) []byte {
	return buildPageWithSegments(serial, pageSeq, headerType, segmentTableFor(len(payload)), payload)
}

func buildPageWithSegments(serial, pageSeq uint32, headerType byte, segs, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("OggS")
	buf.WriteByte(0) // version
	buf.WriteByte(headerType)
	var granule [8]byte
	buf.Write(granule[:])
	var serialBuf, seqBuf, crcBuf [4]byte
	binary.LittleEndian.PutUint32(serialBuf[:], serial)
	binary.LittleEndian.PutUint32(seqBuf[:], pageSeq)
	buf.Write(serialBuf[:])
	buf.Write(seqBuf[:])
	buf.Write(crcBuf[:])

	buf.WriteByte(byte(len(segs)))
	buf.Write(segs)
	buf.Write(payload)
	return buf.Bytes()
}

func segmentTableFor(n int) []byte {
	var segs []byte
	for n >= 255 {
		segs = append(segs, 255)
		n -= 255
	}
	segs = append(segs, byte(n))
	return segs
}

func TestOggDemuxerSinglePacketPerPage(t *testing.T) {
	p1 := buildPage(1, 0, 0x02, []byte("OpusHead"))
	p2 := buildPage(1, 1, 0, []byte("hello-packet"))
	stream := append(p1, p2...)

	d := newOggDemuxer(bytes.NewReader(stream))
	got1, err := d.nextPacket()
	if err != nil || string(got1) != "OpusHead" {
		t.Fatalf("packet 1 = %q, err %v", got1, err)
	}
	got2, err := d.nextPacket()
	if err != nil || string(got2) != "hello-packet" {
		t.Fatalf("packet 2 = %q, err %v", got2, err)
	}
	if _, err := d.nextPacket(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestOggDemuxerSkipsForeignSerial(t *testing.T) {
	own := buildPage(1, 0, 0, []byte("mine"))
	foreign := buildPage(2, 0, 0, []byte("not-mine"))
	stream := append(own, foreign...)

	d := newOggDemuxer(bytes.NewReader(stream))
	got, err := d.nextPacket()
	if err != nil || string(got) != "mine" {
		t.Fatalf("packet = %q, err %v", got, err)
	}
	if _, err := d.nextPacket(); err != io.EOF {
		t.Fatalf("expected EOF after foreign-serial page, got %v", err)
	}
}

func TestOggDemuxerPacketSpanningMultiplePages(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 255) // one full segment left unterminated in this page
	p1 := buildPageWithSegments(1, 0, 0, []byte{255}, payload)
	p2 := buildPage(1, 1, 0, []byte{0xCD}) // continuation: terminates the packet
	stream := append(p1, p2...)

	d := newOggDemuxer(bytes.NewReader(stream))
	got, err := d.nextPacket()
	if err != nil {
		t.Fatalf("nextPacket: %v", err)
	}
	want := append(append([]byte{}, payload...), 0xCD)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %d bytes, want %d bytes spanning both pages", len(got), len(want))
	}
}

func TestParseADTSHeader(t *testing.T) {
	// syncword 0xFFF, MPEG-4, layer 0, no CRC; profile LC (01), 48kHz (idx 3),
	// stereo (2), frame length 200.
	b := []byte{0xFF, 0xF1, 0x4C, 0x80, 0x19, 0x00, 0xFC}
	hdr, ok := parseADTSHeader(b)
	if !ok {
		t.Fatal("expected a valid ADTS header to parse")
	}
	if hdr.rate != 48000 {
		t.Fatalf("rate = %d, want 48000", hdr.rate)
	}
	if hdr.channels != 2 {
		t.Fatalf("channels = %d, want 2", hdr.channels)
	}
	if hdr.frameBytes != 200 {
		t.Fatalf("frameBytes = %d, want 200", hdr.frameBytes)
	}
}

func TestParseADTSHeaderRejectsBadSync(t *testing.T) {
	b := []byte{0x00, 0xF1, 0x4C, 0x80, 0x19, 0x00, 0xFC}
	if _, ok := parseADTSHeader(b); ok {
		t.Fatal("expected sync-word mismatch to be rejected")
	}
}
