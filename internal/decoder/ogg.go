package decoder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// oggDemuxer pulls complete packets for a single logical bitstream out of an
// Ogg container. Multiplexed streams (more than one serial number) are not
// supported: the first serial number seen becomes the tracked stream and
// pages from any other are skipped. Page-level CRC is not checked; a
// corrupt capture pattern is treated as end of stream rather than an error,
// matching how a decode loop typically wants to behave on a truncated file.
type oggDemuxer struct {
	r      *bufio.Reader
	serial uint32
	haveID bool

	pending [][]byte // packets assembled from the most recently read page
	idx     int

	carry []byte // partial packet whose last segment in the prior page ran 255 bytes, unterminated

	eos bool
}

func newOggDemuxer(r io.Reader) *oggDemuxer {
	return &oggDemuxer{r: bufio.NewReaderSize(r, 8192)}
}

var errNotOgg = errors.New("decoder: not an Ogg bitstream")

// nextPacket returns the next complete packet payload for the tracked
// stream, reading and demultiplexing pages as needed.
func (d *oggDemuxer) nextPacket() ([]byte, error) {
	for d.idx >= len(d.pending) {
		if d.eos {
			return nil, io.EOF
		}
		if err := d.readPage(); err != nil {
			return nil, err
		}
	}
	p := d.pending[d.idx]
	d.idx++
	return p, nil
}

// readPage reads pages until one belonging to the tracked stream (or the
// first stream seen) yields at least one packet, populating d.pending.
func (d *oggDemuxer) readPage() error {
	for {
		var magic [4]byte
		if _, err := io.ReadFull(d.r, magic[:]); err != nil {
			d.eos = true
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return io.EOF
			}
			return err
		}
		if string(magic[:]) != "OggS" {
			d.eos = true
			if !d.haveID {
				return errNotOgg
			}
			return io.EOF
		}

		var hdr [23]byte // rest of the fixed header after the 4-byte magic
		if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
			d.eos = true
			return io.EOF
		}
		headerType := hdr[1]
		serial := binary.LittleEndian.Uint32(hdr[10:14])
		segCount := int(hdr[22])

		segTable := make([]byte, segCount)
		if _, err := io.ReadFull(d.r, segTable); err != nil {
			d.eos = true
			return io.EOF
		}

		total := 0
		for _, s := range segTable {
			total += int(s)
		}
		payload := make([]byte, total)
		if total > 0 {
			if _, err := io.ReadFull(d.r, payload); err != nil {
				d.eos = true
				return io.EOF
			}
		}

		if !d.haveID {
			d.serial = serial
			d.haveID = true
		}
		if serial != d.serial {
			continue // foreign stream multiplexed into the same container
		}

		// Split payload into packets at segment-table boundaries: a run of
		// 255-byte segments continues the current packet across a page
		// boundary, a segment under 255 terminates it.
		d.pending = d.pending[:0]
		d.idx = 0
		off := 0
		start := 0
		for _, s := range segTable {
			off += int(s)
			if s < 255 {
				packet := payload[start:off]
				if len(d.carry) > 0 {
					packet = append(d.carry, packet...)
					d.carry = nil
				}
				d.pending = append(d.pending, packet)
				start = off
			}
		}
		if start < off { // trailing run of full-255 segments: packet continues on the next page
			d.carry = append(d.carry, payload[start:off]...)
		}

		isEOS := headerType&0x04 != 0
		if isEOS {
			d.eos = true
			if len(d.carry) > 0 { // stream ends mid-packet: deliver what we have
				d.pending = append(d.pending, d.carry)
				d.carry = nil
			}
		}
		if len(d.pending) > 0 {
			return nil
		}
		if d.eos {
			return io.EOF
		}
		// Empty page (headers-only continuation); loop for the next one.
	}
}
