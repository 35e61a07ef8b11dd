package protocol

import "encoding/binary"

// minHeader is the number of bytes needed to read the length field
const minHeader = 4

// DecoderStats counts decoder activity since creation or the last Reset
type DecoderStats struct {
	Frames    uint64 // Complete frames extracted
	Discarded uint64 // Bytes dropped while resynchronising
	Oversized uint64 // Markers skipped because the declared length can never fit the buffer
}

// Decoder reassembles frames from an arbitrarily chunked byte stream.
//
// The working buffer is bounded by MaxBufferSize. Bytes are accepted in
// slices that fit the free space, so no input is dropped; only bytes that
// cannot begin a frame are discarded.
type Decoder struct {
	buf   []byte
	stats DecoderStats
}

// NewDecoder creates a stream decoder with an empty buffer
func NewDecoder() *Decoder {
	return &Decoder{
		buf: make([]byte, 0, MaxBufferSize),
	}
}

// Feed appends p to the working buffer and returns every frame completed by it.
// Unconsumed bytes from the last marker onward are kept for the next call.
func (d *Decoder) Feed(p []byte) []*Frame {
	var frames []*Frame
	for len(p) > 0 {
		n := MaxBufferSize - len(d.buf)
		if n > len(p) {
			n = len(p)
		}
		d.buf = append(d.buf, p[:n]...)
		p = p[n:]
		frames = d.extract(frames)
	}
	return frames
}

// extract pulls complete frames off the front of the buffer and compacts the tail
func (d *Decoder) extract(frames []*Frame) []*Frame {
	i := 0
	for {
		for i < len(d.buf) && d.buf[i] != FrameMarker {
			i++
			d.stats.Discarded++
		}
		if len(d.buf)-i < minHeader {
			break
		}

		length := int(binary.LittleEndian.Uint16(d.buf[i+1 : i+3]))
		total := length + 3
		if length < lengthOverhead || total > MaxBufferSize {
			// Misaligned marker: this header can never complete
			i++
			d.stats.Oversized++
			d.stats.Discarded++
			continue
		}
		if len(d.buf)-i < total {
			break
		}

		raw := make([]byte, total)
		copy(raw, d.buf[i:i+total])
		frame, err := ParseFrame(raw)
		if err == nil {
			frames = append(frames, frame)
			d.stats.Frames++
		}
		i += total
	}

	n := copy(d.buf, d.buf[i:])
	d.buf = d.buf[:n]
	return frames
}

// Buffered returns the number of bytes waiting for the rest of a frame
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Stats returns a copy of the decoder counters
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// Reset drops buffered bytes and zeroes the counters
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.stats = DecoderStats{}
}
