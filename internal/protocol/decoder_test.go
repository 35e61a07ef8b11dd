package protocol

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// newStreamRng creates a random source from FUZZ_SEED (or the clock) and logs the seed
func newStreamRng(t *testing.T) *rand.Rand {
	t.Helper()
	seed := time.Now().UnixNano()
	if env := os.Getenv("FUZZ_SEED"); env != "" {
		if s, err := strconv.ParseInt(env, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func opcodesOf(frames []*Frame) []Opcode {
	ops := make([]Opcode, len(frames))
	for i, f := range frames {
		ops[i] = f.Opcode
	}
	return ops
}

func sampleStream() []byte {
	var stream []byte
	stream = append(stream, BuildFrame(OpBattery, 80, 55, 100)...)
	stream = append(stream, 0xFF, 0x00) // Line noise between frames
	stream = append(stream, BuildFrame(OpAncQuery, byte(AncNormal))...)
	stream = append(stream, BuildFrame(OpEqQuery, byte(EqBass))...)
	stream = append(stream, BuildFrame(OpWindSuppressionQuery, 0x01)...)
	stream = append(stream, BuildFrame(OpCodec, make([]byte, 300)...)...)
	stream = append(stream, BuildFrame(OpInEarQuery, 0x00)...)
	return stream
}

func TestDecoderSingleFrame(t *testing.T) {
	dec := NewDecoder()
	frames := dec.Feed(BuildFrame(OpBattery, 80, 55, 0))

	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	if frames[0].Opcode != OpBattery {
		t.Errorf("Opcode = %s, want %s", frames[0].Opcode, OpBattery)
	}
	if dec.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", dec.Buffered())
	}
}

func TestDecoderLeadingGarbage(t *testing.T) {
	dec := NewDecoder()
	frames := dec.Feed([]byte{0xFF, 0xFF, 0x4E, 0x03, 0x00, 0x00, 0x05, 0x01})

	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	// Opcode bytes 05 01 are little-endian 0x0105
	if frames[0].Opcode != OpDualConnQuery {
		t.Errorf("Opcode = %s, want %s", frames[0].Opcode, OpDualConnQuery)
	}
	if len(frames[0].Payload) != 0 {
		t.Errorf("Payload = % X, want empty", frames[0].Payload)
	}
	if got := dec.Stats().Discarded; got != 2 {
		t.Errorf("Stats().Discarded = %d, want 2", got)
	}
}

func TestDecoderPartialFrame(t *testing.T) {
	dec := NewDecoder()
	raw := BuildFrame(OpAncQuery, byte(AncDeep))

	if frames := dec.Feed(raw[:3]); len(frames) != 0 {
		t.Fatalf("header only: len(frames) = %d, want 0", len(frames))
	}
	if frames := dec.Feed(raw[3:6]); len(frames) != 0 {
		t.Fatalf("missing status: len(frames) = %d, want 0", len(frames))
	}
	if dec.Buffered() != 6 {
		t.Errorf("Buffered() = %d, want 6", dec.Buffered())
	}

	frames := dec.Feed(raw[6:])
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	if !bytes.Equal(frames[0].Raw, raw) {
		t.Errorf("Raw = % X, want % X", frames[0].Raw, raw)
	}
}

func TestDecoderChunkIndependence(t *testing.T) {
	stream := sampleStream()

	whole := opcodesOf(NewDecoder().Feed(stream))
	want := []Opcode{OpBattery, OpAncQuery, OpEqQuery, OpWindSuppressionQuery, OpCodec, OpInEarQuery}
	if len(whole) != len(want) {
		t.Fatalf("all-at-once frames = %v, want %v", whole, want)
	}
	for i := range want {
		if whole[i] != want[i] {
			t.Errorf("frame %d = %s, want %s", i, whole[i], want[i])
		}
	}

	byteWise := NewDecoder()
	var single []*Frame
	for _, b := range stream {
		single = append(single, byteWise.Feed([]byte{b})...)
	}
	if got := opcodesOf(single); len(got) != len(whole) {
		t.Fatalf("byte-at-a-time frames = %v, want %v", got, whole)
	}

	rng := newStreamRng(t)
	for round := 0; round < 200; round++ {
		dec := NewDecoder()
		var frames []*Frame
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(64)
			if n > len(rest) {
				n = len(rest)
			}
			frames = append(frames, dec.Feed(rest[:n])...)
			rest = rest[n:]
		}

		got := opcodesOf(frames)
		if len(got) != len(whole) {
			t.Fatalf("round %d: frames = %v, want %v", round, got, whole)
		}
		for i := range got {
			if got[i] != whole[i] {
				t.Fatalf("round %d: frame %d = %s, want %s", round, i, got[i], whole[i])
			}
			if !bytes.Equal(frames[i].Raw, single[i].Raw) {
				t.Fatalf("round %d: frame %d bytes differ", round, i)
			}
		}
	}
}

func TestDecoderOversizedHeader(t *testing.T) {
	dec := NewDecoder()

	// Declared length 0xFFFF can never fit the working buffer
	stream := []byte{0x4E, 0xFF, 0xFF, 0x00}
	stream = append(stream, BuildFrame(OpGameModeQuery, 0x01)...)

	frames := dec.Feed(stream)
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	if frames[0].Opcode != OpGameModeQuery {
		t.Errorf("Opcode = %s, want %s", frames[0].Opcode, OpGameModeQuery)
	}

	stats := dec.Stats()
	if stats.Oversized != 1 {
		t.Errorf("Stats().Oversized = %d, want 1", stats.Oversized)
	}
	if stats.Discarded != 4 {
		t.Errorf("Stats().Discarded = %d, want 4", stats.Discarded)
	}
}

func TestDecoderLargeInputIsNotDropped(t *testing.T) {
	dec := NewDecoder()

	var stream []byte
	for i := 0; i < 500; i++ {
		stream = append(stream, BuildFrame(OpBattery, byte(i%100+1), 50, 50)...)
	}
	if len(stream) <= MaxBufferSize {
		t.Fatalf("test stream too small: %d bytes", len(stream))
	}

	frames := dec.Feed(stream)
	if len(frames) != 500 {
		t.Errorf("len(frames) = %d, want 500", len(frames))
	}
	if dec.Stats().Discarded != 0 {
		t.Errorf("Stats().Discarded = %d, want 0", dec.Stats().Discarded)
	}
}

func TestDecoderRandomNoise(t *testing.T) {
	rng := newStreamRng(t)
	dec := NewDecoder()

	for round := 0; round < 1000; round++ {
		chunk := make([]byte, rng.Intn(256))
		rng.Read(chunk)
		for _, f := range dec.Feed(chunk) {
			// Any frame that comes out must be self-consistent
			if _, err := ParseFrame(f.Raw); err != nil {
				t.Fatalf("round %d: decoded invalid frame % X: %v", round, f.Raw, err)
			}
			_ = ParseReport(f)
		}
		if dec.Buffered() > MaxBufferSize {
			t.Fatalf("round %d: Buffered() = %d exceeds %d", round, dec.Buffered(), MaxBufferSize)
		}
	}

	// The decoder must still resync on a clean frame after noise
	dec.Reset()
	frames := dec.Feed(BuildFrame(OpEqQuery, byte(EqVocal)))
	if len(frames) != 1 || frames[0].Opcode != OpEqQuery {
		t.Errorf("after Reset: frames = %v, want one eq_query", opcodesOf(frames))
	}
}
