package encoder

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"flac", "wav"} {
		t.Run(format, func(t *testing.T) {
			enc, err := New(format)
			if err != nil {
				t.Fatalf("New(%q): %v", format, err)
			}
			if enc == nil {
				t.Fatalf("New(%q) returned nil", format)
			}
		})
	}
	t.Run("unknown", func(t *testing.T) {
		if _, err := New("ogg"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestWavEncoderHeader(t *testing.T) {
	enc := NewWav()
	block := make([]int16, 100)
	for i := range block {
		block[i] = int16(i)
	}
	if err := enc.EncodeBlock(block); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	b := enc.Bytes()
	if len(b) != wavHeaderSize+200 {
		t.Fatalf("len = %d, want %d", len(b), wavHeaderSize+200)
	}
	if !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		t.Error("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != 200 {
		t.Errorf("data size = %d", got)
	}
	if enc.TotalFrames() != 100 {
		t.Errorf("TotalFrames = %d", enc.TotalFrames())
	}
}

func TestFlacEncoderProducesStream(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatal(err)
	}

	block := make([]int16, BlockSize)
	for i := range block {
		block[i] = int16(i % 1000)
	}
	if err := enc.EncodeBlock(block); err != nil {
		t.Fatal(err)
	}
	// Partial tail block, as Finalize produces.
	if err := enc.EncodeBlock(block[:BlockSize/2]); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	b := enc.Bytes()
	if len(b) < 4 || !bytes.Equal(b[0:4], []byte("fLaC")) {
		t.Fatalf("missing fLaC magic, len = %d", len(b))
	}
	if enc.TotalFrames() != uint64(BlockSize+BlockSize/2) {
		t.Errorf("TotalFrames = %d", enc.TotalFrames())
	}
	if enc.MIMEType() != "audio/flac" {
		t.Errorf("MIMEType = %q", enc.MIMEType())
	}
}

func TestStreamFeedAndFinalize(t *testing.T) {
	s, err := NewStream("wav")
	if err != nil {
		t.Fatal(err)
	}

	nSamples := BlockSize + BlockSize/2
	pcm := make([]byte, nSamples*2)
	for i := range nSamples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i%1000))
	}
	// Split across two feeds, cutting mid-sample alignment boundary.
	s.Feed(pcm[:1000])
	s.Feed(pcm[1000:])

	payload, mimeType, frames, err := s.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if mimeType != "audio/wav" {
		t.Errorf("mime = %q", mimeType)
	}
	if frames != uint64(nSamples) {
		t.Errorf("frames = %d, want %d", frames, nSamples)
	}
	if len(payload) != wavHeaderSize+nSamples*2 {
		t.Errorf("payload len = %d", len(payload))
	}

	// Feeds after finalize are dropped; finalize is repeatable.
	s.Feed(pcm[:100])
	payload2, _, frames2, err := s.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if frames2 != frames || len(payload2) != len(payload) {
		t.Error("Finalize not stable after late Feed")
	}
}
