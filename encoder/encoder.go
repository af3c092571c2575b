// Package encoder turns captured PCM into the payload handed to the
// transcription collaborator.
package encoder

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	MIMEType() string
}

func New(format string) (Encoder, error) {
	switch format {
	case "flac":
		return NewFlac()
	case "wav":
		return NewWav(), nil
	}
	return nil, fmt.Errorf("unknown audio format %q (use flac or wav)", format)
}

// Stream adapts the capture callback's little-endian byte chunks to an
// Encoder's fixed-size blocks. Feed is safe to call from the audio
// thread; Finalize flushes the partial tail block and seals the payload.
type Stream struct {
	mu        sync.Mutex
	enc       Encoder
	sampleBuf []int16
	finalized bool
}

func NewStream(format string) (*Stream, error) {
	enc, err := New(format)
	if err != nil {
		return nil, err
	}
	return &Stream{enc: enc}, nil
}

func (s *Stream) Feed(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s.sampleBuf = append(s.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(s.sampleBuf) >= BlockSize {
		block := make([]int16, BlockSize)
		copy(block, s.sampleBuf[:BlockSize])
		s.sampleBuf = s.sampleBuf[BlockSize:]
		s.enc.EncodeBlock(block)
	}
}

// Finalize returns the encoded payload, its MIME type, and the number of
// frames captured. Safe to call once; later Feeds are dropped.
func (s *Stream) Finalize() (payload []byte, mimeType string, frames uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return s.enc.Bytes(), s.enc.MIMEType(), s.enc.TotalFrames(), nil
	}
	s.finalized = true

	if len(s.sampleBuf) > 0 {
		tail := make([]int16, len(s.sampleBuf))
		copy(tail, s.sampleBuf)
		s.sampleBuf = nil
		if err := s.enc.EncodeBlock(tail); err != nil {
			return nil, "", 0, err
		}
	}
	if err := s.enc.Close(); err != nil {
		return nil, "", 0, err
	}
	return s.enc.Bytes(), s.enc.MIMEType(), s.enc.TotalFrames(), nil
}
