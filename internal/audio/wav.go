package audio

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// SampleRate of PCM chunks sent by the recorder
	SampleRate = 16000
	// BitDepth of PCM chunks sent by the recorder
	BitDepth = 16
)

// MemBuffer is an in memory io.WriteSeeker for the wav encoder
type MemBuffer struct {
	buf []byte
	pos int64
}

func (m *MemBuffer) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		newBuf := make([]byte, end)
		copy(newBuf, m.buf)
		m.buf = newBuf
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *MemBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = m.pos + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("wrong whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("negative position")
	}
	m.pos = newPos
	return newPos, nil
}

func (m *MemBuffer) Bytes() []byte {
	return m.buf
}

// ToWAV joins 16 kHz mono little endian 16 bit PCM chunks into one WAV file
func ToWAV(chunks [][]byte) ([]byte, error) {
	size := 0
	for _, chunk := range chunks {
		size += len(chunk)
	}
	raw := make([]byte, 0, size)
	for _, chunk := range chunks {
		raw = append(raw, chunk...)
	}

	samples := make([]int, len(raw)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  SampleRate,
		},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}

	wavBuf := &MemBuffer{}
	enc := wav.NewEncoder(wavBuf, SampleRate, BitDepth, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav: %w", err)
	}
	return wavBuf.Bytes(), nil
}
