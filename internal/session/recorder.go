//go:generate stringer -type=State
package session

import (
	"fmt"
	"strings"

	"github.com/airenas/transcript-workbench/internal/audio"
	"github.com/oklog/ulid/v2"
)

type State int

const (
	Idle State = iota
	Recording
)

// FormatPCM marks raw 16 kHz mono 16 bit PCM chunks
const FormatPCM = "pcm"

// Blob is an assembled recording ready for upload
type Blob struct {
	Name string
	Data []byte
}

// Recorder buffers audio chunks of one microphone capture
type Recorder struct {
	state    State
	format   string
	chunks   [][]byte
	size     int
	maxBytes int
}

// NewRecorder creates idle recorder, maxBytes <= 0 means no limit
func NewRecorder(maxBytes int) *Recorder {
	return &Recorder{state: Idle, maxBytes: maxBytes}
}

func (r *Recorder) State() State {
	return r.state
}

// Start begins a capture. format is PCM or a browser media mime type
func (r *Recorder) Start(format string) error {
	if r.state == Recording {
		return fmt.Errorf("recording already started")
	}
	r.state = Recording
	r.format = strings.ToLower(strings.TrimSpace(format))
	r.chunks = nil
	r.size = 0
	return nil
}

// Add buffers one chunk
func (r *Recorder) Add(chunk []byte) error {
	if r.state != Recording {
		return fmt.Errorf("recording not started")
	}
	if r.maxBytes > 0 && r.size+len(chunk) > r.maxBytes {
		return fmt.Errorf("recording too large (max %d bytes)", r.maxBytes)
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	r.chunks = append(r.chunks, cp)
	r.size += len(chunk)
	return nil
}

// Stop ends the capture and assembles chunks into one blob,
// buffered chunks are released
func (r *Recorder) Stop() (*Blob, error) {
	if r.state != Recording {
		return nil, fmt.Errorf("recording not started")
	}
	chunks, format := r.chunks, r.format
	r.state, r.chunks, r.size = Idle, nil, 0
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no audio recorded")
	}
	name := "recording-" + ulid.Make().String()
	ext := extension(format)
	if ext == ".wav" && isPCM(format) {
		data, err := audio.ToWAV(chunks)
		if err != nil {
			return nil, fmt.Errorf("make wav: %w", err)
		}
		return &Blob{Name: name + ext, Data: data}, nil
	}
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return &Blob{Name: name + ext, Data: data}, nil
}

// Cancel drops a capture in progress
func (r *Recorder) Cancel() {
	r.state, r.chunks, r.size = Idle, nil, 0
}

func isPCM(format string) bool {
	return format == "" || format == FormatPCM || strings.HasPrefix(format, "audio/l16") ||
		strings.HasPrefix(format, "audio/pcm")
}

func extension(format string) string {
	switch {
	case isPCM(format), strings.HasPrefix(format, "audio/wav"):
		return ".wav"
	case strings.Contains(format, "webm"):
		return ".webm"
	case strings.Contains(format, "ogg"):
		return ".ogg"
	case strings.Contains(format, "mp4"), strings.Contains(format, "aac"):
		return ".m4a"
	case strings.Contains(format, "mpeg"):
		return ".mp3"
	}
	return ".bin"
}
