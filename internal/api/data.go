package api

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Job is a server tracked transcription task
type Job struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"original_filename"`
	Status           string `json:"status"`
	CreatedAt        Time   `json:"created_at"`
}

// IsProcessing returns true while the server works on the job
func (j *Job) IsProcessing() bool {
	return j.Status == StatusProcessing
}

// TranscriptDetail - GET /transcripts/{id} response
type TranscriptDetail struct {
	ID                 string              `json:"id"`
	Status             string              `json:"status"`
	WhisperTranscript  string              `json:"whisper_transcript,omitempty"`
	CortiTranscript    string              `json:"corti_transcript,omitempty"`
	ImprovedTranscript *ImprovedTranscript `json:"improved_transcript,omitempty"`
	OriginalFilename   string              `json:"original_filename,omitempty"`
	CreatedAt          *Time               `json:"created_at,omitempty"`
}

// Completed returns true if the job reached the terminal status
func (t *TranscriptDetail) Completed() bool {
	return t.Status == StatusCompleted
}

type ImprovedTranscript struct {
	Sentences []Sentence `json:"sentences"`
}

// Sentence is one annotated sentence of the improved transcript
type Sentence struct {
	Text                           string   `json:"text"`
	IsUncertain                    bool     `json:"is_uncertain"`
	HasMedicalTerminology          bool     `json:"has_medical_terminology"`
	SpecificUncertainWord          []string `json:"specific_uncertain_word"`
	BestModelForMedicalTerminology string   `json:"best_model_for_medical_terminology,omitempty"`
	BestEverydaySpeech             string   `json:"best_everyday_speech,omitempty"`
}

// CreateResponse - POST /transcripts response
type CreateResponse struct {
	TranscriptID string `json:"transcript_id"`
	Status       string `json:"status,omitempty"`
}

// TranscribeResponse - POST /transcribe response
type TranscribeResponse struct {
	WhisperTranscription string `json:"whisper_transcription"`
	CortiTranscription   string `json:"corti_transcription"`
}

type ImproveRequest struct {
	WhisperTranscription string `json:"whisper_transcription"`
	CortiTranscription   string `json:"corti_transcription"`
}

// ImproveResponse is either sentences or an application error
type ImproveResponse struct {
	Sentences []Sentence `json:"sentences"`
	Error     string     `json:"error,omitempty"`
}

type UpdateRequest struct {
	ImprovedTranscript ImprovedTranscript `json:"improved_transcript"`
}

type UpdateResponse struct {
	Message string `json:"message"`
}

type ManuscriptRequest struct {
	Topic string `json:"topic"`
}

// Manuscript - POST /manuscript response
type Manuscript struct {
	Title        string   `json:"title"`
	Prose        string   `json:"prose"`
	KeyTakeaways []string `json:"key_takeaways"`
}

// ErrorResponse is the error body returned by the API
type ErrorResponse struct {
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Recording websocket events
const (
	EventStartRecording = "START_RECORDING"
	EventStopRecording  = "STOP_RECORDING"
	EventRecording      = "RECORDING"
	EventUploaded       = "UPLOADED"
	EventError          = "ERROR"
)

// EventMsg is exchanged over the recording websocket. Format is the audio
// format of a START_RECORDING event
type EventMsg struct {
	Event        string `json:"event"`
	Format       string `json:"format,omitempty"`
	TranscriptID string `json:"transcript_id,omitempty"`
	Error        string `json:"error,omitempty"`
}
