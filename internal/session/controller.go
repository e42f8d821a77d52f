package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/transcript-workbench/internal/api"
	"github.com/airenas/transcript-workbench/internal/client"
	"github.com/airenas/transcript-workbench/internal/domain"
	"github.com/airenas/transcript-workbench/internal/metrics"
	"github.com/airenas/transcript-workbench/internal/view"
)

const (
	// DefaultSaveLabel is the save button label
	DefaultSaveLabel = "Save Changes"
	// SavedLabel is shown on the save button after a successful save
	SavedLabel = "Saved!"
)

// API is the remote transcription API
type API interface {
	ListJobs(ctx context.Context) ([]*api.Job, error)
	CreateJob(ctx context.Context, fileName string, r io.Reader) (*api.CreateResponse, error)
	GetTranscript(ctx context.Context, id string) (*api.TranscriptDetail, error)
	SaveImproved(ctx context.Context, id string, sentences []api.Sentence) error
	Transcribe(ctx context.Context, fileName string, r io.Reader) (*api.TranscribeResponse, error)
	Improve(ctx context.Context, whisper, corti string) ([]api.Sentence, error)
	Manuscript(ctx context.Context, topic string) (*api.Manuscript, error)
}

// TextHandler transforms raw transcripts before improvement
type TextHandler interface {
	Process(context.Context, string) (string, error)
}

// Config of a UI session
type Config struct {
	PollInterval   time.Duration
	SaveFeedback   time.Duration
	MaxUploadBytes int64
	Cleaner        TextHandler
	NewTicker      TickerFunc
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.SaveFeedback <= 0 {
		c.SaveFeedback = 2 * time.Second
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 100 * 1024 * 1024
	}
	if c.NewTicker == nil {
		c.NewTicker = NewTimeTicker
	}
	return c
}

// Controller is one UI session: it owns the selected transcript, the single poll loop,
// the improved sentences and the state of every panel
type Controller struct {
	id  string
	api API
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	lock      sync.Mutex
	st        view.State
	currentID string
	quick     *api.TranscribeResponse
	poller    *Poller
	recorder  *Recorder
	saveTimer *time.Timer
	lastUsed  time.Time
	restored  *domain.Session
}

// NewController creates a session controller, ctx bounds the background poll loop
func NewController(ctx context.Context, id string, a API, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	res := &Controller{id: id, api: a, cfg: cfg, ctx: ctx, cancel: cancel,
		recorder: NewRecorder(int(cfg.MaxUploadBytes)), lastUsed: time.Now()}
	res.st.SaveLabel = DefaultSaveLabel
	return res
}

// ID returns session id
func (c *Controller) ID() string {
	return c.id
}

// State returns a copy of the current state
func (c *Controller) State() *view.State {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.lastUsed = time.Now()
	res := c.st
	res.Jobs = append([]*api.Job(nil), c.st.Jobs...)
	res.Sentences = copySentences(c.st.Sentences)
	return &res
}

// CurrentTranscriptID returns selected transcript id
func (c *Controller) CurrentTranscriptID() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.currentID
}

// Sentences returns a copy of the improved sentences
func (c *Controller) Sentences() []api.Sentence {
	c.lock.Lock()
	defer c.lock.Unlock()
	return copySentences(c.st.Sentences)
}

// PollingID returns the transcript id of the active poll loop
func (c *Controller) PollingID() (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.poller == nil {
		return "", false
	}
	return c.poller.ID(), true
}

// LastUsed returns the time of the last access
func (c *Controller) LastUsed() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.lastUsed
}

// LoadJobs refreshes the job list
func (c *Controller) LoadJobs(ctx context.Context) error {
	jobs, err := c.api.ListJobs(ctx)
	c.lock.Lock()
	defer c.lock.Unlock()
	if err != nil {
		c.st.JobsError = err.Error()
		return fmt.Errorf("load jobs: %w", err)
	}
	c.st.Jobs = jobs
	c.st.JobsError = ""
	return nil
}

// SelectJob marks job as selected and starts polling its details.
// A previous poll loop is stopped
func (c *Controller) SelectJob(id string) error {
	id = strings.TrimSpace(id)
	if err := client.CheckID(id); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.stopPollingLocked()
	c.currentID = id
	c.quick = nil
	c.st.Selected = id
	c.st.DetailsVisible = true
	c.st.DetailsLoading = true
	c.st.Detail = nil
	c.st.ResultsError = ""
	c.st.ImproveVisible = false
	c.st.ImproveError = ""
	c.st.SaveError = ""
	c.st.Improving = false
	c.startPollerLocked(id)
	c.touchLocked()
	return nil
}

func (c *Controller) startPollerLocked(id string) {
	var p *Poller
	ready := make(chan struct{})
	p = StartPoller(c.ctx, id, c.cfg.PollInterval, c.cfg.NewTicker, func(ctx context.Context) bool {
		<-ready
		return c.poll(ctx, p)
	})
	c.poller = p
	close(ready)
}

func (c *Controller) stopPollingLocked() {
	if c.poller != nil {
		c.poller.Stop()
		c.poller = nil
	}
}

// poll fetches details once, returns true when polling must end
func (c *Controller) poll(ctx context.Context, p *Poller) bool {
	detail, err := c.api.GetTranscript(ctx, p.ID())
	if ctx.Err() != nil {
		return true
	}
	m := metrics.Get()
	c.lock.Lock()
	if c.poller != p {
		c.lock.Unlock()
		return true
	}
	if err != nil {
		m.Polls.WithLabelValues("error").Inc()
		goapp.Log.Warn().Err(err).Str("session", c.id).Str("id", p.ID()).Msg("poll")
		c.st.ResultsError = err.Error()
		stop := isGone(err)
		if stop {
			c.poller = nil
			c.st.DetailsLoading = false
			c.st.Status = fmt.Sprintf("Job %s not found.", p.ID())
		}
		c.touchLocked()
		c.lock.Unlock()
		return stop
	}
	if !detail.Completed() {
		m.Polls.WithLabelValues("processing").Inc()
		c.st.Status = fmt.Sprintf("Job %s is still processing...", p.ID())
		c.st.ResultsError = ""
		c.touchLocked()
		c.lock.Unlock()
		return false
	}
	m.Polls.WithLabelValues("completed").Inc()
	c.poller = nil
	c.st.Status = "Job loaded."
	c.displayDetailsLocked(detail)
	c.touchLocked()
	c.lock.Unlock()

	_ = c.LoadJobs(ctx)
	return true
}

func (c *Controller) displayDetailsLocked(detail *api.TranscriptDetail) {
	c.st.Detail = detail
	c.st.DetailsVisible = true
	c.st.DetailsLoading = false
	c.st.ResultsError = ""
	c.st.ImproveVisible = true
	c.st.Improving = false
	c.st.ImproveError = ""
	c.st.SaveError = ""
	defer func() { c.restored = nil }()
	if r := c.restored; r != nil && r.CurrentTranscriptID == c.currentID && len(r.Sentences) > 0 {
		c.st.Sentences = normalize(r.Sentences)
		c.st.SaveVisible = true
	} else if detail.ImprovedTranscript != nil {
		c.st.Sentences = normalize(detail.ImprovedTranscript.Sentences)
		c.st.SaveVisible = c.currentID != ""
	} else {
		c.st.Sentences = nil
		c.st.SaveVisible = false
	}
}

// Upload sends an audio file for transcription and refreshes the job list.
// size < 0 means unknown size
func (c *Controller) Upload(ctx context.Context, fileName string, r io.Reader, size int64) (string, error) {
	if err := c.checkUpload(fileName, size); err != nil {
		return "", err
	}
	c.lock.Lock()
	c.st.Status = fmt.Sprintf("Uploading %s...", fileName)
	c.st.InputError = ""
	c.touchLocked()
	c.lock.Unlock()

	res, err := c.api.CreateJob(ctx, fileName, r)
	c.lock.Lock()
	if err != nil {
		c.st.InputError = err.Error()
		c.touchLocked()
		c.lock.Unlock()
		return "", fmt.Errorf("upload: %w", err)
	}
	c.st.Status = fmt.Sprintf("Job %s started. Processing...", res.TranscriptID)
	c.touchLocked()
	c.lock.Unlock()

	_ = c.LoadJobs(ctx)
	return res.TranscriptID, nil
}

func (c *Controller) checkUpload(fileName string, size int64) error {
	var err error
	switch {
	case strings.TrimSpace(fileName) == "":
		err = fmt.Errorf("no file name")
	case size == 0:
		err = fmt.Errorf("file %s is empty", fileName)
	case size > c.cfg.MaxUploadBytes:
		err = fmt.Errorf("file %s too large (max %dMB)", fileName, c.cfg.MaxUploadBytes/1024/1024)
	}
	if err != nil {
		c.lock.Lock()
		c.st.InputError = err.Error()
		c.touchLocked()
		c.lock.Unlock()
	}
	return err
}

// StartRecording starts a microphone capture. On error the recording controls stay as they were
func (c *Controller) StartRecording(format string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.recorder.Start(format); err != nil {
		c.st.InputError = err.Error()
		c.touchLocked()
		return err
	}
	c.st.Recording = true
	c.st.InputError = ""
	c.st.InputInfo = "Recording..."
	c.touchLocked()
	return nil
}

// AddAudio buffers a recorded chunk
func (c *Controller) AddAudio(chunk []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.recorder.Add(chunk); err != nil {
		c.st.InputError = err.Error()
		c.touchLocked()
		return err
	}
	return nil
}

// StopRecording assembles the capture and uploads it as a new job
func (c *Controller) StopRecording(ctx context.Context) (string, error) {
	c.lock.Lock()
	blob, err := c.recorder.Stop()
	c.st.Recording = c.recorder.State() == Recording
	c.st.InputInfo = ""
	if err != nil {
		c.st.InputError = err.Error()
		c.touchLocked()
		c.lock.Unlock()
		return "", err
	}
	c.lock.Unlock()

	m := metrics.Get()
	m.Recordings.Inc()
	m.RecordingBytes.Observe(float64(len(blob.Data)))
	goapp.Log.Info().Str("session", c.id).Str("name", blob.Name).Int("bytes", len(blob.Data)).Msg("recorded")
	return c.Upload(ctx, blob.Name, bytes.NewReader(blob.Data), int64(len(blob.Data)))
}

// CancelRecording drops an unfinished capture, nothing is uploaded
func (c *Controller) CancelRecording() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.recorder.State() != Recording {
		return
	}
	c.recorder.Cancel()
	c.st.Recording = false
	c.st.InputInfo = ""
	c.touchLocked()
}

// TranscribeOnce runs single shot transcription, no job is created
func (c *Controller) TranscribeOnce(ctx context.Context, fileName string, r io.Reader, size int64) error {
	if err := c.checkUpload(fileName, size); err != nil {
		return err
	}
	c.lock.Lock()
	c.stopPollingLocked()
	c.currentID = ""
	c.quick = nil
	c.st.Selected = ""
	c.st.Status = fmt.Sprintf("Transcribing %s...", fileName)
	c.st.DetailsVisible = true
	c.st.DetailsLoading = true
	c.st.ResultsError = ""
	c.st.InputError = ""
	c.touchLocked()
	c.lock.Unlock()

	res, err := c.api.Transcribe(ctx, fileName, r)
	c.lock.Lock()
	defer c.lock.Unlock()
	defer c.touchLocked()
	if c.currentID != "" {
		return fmt.Errorf("job selected while transcribing")
	}
	c.st.DetailsLoading = false
	if err != nil {
		c.st.ResultsError = err.Error()
		return fmt.Errorf("transcribe: %w", err)
	}
	c.quick = res
	c.st.Status = "Transcription finished."
	c.displayDetailsLocked(&api.TranscriptDetail{Status: api.StatusCompleted, OriginalFilename: fileName,
		WhisperTranscript: res.WhisperTranscription, CortiTranscript: res.CortiTranscription})
	return nil
}

// Improve asks AI to combine both transcripts of the selected job into annotated sentences
func (c *Controller) Improve(ctx context.Context) error {
	c.lock.Lock()
	id, quick := c.currentID, c.quick
	if id == "" && quick == nil {
		c.st.ImproveError = "no transcript selected"
		c.touchLocked()
		c.lock.Unlock()
		return fmt.Errorf("no transcript selected")
	}
	c.st.Improving = true
	c.st.ImproveError = ""
	c.st.SaveError = ""
	c.touchLocked()
	c.lock.Unlock()

	sentences, err := c.improve(ctx, id, quick)

	c.lock.Lock()
	defer c.lock.Unlock()
	defer c.touchLocked()
	if c.currentID != id || (id == "" && c.quick != quick) {
		return fmt.Errorf("transcript changed while improving")
	}
	c.st.Improving = false
	if err != nil {
		c.st.ImproveError = err.Error()
		return fmt.Errorf("improve: %w", err)
	}
	c.st.Sentences = normalize(sentences)
	c.st.SaveVisible = id != ""
	return nil
}

func (c *Controller) improve(ctx context.Context, id string, quick *api.TranscribeResponse) ([]api.Sentence, error) {
	var whisper, corti string
	if id != "" {
		detail, err := c.api.GetTranscript(ctx, id)
		if err != nil {
			return nil, err
		}
		whisper, corti = detail.WhisperTranscript, detail.CortiTranscript
	} else {
		whisper, corti = quick.WhisperTranscription, quick.CortiTranscription
	}
	whisper, corti = c.clean(ctx, whisper), c.clean(ctx, corti)
	if whisper == "" && corti == "" {
		return nil, fmt.Errorf("no transcript text to improve")
	}
	return c.api.Improve(ctx, whisper, corti)
}

func (c *Controller) clean(ctx context.Context, text string) string {
	if c.cfg.Cleaner == nil {
		return text
	}
	res, err := c.cfg.Cleaner.Process(ctx, text)
	if err != nil {
		goapp.Log.Warn().Err(err).Msg("clean")
		return text
	}
	return res
}

// EditSentence replaces sentence text with the user edit. Uncertain words
// no longer present in the text are dropped
func (c *Controller) EditSentence(index int, text string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if index < 0 || index >= len(c.st.Sentences) {
		return fmt.Errorf("wrong sentence index %d", index)
	}
	s := &c.st.Sentences[index]
	s.Text = strings.TrimSpace(text)
	words := []string{}
	for _, w := range s.SpecificUncertainWord {
		if containsWord(s.Text, w) {
			words = append(words, w)
		}
	}
	s.SpecificUncertainWord = words
	c.touchLocked()
	return nil
}

// ReplaceSentences sets sentences read back from edited markup
func (c *Controller) ReplaceSentences(markup string) error {
	sentences, err := view.ExtractSentences(markup)
	if err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.st.Sentences = normalize(sentences)
	c.touchLocked()
	return nil
}

// Save sends the edited sentences to the API and shows a transient saved label
func (c *Controller) Save(ctx context.Context) error {
	c.lock.Lock()
	id := c.currentID
	sentences := copySentences(c.st.Sentences)
	c.lock.Unlock()
	if id == "" {
		c.setSaveError("no transcript selected")
		return fmt.Errorf("no transcript selected")
	}

	if err := c.api.SaveImproved(ctx, id, sentences); err != nil {
		c.setSaveError(err.Error())
		return fmt.Errorf("save: %w", err)
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.st.SaveError = ""
	c.st.SaveLabel = SavedLabel
	if c.saveTimer != nil {
		c.saveTimer.Stop()
	}
	c.saveTimer = time.AfterFunc(c.cfg.SaveFeedback, func() {
		c.lock.Lock()
		defer c.lock.Unlock()
		c.st.SaveLabel = DefaultSaveLabel
	})
	c.touchLocked()
	return nil
}

func (c *Controller) setSaveError(msg string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.st.SaveError = msg
	c.touchLocked()
}

// GenerateManuscript fills the manuscript panel for topic
func (c *Controller) GenerateManuscript(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	c.lock.Lock()
	if topic == "" {
		c.st.ManuscriptError = "Please enter a topic."
		c.lock.Unlock()
		return fmt.Errorf("no topic")
	}
	c.st.ManuscriptLoading = true
	c.st.ManuscriptError = ""
	c.lock.Unlock()

	res, err := c.api.Manuscript(ctx, topic)

	c.lock.Lock()
	defer c.lock.Unlock()
	c.st.ManuscriptLoading = false
	if err != nil {
		c.st.ManuscriptError = err.Error()
		return fmt.Errorf("manuscript: %w", err)
	}
	c.st.Manuscript = res
	return nil
}

// Snapshot returns the persisted part of the session
func (c *Controller) Snapshot() *domain.Session {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *domain.Session {
	return &domain.Session{ID: c.id, CurrentTranscriptID: c.currentID,
		Sentences: copySentences(c.st.Sentences), Updated: time.Now()}
}

// Restore loads a persisted session: the transcript is selected again and
// unsaved sentence edits replace the loaded ones once details arrive
func (c *Controller) Restore(data *domain.Session) error {
	if data == nil || data.CurrentTranscriptID == "" {
		return nil
	}
	if err := client.CheckID(data.CurrentTranscriptID); err != nil {
		return err
	}
	c.lock.Lock()
	c.restored = data
	c.lock.Unlock()
	return c.SelectJob(data.CurrentTranscriptID)
}

func (c *Controller) touchLocked() {
	c.lastUsed = time.Now()
}

// Close stops the poll loop and pending timers
func (c *Controller) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.stopPollingLocked()
	if c.saveTimer != nil {
		c.saveTimer.Stop()
	}
	c.cancel()
}

// isGone reports errors that repeat on every poll
func isGone(err error) bool {
	return errors.Is(err, client.ErrBadID) || client.IsNotFound(err)
}

func normalize(sentences []api.Sentence) []api.Sentence {
	res := copySentences(sentences)
	for i := range res {
		if res[i].SpecificUncertainWord == nil {
			res[i].SpecificUncertainWord = []string{}
		}
	}
	return res
}

func copySentences(sentences []api.Sentence) []api.Sentence {
	if sentences == nil {
		return nil
	}
	res := make([]api.Sentence, len(sentences))
	for i, s := range sentences {
		res[i] = s
		if s.SpecificUncertainWord != nil {
			res[i].SpecificUncertainWord = append([]string{}, s.SpecificUncertainWord...)
		}
	}
	return res
}

func containsWord(text, word string) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
