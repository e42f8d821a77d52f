package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/airenas/transcript-workbench/internal/api"
	"github.com/airenas/transcript-workbench/internal/client"
	"github.com/airenas/transcript-workbench/internal/domain"
	"github.com/airenas/transcript-workbench/internal/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func newTestController(t *testing.T) (*Controller, *fakeAPI, *testTickers) {
	t.Helper()
	f := newFakeAPI()
	ts := &testTickers{}
	c := NewController(context.Background(), "s1", f, Config{NewTicker: ts.newTicker, SaveFeedback: 50 * time.Millisecond})
	t.Cleanup(c.Close)
	return c, f, ts
}

func completed(id string) *api.TranscriptDetail {
	return &api.TranscriptDetail{ID: id, Status: api.StatusCompleted, WhisperTranscript: "give 5 mg aspirin",
		CortiTranscript: "give 5mg aspirin"}
}

func TestController_LoadJobs(t *testing.T) {
	c, f, _ := newTestController(t)
	f.jobs = []*api.Job{{ID: "1", Status: api.StatusCompleted}, {ID: "2", Status: api.StatusProcessing}}

	require.NoError(t, c.LoadJobs(context.Background()))
	assert.Len(t, c.State().Jobs, 2)

	f.jobsErr = errors.New("olia")
	assert.Error(t, c.LoadJobs(context.Background()))
	st := c.State()
	assert.Len(t, st.Jobs, 2)
	assert.Equal(t, "olia", st.JobsError)
}

func TestController_SelectJob_StartsPolling(t *testing.T) {
	c, f, ts := newTestController(t)

	require.NoError(t, c.SelectJob(idA))

	assert.Eventually(t, func() bool { return f.gets(idA) == 1 }, waitFor, tick)
	id, ok := c.PollingID()
	assert.True(t, ok)
	assert.Equal(t, idA, id)
	st := c.State()
	assert.Equal(t, idA, st.Selected)
	assert.True(t, st.DetailsVisible)
	assert.False(t, st.ImproveVisible)
	require.Equal(t, 1, ts.len())
	assert.True(t, ts.get(0).tick())
	assert.Eventually(t, func() bool { return f.gets(idA) == 2 }, waitFor, tick)
}

func TestController_SelectJob_CancelsPrevious(t *testing.T) {
	c, f, ts := newTestController(t)

	require.NoError(t, c.SelectJob(idA))
	assert.Eventually(t, func() bool { return f.gets(idA) == 1 }, waitFor, tick)
	require.NoError(t, c.SelectJob(idB))

	require.Equal(t, 2, ts.len())
	select {
	case <-ts.get(0).stopped:
	case <-time.After(waitFor):
		t.Fatal("first poll loop not stopped")
	}
	id, ok := c.PollingID()
	assert.True(t, ok)
	assert.Equal(t, idB, id)
	assert.Eventually(t, func() bool { return f.gets(idB) == 1 }, waitFor, tick)
	assert.Equal(t, 1, f.gets(idA))
	assert.Equal(t, idB, c.State().Selected)
}

func TestController_Poll_Processing(t *testing.T) {
	c, f, ts := newTestController(t)

	require.NoError(t, c.SelectJob(idA))
	assert.Eventually(t, func() bool { return c.State().Status == "Job "+idA+" is still processing..." }, waitFor, tick)
	assert.True(t, ts.get(0).tick())
	assert.Eventually(t, func() bool { return f.gets(idA) == 2 }, waitFor, tick)

	st := c.State()
	assert.Nil(t, st.Detail)
	assert.True(t, st.DetailsLoading)
	assert.False(t, st.ImproveVisible)
	assert.Equal(t, 0, f.lists())
	_, ok := c.PollingID()
	assert.True(t, ok)
}

func TestController_Poll_Completed(t *testing.T) {
	c, f, ts := newTestController(t)
	f.jobs = []*api.Job{{ID: idA, Status: api.StatusCompleted}}

	require.NoError(t, c.SelectJob(idA))
	assert.Eventually(t, func() bool { return c.State().Status == "Job "+idA+" is still processing..." }, waitFor, tick)
	f.setDetail(completed(idA))
	assert.True(t, ts.get(0).tick())

	select {
	case <-ts.get(0).stopped:
	case <-time.After(waitFor):
		t.Fatal("poll loop not stopped")
	}
	assert.Eventually(t, func() bool { return f.lists() == 1 }, waitFor, tick)
	st := c.State()
	assert.Equal(t, "Job loaded.", st.Status)
	require.NotNil(t, st.Detail)
	assert.Equal(t, "give 5mg aspirin", st.Detail.CortiTranscript)
	assert.False(t, st.DetailsLoading)
	assert.True(t, st.ImproveVisible)
	assert.False(t, st.SaveVisible)
	assert.Empty(t, st.Sentences)
	_, ok := c.PollingID()
	assert.False(t, ok)
	assert.Len(t, st.Jobs, 1)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.lists())
}

func TestController_Poll_CompletedWithImproved(t *testing.T) {
	c, f, _ := newTestController(t)
	d := completed(idA)
	d.ImprovedTranscript = &api.ImprovedTranscript{Sentences: []api.Sentence{{Text: "saved"}}}
	f.setDetail(d)

	require.NoError(t, c.SelectJob(idA))

	assert.Eventually(t, func() bool { return c.State().SaveVisible }, waitFor, tick)
	st := c.State()
	require.Len(t, st.Sentences, 1)
	assert.Equal(t, "saved", st.Sentences[0].Text)
	assert.Equal(t, []string{}, st.Sentences[0].SpecificUncertainWord)
}

func TestController_Poll_ErrorKeepsPolling(t *testing.T) {
	c, f, ts := newTestController(t)
	f.detailErr = errors.New("503")

	require.NoError(t, c.SelectJob(idA))
	assert.Eventually(t, func() bool { return c.State().ResultsError == "503" }, waitFor, tick)
	_, ok := c.PollingID()
	assert.True(t, ok)

	f.lock.Lock()
	f.detailErr = nil
	f.lock.Unlock()
	f.setDetail(completed(idA))
	assert.True(t, ts.get(0).tick())
	assert.Eventually(t, func() bool { return c.State().Status == "Job loaded." }, waitFor, tick)
	assert.Empty(t, c.State().ResultsError)
}

func TestController_SelectJob_BadID(t *testing.T) {
	c, _, ts := newTestController(t)

	for _, id := range []string{"", "  ", "1", "../x"} {
		err := c.SelectJob(id)
		assert.ErrorIs(t, err, client.ErrBadID, id)
	}
	assert.Equal(t, 0, ts.len())
	_, ok := c.PollingID()
	assert.False(t, ok)
	assert.Empty(t, c.State().Selected)
}

func TestController_Poll_StopsOnMissingJob(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "not found", err: &client.HTTPError{Code: http.StatusNotFound, Msg: "Transcript not found"}},
		{name: "bad id", err: fmt.Errorf("wrap: %w", client.ErrBadID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f, ts := newTestController(t)
			f.detailErr = tt.err

			require.NoError(t, c.SelectJob(idA))

			select {
			case <-ts.get(0).stopped:
			case <-time.After(waitFor):
				t.Fatal("poll loop not stopped")
			}
			assert.Eventually(t, func() bool {
				_, ok := c.PollingID()
				return !ok
			}, waitFor, tick)
			st := c.State()
			assert.NotEmpty(t, st.ResultsError)
			assert.False(t, st.DetailsLoading)
			assert.Equal(t, "Job "+idA+" not found.", st.Status)
			assert.Equal(t, 1, f.gets(idA))
		})
	}
}

func TestController_Upload(t *testing.T) {
	c, f, _ := newTestController(t)
	f.createRes = &api.CreateResponse{TranscriptID: "new", Status: api.StatusProcessing}

	id, err := c.Upload(context.Background(), "a.wav", bytes.NewReader([]byte("data")), 4)

	require.NoError(t, err)
	assert.Equal(t, "new", id)
	st := c.State()
	assert.Equal(t, "Job new started. Processing...", st.Status)
	require.Len(t, st.Jobs, 1)
	assert.Equal(t, api.StatusProcessing, st.Jobs[0].Status)
	assert.Equal(t, []string{"a.wav"}, f.created)
}

func TestController_Upload_Fails(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		size    int64
		apiErr  error
		wantAPI bool
	}{
		{name: "empty", file: "a.wav", size: 0},
		{name: "too large", file: "a.wav", size: 101 * 1024 * 1024},
		{name: "no name", file: " ", size: 10},
		{name: "api", file: "a.wav", size: 10, apiErr: errors.New("500"), wantAPI: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f, _ := newTestController(t)
			f.createErr = tt.apiErr

			_, err := c.Upload(context.Background(), tt.file, bytes.NewReader(nil), tt.size)

			assert.Error(t, err)
			assert.NotEmpty(t, c.State().InputError)
			assert.Equal(t, tt.wantAPI, len(f.created) > 0)
			assert.Equal(t, 0, f.lists())
		})
	}
}

func TestController_Recording(t *testing.T) {
	c, f, _ := newTestController(t)
	f.createRes = &api.CreateResponse{TranscriptID: "rec"}

	require.NoError(t, c.StartRecording(FormatPCM))
	assert.True(t, c.State().Recording)
	assert.Error(t, c.StartRecording(FormatPCM))
	st := c.State()
	assert.True(t, st.Recording)
	assert.NotEmpty(t, st.InputError)

	require.NoError(t, c.AddAudio([]byte{1, 0, 2, 0}))
	id, err := c.StopRecording(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "rec", id)
	assert.False(t, c.State().Recording)
	require.Len(t, f.created, 1)
	assert.Regexp(t, `^recording-.*\.wav$`, f.created[0])
}

func TestController_Recording_StopWithoutStart(t *testing.T) {
	c, f, _ := newTestController(t)

	_, err := c.StopRecording(context.Background())

	assert.Error(t, err)
	assert.Error(t, c.AddAudio([]byte{1}))
	st := c.State()
	assert.False(t, st.Recording)
	assert.NotEmpty(t, st.InputError)
	assert.Empty(t, f.created)
}

func TestController_CancelRecording(t *testing.T) {
	c, f, _ := newTestController(t)
	require.NoError(t, c.StartRecording("audio/webm"))
	require.NoError(t, c.AddAudio([]byte{1}))

	c.CancelRecording()

	st := c.State()
	assert.False(t, st.Recording)
	assert.Empty(t, st.InputInfo)
	_, err := c.StopRecording(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.created)
}

func selectCompleted(t *testing.T, c *Controller, f *fakeAPI, id string) {
	t.Helper()
	f.setDetail(completed(id))
	require.NoError(t, c.SelectJob(id))
	assert.Eventually(t, func() bool { return c.State().ImproveVisible }, waitFor, tick)
}

func TestController_Improve(t *testing.T) {
	c, f, _ := newTestController(t)
	hl, _ := handlers.NewListHandler()
	hl.Add(handlers.NewCleaner())
	c.cfg.Cleaner = hl
	f.sentences = []api.Sentence{{Text: "give 5mg aspirin", IsUncertain: true, SpecificUncertainWord: []string{"5mg"}},
		{Text: "ok"}}
	d := completed(idA)
	d.WhisperTranscript = "  give   5 mg aspirin "
	f.setDetail(d)
	require.NoError(t, c.SelectJob(idA))
	assert.Eventually(t, func() bool { return c.State().ImproveVisible }, waitFor, tick)

	require.NoError(t, c.Improve(context.Background()))

	assert.Equal(t, [2]string{"give 5 mg aspirin", "give 5mg aspirin"}, f.improveIn)
	st := c.State()
	require.Len(t, st.Sentences, 2)
	assert.Equal(t, []string{}, st.Sentences[1].SpecificUncertainWord)
	assert.True(t, st.SaveVisible)
	assert.False(t, st.Improving)
}

func TestController_Improve_ErrorKeepsSentences(t *testing.T) {
	c, f, _ := newTestController(t)
	f.sentences = []api.Sentence{{Text: "first"}}
	selectCompleted(t, c, f, idA)
	require.NoError(t, c.Improve(context.Background()))

	f.improveErr = errors.New("no model")
	assert.Error(t, c.Improve(context.Background()))

	st := c.State()
	assert.Equal(t, "no model", st.ImproveError)
	require.Len(t, st.Sentences, 1)
	assert.Equal(t, "first", st.Sentences[0].Text)
}

func TestController_Improve_NoTranscript(t *testing.T) {
	c, _, _ := newTestController(t)

	assert.Error(t, c.Improve(context.Background()))
	assert.NotEmpty(t, c.State().ImproveError)
}

func TestController_EditAndSave(t *testing.T) {
	c, f, _ := newTestController(t)
	f.sentences = []api.Sentence{{Text: "give 5mg aspirin", IsUncertain: true, SpecificUncertainWord: []string{"5mg", "aspirin"},
		BestModelForMedicalTerminology: "Corti", BestEverydaySpeech: "Whisper"}}
	selectCompleted(t, c, f, idA)
	require.NoError(t, c.Improve(context.Background()))

	require.NoError(t, c.EditSentence(0, "  give 10mg aspirin  "))
	assert.Error(t, c.EditSentence(1, "x"))
	require.NoError(t, c.Save(context.Background()))

	assert.Equal(t, idA, f.savedID)
	require.Len(t, f.saved, 1)
	assert.Equal(t, "give 10mg aspirin", f.saved[0].Text)
	assert.Equal(t, []string{"aspirin"}, f.saved[0].SpecificUncertainWord)
	assert.Equal(t, "Corti", f.saved[0].BestModelForMedicalTerminology)
	assert.Equal(t, SavedLabel, c.State().SaveLabel)
	assert.Eventually(t, func() bool { return c.State().SaveLabel == DefaultSaveLabel }, waitFor, tick)
}

func TestController_Save_Error(t *testing.T) {
	c, f, _ := newTestController(t)
	f.sentences = []api.Sentence{{Text: "a"}}
	selectCompleted(t, c, f, idA)
	require.NoError(t, c.Improve(context.Background()))
	f.saveErr = errors.New("404")

	assert.Error(t, c.Save(context.Background()))

	st := c.State()
	assert.Equal(t, "404", st.SaveError)
	assert.Equal(t, DefaultSaveLabel, st.SaveLabel)
	assert.Len(t, st.Sentences, 1)
}

func TestController_ReplaceSentences(t *testing.T) {
	c, _, _ := newTestController(t)

	markup := `<ul><li class="uncertain-sentence"><div class="sentence-text">Hello <span class="uncertain-word">world</span></div></li></ul>`
	require.NoError(t, c.ReplaceSentences(markup))

	got := c.Sentences()
	require.Len(t, got, 1)
	assert.Equal(t, "Hello world", got[0].Text)
	assert.True(t, got[0].IsUncertain)
	assert.Equal(t, []string{"world"}, got[0].SpecificUncertainWord)
}

func TestController_Manuscript(t *testing.T) {
	c, f, _ := newTestController(t)
	f.manuscript = &api.Manuscript{Title: "T", Prose: "p", KeyTakeaways: []string{"k"}}

	assert.Error(t, c.GenerateManuscript(context.Background(), "  "))
	assert.Equal(t, "Please enter a topic.", c.State().ManuscriptError)
	assert.Empty(t, f.topics)

	require.NoError(t, c.GenerateManuscript(context.Background(), "asthma"))
	st := c.State()
	assert.Empty(t, st.ManuscriptError)
	assert.Equal(t, "T", st.Manuscript.Title)
	assert.Equal(t, []string{"asthma"}, f.topics)
}

func TestController_TranscribeOnce(t *testing.T) {
	c, f, _ := newTestController(t)
	f.transcribe = &api.TranscribeResponse{WhisperTranscription: "w", CortiTranscription: "c"}
	f.sentences = []api.Sentence{{Text: "wc"}}

	require.NoError(t, c.TranscribeOnce(context.Background(), "a.wav", bytes.NewReader([]byte{1}), 1))

	st := c.State()
	require.NotNil(t, st.Detail)
	assert.Equal(t, "w", st.Detail.WhisperTranscript)
	assert.True(t, st.ImproveVisible)

	require.NoError(t, c.Improve(context.Background()))
	assert.Equal(t, [2]string{"w", "c"}, f.improveIn)
	assert.False(t, c.State().SaveVisible)
	assert.Error(t, c.Save(context.Background()))
}

func TestController_SnapshotRestore(t *testing.T) {
	c, f, _ := newTestController(t)
	d := completed(idA)
	d.ImprovedTranscript = &api.ImprovedTranscript{Sentences: []api.Sentence{{Text: "server"}}}
	f.setDetail(d)

	require.NoError(t, c.Restore(&domain.Session{ID: "s1", CurrentTranscriptID: idA,
		Sentences: []api.Sentence{{Text: "local edit"}}}))

	assert.Eventually(t, func() bool { return c.State().ImproveVisible }, waitFor, tick)
	st := c.State()
	require.Len(t, st.Sentences, 1)
	assert.Equal(t, "local edit", st.Sentences[0].Text)
	assert.True(t, st.SaveVisible)

	snap := c.Snapshot()
	assert.Equal(t, "s1", snap.ID)
	assert.Equal(t, idA, snap.CurrentTranscriptID)
	assert.Equal(t, "local edit", snap.Sentences[0].Text)
}

func TestController_Close_StopsPolling(t *testing.T) {
	c, _, ts := newTestController(t)
	require.NoError(t, c.SelectJob(idA))

	c.Close()

	select {
	case <-ts.get(0).stopped:
	case <-time.After(waitFor):
		t.Fatal("poll loop not stopped")
	}
	_, ok := c.PollingID()
	assert.False(t, ok)
}
