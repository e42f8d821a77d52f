package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/airenas/transcript-workbench/internal/api"
)

const (
	idA = "0b6f1a9e-3c2d-4e5f-8a7b-1c2d3e4f5a6b"
	idB = "7d1e2f3a-4b5c-4d6e-9f70-8a9b0c1d2e3f"
)

type fakeAPI struct {
	lock sync.Mutex

	jobs       []*api.Job
	jobsErr    error
	listCalls  int
	created    []string
	createRes  *api.CreateResponse
	createErr  error
	details    map[string]*api.TranscriptDetail
	detailErr  error
	getCalls   map[string]int
	saved      []api.Sentence
	savedID    string
	saveErr    error
	transcribe *api.TranscribeResponse
	improveIn  [2]string
	sentences  []api.Sentence
	improveErr error
	manuscript *api.Manuscript
	topics     []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{details: map[string]*api.TranscriptDetail{}, getCalls: map[string]int{}}
}

func (f *fakeAPI) ListJobs(ctx context.Context) ([]*api.Job, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.listCalls++
	return f.jobs, f.jobsErr
}

func (f *fakeAPI) CreateJob(ctx context.Context, fileName string, r io.Reader) (*api.CreateResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.created = append(f.created, fileName)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.jobs = append(f.jobs, &api.Job{ID: f.createRes.TranscriptID, OriginalFilename: fileName,
		Status: api.StatusProcessing, CreatedAt: api.NewTime(time.Now())})
	return f.createRes, nil
}

func (f *fakeAPI) GetTranscript(ctx context.Context, id string) (*api.TranscriptDetail, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.getCalls[id]++
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	d, ok := f.details[id]
	if !ok {
		return &api.TranscriptDetail{ID: id, Status: api.StatusProcessing}, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeAPI) SaveImproved(ctx context.Context, id string, sentences []api.Sentence) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedID, f.saved = id, sentences
	return nil
}

func (f *fakeAPI) Transcribe(ctx context.Context, fileName string, r io.Reader) (*api.TranscribeResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.transcribe, nil
}

func (f *fakeAPI) Improve(ctx context.Context, whisper, corti string) ([]api.Sentence, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.improveIn = [2]string{whisper, corti}
	return f.sentences, f.improveErr
}

func (f *fakeAPI) Manuscript(ctx context.Context, topic string) (*api.Manuscript, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.topics = append(f.topics, topic)
	return f.manuscript, nil
}

func (f *fakeAPI) setDetail(d *api.TranscriptDetail) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.details[d.ID] = d
}

func (f *fakeAPI) gets(id string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.getCalls[id]
}

func (f *fakeAPI) lists() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.listCalls
}

type testTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *testTicker) C() <-chan time.Time { return t.c }
func (t *testTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

type testTickers struct {
	lock sync.Mutex
	list []*testTicker
}

func (ts *testTickers) newTicker(d time.Duration) Ticker {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	t := &testTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	ts.list = append(ts.list, t)
	return t
}

func (ts *testTickers) get(i int) *testTicker {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	return ts.list[i]
}

func (ts *testTickers) len() int {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	return len(ts.list)
}

// tick returns false if nobody listens on the ticker
func (t *testTicker) tick() bool {
	select {
	case t.c <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}
