package session

import (
	"context"
	"testing"
	"time"

	"github.com/airenas/transcript-workbench/internal/api"
	"github.com/airenas/transcript-workbench/internal/db"
	"github.com/airenas/transcript-workbench/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *fakeAPI, *db.MemoryDataManager) {
	t.Helper()
	f := newFakeAPI()
	store := db.NewMemoryDataManager()
	ts := &testTickers{}
	m, err := NewManager(context.Background(), f, store, Config{NewTicker: ts.newTicker}, time.Hour)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, f, store
}

func TestNewManager_Fails(t *testing.T) {
	_, err := NewManager(context.Background(), nil, db.NewMemoryDataManager(), Config{}, 0)
	assert.Error(t, err)
	_, err = NewManager(context.Background(), newFakeAPI(), nil, Config{}, 0)
	assert.Error(t, err)
}

func TestManager_Get(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	c, err := m.Get(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, c.ID())

	c2, err := m.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.Same(t, c, c2)

	c3, err := m.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID(), c3.ID())
	assert.NotEqual(t, "unknown", c3.ID())
	assert.Equal(t, 2, m.Len())
}

func TestManager_Restore(t *testing.T) {
	m, f, store := newTestManager(t)
	ctx := context.Background()
	f.setDetail(completed(idA))
	require.NoError(t, store.SaveSession(ctx, &domain.Session{ID: "old", CurrentTranscriptID: idA,
		Sentences: []api.Sentence{{Text: "kept"}}}))

	c, err := m.Get(ctx, "old")

	require.NoError(t, err)
	assert.Equal(t, "old", c.ID())
	assert.Equal(t, idA, c.CurrentTranscriptID())
	assert.Eventually(t, func() bool { return c.State().ImproveVisible }, waitFor, tick)
	assert.Equal(t, "kept", c.Sentences()[0].Text)
}

func TestManager_Save(t *testing.T) {
	m, _, store := newTestManager(t)
	ctx := context.Background()
	c, err := m.Get(ctx, "")
	require.NoError(t, err)
	require.NoError(t, c.SelectJob(idA))

	require.NoError(t, m.Save(ctx, c))

	got, err := store.GetSession(ctx, c.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, idA, got.CurrentTranscriptID)
}

func TestManager_Expire(t *testing.T) {
	m, _, store := newTestManager(t)
	ctx := context.Background()
	c, err := m.Get(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, c))

	assert.Equal(t, 0, m.Expire(ctx, time.Now()))
	assert.Equal(t, 1, m.Expire(ctx, time.Now().Add(2*time.Hour)))

	assert.Equal(t, 0, m.Len())
	got, err := store.GetSession(ctx, c.ID())
	require.NoError(t, err)
	assert.Nil(t, got)
}
