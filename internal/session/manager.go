package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/transcript-workbench/internal/domain"
	"github.com/airenas/transcript-workbench/internal/metrics"
	"github.com/oklog/ulid/v2"
)

// Store persists session snapshots
type Store interface {
	SaveSession(ctx context.Context, data *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Manager keeps UI sessions by id
type Manager struct {
	ctx   context.Context
	api   API
	cfg   Config
	store Store
	ttl   time.Duration

	lock     sync.Mutex
	sessions map[string]*Controller
}

// NewManager creates session manager, ctx bounds all session poll loops
func NewManager(ctx context.Context, a API, store Store, cfg Config, ttl time.Duration) (*Manager, error) {
	if a == nil {
		return nil, fmt.Errorf("no API")
	}
	if store == nil {
		return nil, fmt.Errorf("no store")
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	res := &Manager{ctx: ctx, api: a, store: store, cfg: cfg.withDefaults(), ttl: ttl,
		sessions: make(map[string]*Controller)}
	goapp.Log.Info().Dur("ttl", ttl).Dur("poll", res.cfg.PollInterval).Msg("Session manager")
	return res, nil
}

// Get returns session by id. A session missing in memory is restored from the store,
// an unknown id gets a new session
func (m *Manager) Get(ctx context.Context, id string) (*Controller, error) {
	if id != "" {
		if c, ok := m.get(id); ok {
			return c, nil
		}
		data, err := m.store.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
		if data != nil {
			c, created := m.add(id)
			if created {
				goapp.Log.Info().Str("session", id).Str("transcript", data.CurrentTranscriptID).Msg("restore")
				if err := c.Restore(data); err != nil {
					goapp.Log.Warn().Err(err).Str("session", id).Msg("restore")
				}
			}
			return c, nil
		}
	}
	c, _ := m.add(ulid.Make().String())
	return c, nil
}

func (m *Manager) get(id string) (*Controller, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	c, ok := m.sessions[id]
	return c, ok
}

func (m *Manager) add(id string) (*Controller, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if c, ok := m.sessions[id]; ok {
		return c, false
	}
	c := NewController(m.ctx, id, m.api, m.cfg)
	m.sessions[id] = c
	metrics.Get().ActiveSessions.Set(float64(len(m.sessions)))
	return c, true
}

// Save persists the session snapshot
func (m *Manager) Save(ctx context.Context, c *Controller) error {
	if err := m.store.SaveSession(ctx, c.Snapshot()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Len returns the number of sessions in memory
func (m *Manager) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.sessions)
}

// Expire closes and forgets sessions idle longer than ttl, returns the number removed
func (m *Manager) Expire(ctx context.Context, now time.Time) int {
	m.lock.Lock()
	var expired []*Controller
	for id, c := range m.sessions {
		if now.Sub(c.LastUsed()) > m.ttl {
			expired = append(expired, c)
			delete(m.sessions, id)
		}
	}
	metrics.Get().ActiveSessions.Set(float64(len(m.sessions)))
	m.lock.Unlock()

	for _, c := range expired {
		goapp.Log.Info().Str("session", c.ID()).Msg("expire")
		c.Close()
		if err := m.store.DeleteSession(ctx, c.ID()); err != nil {
			goapp.Log.Warn().Err(err).Str("session", c.ID()).Msg("delete session")
		}
	}
	return len(expired)
}

// StartCleaner expires idle sessions every interval until ctx is done
func (m *Manager) StartCleaner(ctx context.Context, interval time.Duration) <-chan struct{} {
	res := make(chan struct{})
	go func() {
		defer close(res)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				if n := m.Expire(ctx, now); n > 0 {
					goapp.Log.Info().Int("count", n).Msg("expired sessions")
				}
			}
		}
	}()
	return res
}

// Close closes all sessions
func (m *Manager) Close() {
	m.lock.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.lock.Unlock()
	for _, c := range sessions {
		c.Close()
	}
}
