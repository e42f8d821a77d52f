package db

import (
	"context"
	"sync"

	"github.com/airenas/transcript-workbench/internal/api"
	"github.com/airenas/transcript-workbench/internal/domain"
)

// MemoryDataManager keeps session snapshots in memory
type MemoryDataManager struct {
	sessions map[string]*domain.Session

	lock sync.RWMutex
}

func NewMemoryDataManager() *MemoryDataManager {
	return &MemoryDataManager{
		sessions: make(map[string]*domain.Session),
	}
}

// SaveSession implements session.Store.
func (am *MemoryDataManager) SaveSession(ctx context.Context, data *domain.Session) error {
	am.lock.Lock()
	defer am.lock.Unlock()
	am.sessions[data.ID] = copySession(data)
	return nil
}

// GetSession implements session.Store. Returns nil if no session found
func (am *MemoryDataManager) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	am.lock.RLock()
	defer am.lock.RUnlock()
	data, ok := am.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(data), nil
}

// DeleteSession implements session.Store.
func (am *MemoryDataManager) DeleteSession(ctx context.Context, id string) error {
	am.lock.Lock()
	defer am.lock.Unlock()
	delete(am.sessions, id)
	return nil
}

func copySession(data *domain.Session) *domain.Session {
	cp := *data
	if data.Sentences != nil {
		cp.Sentences = make([]api.Sentence, len(data.Sentences))
		for i, s := range data.Sentences {
			cp.Sentences[i] = s
			cp.Sentences[i].SpecificUncertainWord = append([]string{}, s.SpecificUncertainWord...)
		}
	}
	return &cp
}
