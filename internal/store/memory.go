package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is a volatile Store. Contents are lost on restart.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]Session
	progress map[string]map[string]any
	now      func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:   1,
		sessions: make(map[int64]Session),
		progress: make(map[string]map[string]any),
		now:      time.Now,
	}
}

func (m *Memory) Name() string                          { return "memory" }
func (m *Memory) HealthCheck(ctx context.Context) error { return nil }
func (m *Memory) Close()                                {}

func (m *Memory) CreateSession(ctx context.Context, in NewSession) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	s := buildSession(id, in, m.now().UTC())
	s.Stats = cloneDoc(s.Stats)
	m.sessions[id] = s
	return id, nil
}

func (m *Memory) Session(ctx context.Context, id int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) UserSessions(ctx context.Context, userID int64, limit int) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0)
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) PutProgress(ctx context.Context, userID string, doc map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[userID] = cloneDoc(doc)
	return nil
}

func (m *Memory) Progress(ctx context.Context, userID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.progress[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

// cloneDoc deep-copies a JSON document so callers cannot mutate stored state.
func cloneDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return doc
	}
	return out
}
