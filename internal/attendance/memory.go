package attendance

import (
	"context"
	"sync"
)

// MemoryStore keeps events in process memory. It enforces the same guards
// as the Postgres schema and backs dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]Event
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]Event)}
}

func (m *MemoryStore) Insert(ctx context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[evt.ID]; ok {
		return ErrIDTaken
	}
	for _, e := range m.events {
		if e.InternID != evt.InternID {
			continue
		}
		if (isPending(e) && isPending(evt)) || (isCurrent(e) && isCurrent(evt)) {
			return ErrStale
		}
	}
	m.events[evt.ID] = evt
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return e, nil
}

func (m *MemoryStore) ListByIntern(ctx context.Context, internID string) ([]Event, error) {
	return m.filter(func(e Event) bool { return e.InternID == internID }), nil
}

func (m *MemoryStore) ListByTeacher(ctx context.Context, teacherID string) ([]Event, error) {
	return m.filter(func(e Event) bool { return e.TeacherID == teacherID }), nil
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]Event, error) {
	return m.filter(func(Event) bool { return true }), nil
}

func (m *MemoryStore) CloseSession(ctx context.Context, id string, c Closing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || !isCurrent(e) {
		return ErrStale
	}
	for _, other := range m.events {
		if other.InternID == e.InternID && other.ID != id && isPending(other) {
			return ErrStale
		}
	}
	clockOut := c.ClockOut
	e.ClockOut = &clockOut
	e.TimeOutPhotoURL = c.TimeOutPhotoURL
	e.IsEarly = c.IsEarly
	e.Status = StatusPending
	e.UpdatedAt = c.UpdatedAt
	m.events[id] = e
	return nil
}

func (m *MemoryStore) Decide(ctx context.Context, id string, d Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || !isPending(e) {
		return ErrStale
	}
	if d.Status == StatusApproved && e.Open() {
		for _, other := range m.events {
			if other.InternID == e.InternID && isCurrent(other) {
				return ErrStale
			}
		}
	}
	at := d.At
	e.Status = d.Status
	e.ApprovedAt = &at
	e.ApprovedBy = d.ApprovedBy
	e.ApprovalReason = d.Reason
	e.UpdatedAt = d.At
	m.events[id] = e
	return nil
}

func (m *MemoryStore) SetPhotoScore(ctx context.Context, id string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.PhotoScore = &score
	m.events[id] = e
	return nil
}

func (m *MemoryStore) Rekey(ctx context.Context, oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[oldID]
	if !ok {
		return ErrEventNotFound
	}
	if _, taken := m.events[newID]; taken {
		return ErrIDTaken
	}
	delete(m.events, oldID)
	e.ID = newID
	m.events[newID] = e
	return nil
}

func (m *MemoryStore) filter(keep func(Event) bool) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	for _, e := range m.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
