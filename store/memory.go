package store

import (
	"context"
	"sync"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
)

// Memory is a map-backed match.ProfileStore. It keeps insertion order so scans
// are deterministic, and is used by tests and the "memory" store driver.
type Memory struct {
	mu       sync.RWMutex
	order    []string
	profiles map[string]match.Profile
	filters  map[string]match.Filters
}

func NewMemory(seed ...match.Profile) *Memory {
	m := &Memory{
		profiles: map[string]match.Profile{},
		filters:  map[string]match.Filters{},
	}
	for _, p := range seed {
		p.Normalize()
		m.put(p)
	}
	return m
}

func (m *Memory) put(p match.Profile) {
	if _, ok := m.profiles[p.UserID]; !ok {
		m.order = append(m.order, p.UserID)
	}
	m.profiles[p.UserID] = p
}

func clone(p match.Profile) match.Profile {
	p.Tags = append([]string(nil), p.Tags...)
	p.Moods = append([]string(nil), p.Moods...)
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	return p
}

func (m *Memory) FindProfilesByAnyTag(ctx context.Context, tags []string) ([]match.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []match.Profile
	for _, id := range m.order {
		p := m.profiles[id]
		for _, t := range tags {
			if p.HasTag(t) {
				out = append(out, clone(p))
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) GetProfile(ctx context.Context, userID string) (*match.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, match.ErrProfileNotFound
	}
	p = clone(p)
	return &p, nil
}

func (m *Memory) GetProfiles(ctx context.Context, userIDs []string) ([]match.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []match.Profile
	for _, id := range userIDs {
		if p, ok := m.profiles[id]; ok {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (m *Memory) SaveProfile(ctx context.Context, userID string, update match.ProfileUpdate) (*match.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, match.ErrInvalidProfile
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		p = match.Profile{UserID: userID}
	}
	p = clone(p)
	update.Apply(&p)
	p.UserID = userID
	m.put(p)

	out := clone(p)
	return &out, nil
}

func (m *Memory) SaveFilters(ctx context.Context, userID string, f match.Filters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[userID] = f
	return nil
}

func (m *Memory) LoadFilters(ctx context.Context, userID string) (*match.Filters, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.filters[userID]
	if !ok {
		return nil, match.ErrProfileNotFound
	}
	return &f, nil
}

var _ match.ProfileStore = (*Memory)(nil)
