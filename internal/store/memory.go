package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ykvlv/timetable-bot/internal/domain"
)

// MemoryRepo keeps preferences in process memory. Nothing survives a restart.
type MemoryRepo struct {
	mu    sync.RWMutex
	prefs map[int64]domain.Preferences
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *MemoryRepo {
	return &MemoryRepo{prefs: make(map[int64]domain.Preferences)}
}

func (m *MemoryRepo) GetPreferences(_ context.Context, chatID int64) (domain.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(chatID), nil
}

func (m *MemoryRepo) ToggleGroup(_ context.Context, chatID int64, groups int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.get(chatID)
	p.Group = nextGroup(p.Group, groups)
	m.prefs[chatID] = p
	return p.Group, nil
}

func (m *MemoryRepo) ToggleNotifications(_ context.Context, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.get(chatID)
	p.Notifications = !p.Notifications
	m.prefs[chatID] = p
	return p.Notifications, nil
}

func (m *MemoryRepo) ListNotified(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []int64
	for id, p := range m.prefs {
		if p.Notifications {
			res = append(res, id)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res, nil
}

func (m *MemoryRepo) Close() error { return nil }

// get must be called with mu held.
func (m *MemoryRepo) get(chatID int64) domain.Preferences {
	if p, ok := m.prefs[chatID]; ok {
		return p
	}
	return domain.Preferences{ChatID: chatID}
}
