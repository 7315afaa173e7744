package store

import (
	"context"

	"github.com/ykvlv/timetable-bot/internal/domain"
)

// Repo defines storage operations for per-chat preferences.
// Chats that never toggled anything read as domain defaults (all groups,
// reminders off).
type Repo interface {
	GetPreferences(ctx context.Context, chatID int64) (domain.Preferences, error)
	// ToggleGroup advances the group filter through 0..groups and returns the new value.
	ToggleGroup(ctx context.Context, chatID int64, groups int) (int, error)
	// ToggleNotifications flips the reminder flag and returns the new value.
	ToggleNotifications(ctx context.Context, chatID int64) (bool, error)
	// ListNotified returns the chats with reminders enabled.
	ListNotified(ctx context.Context) ([]int64, error)
	Close() error
}

// nextGroup cycles 0 -> 1 -> ... -> groups -> 0.
func nextGroup(current, groups int) int {
	if groups <= 0 {
		return 0
	}
	return (current + 1) % (groups + 1)
}
