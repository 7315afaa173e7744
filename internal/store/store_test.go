package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ykvlv/timetable-bot/internal/domain"
)

func openSQLite(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// exerciseRepo runs the same behavioural checks against any Repo.
func exerciseRepo(t *testing.T, repo Repo) {
	t.Helper()
	ctx := context.Background()

	p, err := repo.GetPreferences(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != (domain.Preferences{ChatID: 7}) {
		t.Fatalf("want defaults, got %+v", p)
	}

	var groups []int
	for i := 0; i < 5; i++ {
		g, err := repo.ToggleGroup(ctx, 7, 3)
		if err != nil {
			t.Fatalf("toggle group: %v", err)
		}
		groups = append(groups, g)
	}
	if !reflect.DeepEqual(groups, []int{1, 2, 3, 0, 1}) {
		t.Fatalf("unexpected group cycle %v", groups)
	}

	on, err := repo.ToggleNotifications(ctx, 7)
	if err != nil || !on {
		t.Fatalf("want notifications on, got %v (%v)", on, err)
	}
	if _, err := repo.ToggleNotifications(ctx, 9); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := repo.ToggleGroup(ctx, 3, 3); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	ids, err := repo.ListNotified(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{7, 9}) {
		t.Fatalf("want [7 9], got %v", ids)
	}

	p, _ = repo.GetPreferences(ctx, 7)
	if p.Group != 1 || !p.Notifications {
		t.Fatalf("unexpected prefs %+v", p)
	}

	if off, _ := repo.ToggleNotifications(ctx, 7); off {
		t.Fatal("second toggle should disable notifications")
	}
	ids, _ = repo.ListNotified(ctx)
	if !reflect.DeepEqual(ids, []int64{9}) {
		t.Fatalf("want [9], got %v", ids)
	}
}

func TestMemoryRepo(t *testing.T) {
	exerciseRepo(t, NewMemory())
}

func TestSQLiteRepo(t *testing.T) {
	exerciseRepo(t, openSQLite(t))
}

func TestSQLiteRepo_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	repo, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := repo.ToggleGroup(ctx, 5, 3); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	_ = repo.Close()

	repo, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	p, err := repo.GetPreferences(ctx, 5)
	if err != nil || p.Group != 1 {
		t.Fatalf("want group 1 after reopen, got %+v (%v)", p, err)
	}
}

func TestURLStore_RoundTripAndOverwrite(t *testing.T) {
	s := NewURLStore(filepath.Join(t.TempDir(), "nested", "urls.json"), zaptest.NewLogger(t))
	if _, ok := s.Get(1); ok {
		t.Fatal("empty store should have no url")
	}
	if err := s.Set(1, "https://example.edu/plan/1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(2, "https://example.edu/plan/2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(1, "https://example.edu/plan/1b"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if u, ok := s.Get(1); !ok || u != "https://example.edu/plan/1b" {
		t.Fatalf("want overwritten url, got %q", u)
	}
	want := []SavedURL{{1, "https://example.edu/plan/1b"}, {2, "https://example.edu/plan/2"}}
	if got := s.All(); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestURLStore_CorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewURLStore(path, zaptest.NewLogger(t))
	if got := s.All(); len(got) != 0 {
		t.Fatalf("want empty, got %v", got)
	}
	if err := s.Set(3, "https://example.edu/3"); err != nil {
		t.Fatalf("set after corrupt: %v", err)
	}
	if u, ok := s.Get(3); !ok || u != "https://example.edu/3" {
		t.Fatalf("want recovered store, got %q", u)
	}
}
