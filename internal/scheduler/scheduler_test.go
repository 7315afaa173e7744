package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ykvlv/timetable-bot/internal/domain"
	"github.com/ykvlv/timetable-bot/internal/store"
)

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu  sync.Mutex
	out []sent
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sent{chatID, text})
	return nil
}

func (f *fakeSender) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.out...)
}

type fakeSource struct {
	prefs   store.Repo
	docs    map[int64]domain.Document
	listErr error
	panicOn int64
}

func (f *fakeSource) NotifiedChats(ctx context.Context) ([]int64, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.prefs.ListNotified(ctx)
}

func (f *fakeSource) Document(chatID int64) (domain.Document, bool) {
	if chatID == f.panicOn {
		panic("corrupt schedule")
	}
	d, ok := f.docs[chatID]
	return d, ok
}

var sweepDay = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func tenOClock() domain.Document {
	return domain.Document{Sessions: []domain.Session{
		{Date: sweepDay, Start: "10:00", End: "11:30", Subject: "Algebra", Room: "A-101"},
		{Date: sweepDay, Start: "10:05", Subject: "Later", Room: "B"},
		{Date: sweepDay.AddDate(0, 0, 1), Start: "10:00", Subject: "Tomorrow", Room: "C"},
	}}
}

func newTestScheduler(t *testing.T, src Source, sender Sender, at time.Time) *Scheduler {
	t.Helper()
	s := New(src, zaptest.NewLogger(t), sender, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
	return s
}

func TestTick_RemindsOnlyEnabledChats(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMemory()
	if _, err := prefs.ToggleNotifications(ctx, 1); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	src := &fakeSource{prefs: prefs, docs: map[int64]domain.Document{1: tenOClock(), 2: tenOClock()}}
	sender := &fakeSender{}
	s := newTestScheduler(t, src, sender, time.Date(2024, 3, 15, 9, 55, 10, 0, time.UTC))

	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	got := sender.messages()
	if len(got) != 1 {
		t.Fatalf("want exactly one reminder, got %v", got)
	}
	if got[0].chatID != 1 || got[0].text != "⏰ In 5 minutes: Algebra | A-101" {
		t.Fatalf("unexpected reminder %+v", got[0])
	}

	// A second sweep within the same minute does not repeat the reminder.
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n := len(sender.messages()); n != 1 {
		t.Fatalf("want reminder sent once, got %d", n)
	}
}

func TestTick_NoMatchOutsideLeadMinute(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMemory()
	_, _ = prefs.ToggleNotifications(ctx, 1)
	src := &fakeSource{prefs: prefs, docs: map[int64]domain.Document{1: tenOClock()}}
	sender := &fakeSender{}
	s := newTestScheduler(t, src, sender, time.Date(2024, 3, 15, 9, 54, 0, 0, time.UTC))
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := sender.messages(); len(got) != 0 {
		t.Fatalf("want no reminders, got %v", got)
	}
}

func TestTick_ChatFailureDoesNotStopSweep(t *testing.T) {
	ctx := context.Background()
	prefs := store.NewMemory()
	for _, id := range []int64{1, 2, 3} {
		_, _ = prefs.ToggleNotifications(ctx, id)
	}
	src := &fakeSource{
		prefs:   prefs,
		docs:    map[int64]domain.Document{3: tenOClock()},
		panicOn: 1,
	}
	sender := &fakeSender{}
	s := newTestScheduler(t, src, sender, time.Date(2024, 3, 15, 9, 55, 0, 0, time.UTC))
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	got := sender.messages()
	if len(got) != 1 || got[0].chatID != 3 {
		t.Fatalf("want reminder for chat 3 only, got %v", got)
	}
}

func TestTick_ListFailureIsReturned(t *testing.T) {
	src := &fakeSource{prefs: store.NewMemory(), listErr: errors.New("db locked")}
	s := newTestScheduler(t, src, &fakeSender{}, time.Now())
	if err := s.Tick(context.Background()); err == nil || !strings.Contains(err.Error(), "db locked") {
		t.Fatalf("want list error, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{prefs: store.NewMemory(), listErr: errors.New("down")}
	s := newTestScheduler(t, src, &fakeSender{}, time.Now())
	s.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakeResyncer struct {
	saved []store.SavedURL
	fail  map[int64]bool
	calls []int64
}

func (f *fakeResyncer) SavedURLs() []store.SavedURL { return f.saved }

func (f *fakeResyncer) ResyncURL(ctx context.Context, chatID int64, url string) error {
	f.calls = append(f.calls, chatID)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	if f.fail[chatID] {
		return errors.New("portal down")
	}
	return nil
}

func TestResync_RunOnceContinuesAfterFailure(t *testing.T) {
	src := &fakeResyncer{
		saved: []store.SavedURL{{ChatID: 1, URL: "https://a"}, {ChatID: 2, URL: "https://b"}},
		fail:  map[int64]bool{1: true},
	}
	r, err := NewResync("0 5 * * *", src, zaptest.NewLogger(t), time.Minute, time.UTC)
	if err != nil {
		t.Fatalf("new resync: %v", err)
	}
	r.RunOnce(context.Background())
	if len(src.calls) != 2 {
		t.Fatalf("want both urls attempted, got %v", src.calls)
	}
}

func TestNewResync_RejectsBadSpec(t *testing.T) {
	if _, err := NewResync("every day", &fakeResyncer{}, zaptest.NewLogger(t), 0, nil); err == nil {
		t.Fatal("want error for invalid cron expression")
	}
}
