package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/timetable-bot/internal/domain"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Router implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Source supplies the chats to remind and their current schedules.
// timetable.Service implements it.
type Source interface {
	NotifiedChats(ctx context.Context) ([]int64, error)
	Document(chatID int64) (domain.Document, bool)
}

const (
	DefaultInterval = time.Minute
	DefaultLead     = 5 * time.Minute
	DefaultBackoff  = 5 * time.Second
)

// Scheduler periodically sweeps schedules and sends a reminder for every
// session starting exactly Lead from now.
type Scheduler struct {
	src      Source
	log      *zap.Logger
	sender   Sender
	interval time.Duration
	lead     time.Duration
	backoff  time.Duration
	loc      *time.Location
	now      func() time.Time

	sentDay time.Time
	sent    map[string]struct{}
}

// New creates a Scheduler. Zero durations fall back to the defaults and a
// nil location means time.Local.
func New(src Source, log *zap.Logger, sender Sender, interval, lead time.Duration, loc *time.Location) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if lead <= 0 {
		lead = DefaultLead
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		src:      src,
		log:      log,
		sender:   sender,
		interval: interval,
		lead:     lead,
		backoff:  DefaultBackoff,
		loc:      loc,
		now:      time.Now,
		sent:     make(map[string]struct{}),
	}
}

// Run sweeps immediately and then every interval until ctx is canceled.
// A failed sweep is retried after a short backoff.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-timer.C:
			wait := s.interval
			if err := s.Tick(ctx); err != nil {
				s.log.Error("reminder sweep failed", zap.Error(err), zap.Duration("retry_in", s.backoff))
				wait = s.backoff
			}
			timer.Reset(wait)
		}
	}
}

// Tick performs one sweep. Only a failure to list chats is returned;
// per-chat problems are logged and skipped.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now().In(s.loc)
	today := domain.DateOf(now)
	clock := domain.ClockAfter(now, s.lead)

	if !s.sentDay.Equal(today) {
		s.sentDay = today
		s.sent = make(map[string]struct{})
	}

	chats, err := s.src.NotifiedChats(ctx)
	if err != nil {
		return fmt.Errorf("list notified chats: %w", err)
	}
	for _, chatID := range chats {
		if ctx.Err() != nil {
			return nil
		}
		s.remind(chatID, today, clock)
	}
	return nil
}

func (s *Scheduler) remind(chatID int64, today time.Time, clock string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("reminder panicked", zap.Int64("chatID", chatID), zap.Any("panic", r))
		}
	}()

	doc, ok := s.src.Document(chatID)
	if !ok {
		return
	}
	for _, sess := range doc.StartingAt(today, clock) {
		key := fmt.Sprintf("%d|%s|%s|%s", chatID, sess.Start, sess.Subject, sess.Room)
		if _, done := s.sent[key]; done {
			continue
		}
		if err := s.sender.SendMessage(chatID, ReminderText(sess, s.lead)); err != nil {
			s.log.Error("send reminder failed", zap.Error(err), zap.Int64("chatID", chatID))
			continue
		}
		s.sent[key] = struct{}{}
	}
}

// ReminderText renders the message sent ahead of a session.
func ReminderText(s domain.Session, lead time.Duration) string {
	return fmt.Sprintf("⏰ In %d minutes: %s | %s", int(lead.Minutes()), s.Subject, s.Room)
}
