package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ykvlv/timetable-bot/internal/store"
)

// Resyncer re-downloads exports from remembered URLs.
// timetable.Service implements it.
type Resyncer interface {
	SavedURLs() []store.SavedURL
	ResyncURL(ctx context.Context, chatID int64, url string) error
}

// Resync refreshes every remembered URL on a cron schedule.
type Resync struct {
	cron    *cron.Cron
	src     Resyncer
	log     *zap.Logger
	timeout time.Duration
	ctx     context.Context
}

// NewResync registers the refresh job under the 5-field cron expression expr.
func NewResync(expr string, src Resyncer, log *zap.Logger, timeout time.Duration, loc *time.Location) (*Resync, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &Resync{
		cron:    cron.New(cron.WithLocation(loc)),
		src:     src,
		log:     log,
		timeout: timeout,
		ctx:     context.Background(),
	}
	if _, err := r.cron.AddFunc(expr, func() { r.RunOnce(r.ctx) }); err != nil {
		return nil, fmt.Errorf("resync cron %q: %w", expr, err)
	}
	return r, nil
}

// Start runs the cron in the background until ctx is canceled.
func (r *Resync) Start(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
	r.log.Info("resync scheduled", zap.Int("jobs", len(r.cron.Entries())))
	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
		r.log.Info("resync stopped")
	}()
}

// RunOnce refreshes all remembered URLs one after another. Failures leave
// the affected chat's file untouched.
func (r *Resync) RunOnce(ctx context.Context) {
	saved := r.src.SavedURLs()
	var failed int
	for _, s := range saved {
		if ctx.Err() != nil {
			return
		}
		jobCtx := ctx
		cancel := func() {}
		if r.timeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		err := r.src.ResyncURL(jobCtx, s.ChatID, s.URL)
		cancel()
		if err != nil {
			failed++
			r.log.Error("scheduled resync failed", zap.Int64("chatID", s.ChatID), zap.Error(err))
		}
	}
	r.log.Info("scheduled resync done", zap.Int("urls", len(saved)), zap.Int("failed", failed))
}
