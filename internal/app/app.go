package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/timetable-bot/internal/acquire"
	"github.com/ykvlv/timetable-bot/internal/config"
	"github.com/ykvlv/timetable-bot/internal/domain"
	"github.com/ykvlv/timetable-bot/internal/export"
	"github.com/ykvlv/timetable-bot/internal/scheduler"
	"github.com/ykvlv/timetable-bot/internal/store"
	"github.com/ykvlv/timetable-bot/internal/telegram"
	"github.com/ykvlv/timetable-bot/internal/timetable"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	loc     *time.Location
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	svc     *timetable.Service
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, loc: loc, bot: bot, httpSrv: srv}, nil
}

// openRepo opens SQLite, or keeps preferences in memory when no DB path is set.
func (a *App) openRepo(ctx context.Context) (store.Repo, error) {
	if a.cfg.DBPath == "" {
		a.log.Warn("DB_PATH is empty, preferences are kept in memory")
		return store.NewMemory(), nil
	}
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))
	return repo, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting timetable-bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", a.loc.String()),
		zap.String("schedules", a.cfg.SchedulesDir),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := a.openRepo(ctx)
	if err != nil {
		a.log.Error("open preference store failed", zap.Error(err))
		return err
	}
	a.repo = repo

	files := export.NewFiles(a.cfg.SchedulesDir)
	a.svc = timetable.New(timetable.Deps{
		Files:   files,
		Reader:  export.NewReader(files, a.cfg.ExportEncodings, a.log),
		Prefs:   repo,
		URLs:    store.NewURLStore(a.cfg.URLsPath, a.log),
		Fetcher: acquire.NewChromium(a.cfg.BrowserHeadless, a.cfg.FetchTimeout, a.log),
		Labels:  domain.DefaultLabels,
		Groups:  a.cfg.GroupCount,
	}, a.log)
	a.router = telegram.NewRouter(a.bot, a.log, a.svc, a.loc)

	var resync *scheduler.Resync
	if a.cfg.ResyncCron != "" {
		resync, err = scheduler.NewResync(a.cfg.ResyncCron, a.svc, a.log, a.cfg.FetchTimeout, a.loc)
		if err != nil {
			_ = a.repo.Close()
			return err
		}
	}

	sched := scheduler.New(a.svc, a.log, a.router, a.cfg.SweepInterval, a.cfg.ReminderLead, a.loc)
	go sched.Run(ctx)
	if resync != nil {
		resync.Start(ctx)
	}

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			// Resyncs drive a browser for minutes; keep polling meanwhile.
			go a.router.HandleUpdate(ctx, upd)
		}
	}
}
