// Package timetable is the surface the chat front-end and background jobs
// use: it ties export files, parsing, filtering and formatting together.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/timetable-bot/internal/acquire"
	"github.com/ykvlv/timetable-bot/internal/domain"
	"github.com/ykvlv/timetable-bot/internal/export"
	"github.com/ykvlv/timetable-bot/internal/store"
)

// ErrNoSavedURL is returned by ResyncSaved when the chat never supplied a URL.
var ErrNoSavedURL = errors.New("no saved schedule url")

// NoDocumentText is shown when a chat has no readable export at all.
const NoDocumentText = "❌ Your schedule file was not found or is empty."

// Service answers schedule questions for chats. Exports are re-read and
// re-parsed on every call so answers always reflect the latest file.
type Service struct {
	files   *export.Files
	reader  *export.Reader
	parser  *domain.Parser
	format  *domain.Formatter
	prefs   store.Repo
	urls    *store.URLStore
	fetcher acquire.Fetcher
	groups  int
	log     *zap.Logger
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Files   *export.Files
	Reader  *export.Reader
	Prefs   store.Repo
	URLs    *store.URLStore
	Fetcher acquire.Fetcher
	Labels  domain.Labels
	Groups  int // number of seminar groups the filter cycles through
}

// New builds a Service.
func New(d Deps, log *zap.Logger) *Service {
	return &Service{
		files:   d.Files,
		reader:  d.Reader,
		parser:  domain.NewParser(log),
		format:  domain.NewFormatter(d.Labels),
		prefs:   d.Prefs,
		urls:    d.URLs,
		fetcher: d.Fetcher,
		groups:  d.Groups,
		log:     log,
	}
}

// Document parses the chat's current export. ok is false when there is no
// usable export; a document with zero sessions is returned as ok=false too,
// since nothing can be shown from it.
func (s *Service) Document(chatID int64) (doc domain.Document, ok bool) {
	rows, ok := s.reader.Rows(chatID)
	if !ok {
		return domain.Document{}, false
	}
	doc = s.parser.Parse(rows)
	if doc.Len() == 0 {
		s.log.Info("schedule has no sessions", zap.Int64("chatID", chatID), zap.Int("rows", len(rows)))
		return doc, false
	}
	return doc, true
}

// DayText renders the chat's schedule for one day.
func (s *Service) DayText(ctx context.Context, date time.Time, chatID int64) string {
	title := "Schedule for " + date.Format("02.01.2006")
	return s.render(ctx, chatID, title, func(doc domain.Document) []domain.Session {
		return doc.OnDate(date)
	})
}

// RangeText renders the chat's schedule for every day in [from, to].
func (s *Service) RangeText(ctx context.Context, from, to time.Time, chatID int64) string {
	title := "Schedule for " + from.Format("02.01") + "–" + to.Format("02.01.2006")
	return s.render(ctx, chatID, title, func(doc domain.Document) []domain.Session {
		return doc.Between(from, to)
	})
}

func (s *Service) render(ctx context.Context, chatID int64, title string, pick func(domain.Document) []domain.Session) string {
	doc, ok := s.Document(chatID)
	if !ok {
		return NoDocumentText
	}
	selected := pick(doc)
	if len(selected) == 0 {
		return s.format.Empty(title)
	}

	prefs, err := s.prefs.GetPreferences(ctx, chatID)
	if err != nil {
		s.log.Error("get preferences failed, showing all groups", zap.Int64("chatID", chatID), zap.Error(err))
		prefs = domain.Preferences{ChatID: chatID}
	}
	filtered := domain.FilterByGroup(selected, prefs.Group)
	if len(filtered) == 0 {
		return s.format.EmptyAfterFilter(title)
	}
	return s.format.Format(filtered, title)
}

// Preferences returns the chat's current settings.
func (s *Service) Preferences(ctx context.Context, chatID int64) domain.Preferences {
	p, err := s.prefs.GetPreferences(ctx, chatID)
	if err != nil {
		s.log.Error("get preferences failed", zap.Int64("chatID", chatID), zap.Error(err))
		return domain.Preferences{ChatID: chatID}
	}
	return p
}

// ToggleGroup advances the chat's group filter and returns the new group.
func (s *Service) ToggleGroup(ctx context.Context, chatID int64) (int, error) {
	return s.prefs.ToggleGroup(ctx, chatID, s.groups)
}

// ToggleNotifications flips the chat's reminder flag and returns the new state.
func (s *Service) ToggleNotifications(ctx context.Context, chatID int64) (bool, error) {
	return s.prefs.ToggleNotifications(ctx, chatID)
}

// NotifiedChats lists chats with reminders enabled.
func (s *Service) NotifiedChats(ctx context.Context) ([]int64, error) {
	return s.prefs.ListNotified(ctx)
}

// Upload replaces the chat's export with raw.
func (s *Service) Upload(chatID int64, raw []byte) error {
	if err := s.files.Replace(chatID, raw); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	s.log.Info("schedule uploaded", zap.Int64("chatID", chatID), zap.Int("bytes", len(raw)))
	return nil
}

// ResyncURL downloads the export behind url, replaces the chat's file and
// remembers url. The existing file is kept when the download fails.
func (s *Service) ResyncURL(ctx context.Context, chatID int64, url string) error {
	url = strings.TrimSpace(url)
	if err := acquire.ValidateURL(url); err != nil {
		return err
	}
	raw, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("download schedule: %w", err)
	}
	if _, _, ok := s.reader.Decode(raw); !ok {
		return errors.New("downloaded file is not a readable schedule export")
	}
	if err := s.Upload(chatID, raw); err != nil {
		return err
	}
	if err := s.urls.Set(chatID, url); err != nil {
		s.log.Error("remember url failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
	return nil
}

// ResyncSaved repeats ResyncURL with the chat's remembered URL.
func (s *Service) ResyncSaved(ctx context.Context, chatID int64) error {
	url, ok := s.urls.Get(chatID)
	if !ok {
		return ErrNoSavedURL
	}
	return s.ResyncURL(ctx, chatID, url)
}

// SavedURLs lists every remembered URL.
func (s *Service) SavedURLs() []store.SavedURL {
	return s.urls.All()
}

// SavedURL returns the chat's remembered export URL.
func (s *Service) SavedURL(chatID int64) (string, bool) {
	return s.urls.Get(chatID)
}
