package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// URLStore remembers the portal URL each chat last synced from.
// The file holds a JSON object {"<chatID>": "<url>"} and is rewritten
// wholesale on every change. A missing or corrupt file reads as empty.
type URLStore struct {
	mu       sync.Mutex
	filePath string
	log      *zap.Logger
}

// SavedURL pairs a chat with its remembered URL.
type SavedURL struct {
	ChatID int64
	URL    string
}

// NewURLStore returns a store backed by filePath.
func NewURLStore(filePath string, log *zap.Logger) *URLStore {
	return &URLStore{filePath: filePath, log: log}
}

// Get returns the remembered URL for chatID.
func (s *URLStore) Get(chatID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.load()[strconv.FormatInt(chatID, 10)]
	return u, ok && u != ""
}

// Set remembers url for chatID, replacing any previous one.
func (s *URLStore) Set(chatID int64, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	data[strconv.FormatInt(chatID, 10)] = url
	return s.save(data)
}

// All returns every remembered URL ordered by chat ID. Keys that are not
// chat IDs are skipped.
func (s *URLStore) All() []SavedURL {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []SavedURL
	for k, u := range s.load() {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil || u == "" {
			continue
		}
		res = append(res, SavedURL{ChatID: id, URL: u})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ChatID < res[j].ChatID })
	return res
}

func (s *URLStore) load() map[string]string {
	data := make(map[string]string)
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("read url store failed", zap.String("path", s.filePath), zap.Error(err))
		}
		return data
	}
	if len(raw) == 0 {
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		s.log.Warn("url store corrupt, starting empty", zap.String("path", s.filePath), zap.Error(err))
		return make(map[string]string)
	}
	return data
}

func (s *URLStore) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal urls: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(s.filePath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
