package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrEmptyUpload is returned when a replacement export carries no bytes.
var ErrEmptyUpload = errors.New("empty schedule file")

// Files maps chats to their export files on disk: {dir}/{chatID}.csv.
type Files struct {
	dir string
}

// NewFiles returns a Files rooted at dir. The directory is created lazily.
func NewFiles(dir string) *Files {
	if dir == "" {
		dir = "./data/schedules"
	}
	return &Files{dir: dir}
}

// Path returns the export path for chatID.
func (f *Files) Path(chatID int64) string {
	return filepath.Join(f.dir, strconv.FormatInt(chatID, 10)+".csv")
}

// Read returns the raw export of chatID. A missing file yields an error
// matching os.ErrNotExist.
func (f *Files) Read(chatID int64) ([]byte, error) {
	return os.ReadFile(f.Path(chatID))
}

// Replace swaps the chat's export for data in one rename, so concurrent
// readers see either the old file or the new one.
func (f *Files) Replace(chatID int64, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyUpload
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create schedules dir: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".upload-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path(chatID)); err != nil {
		return fmt.Errorf("replace schedule: %w", err)
	}
	return nil
}
