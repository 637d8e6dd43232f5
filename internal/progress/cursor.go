package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"city-stats-platform/pkg/logging"
)

// DefaultPath is the cursor file used when none is configured
const DefaultPath = "progress.json"

// ErrCursorRegression is returned when a save would move the cursor backwards
var ErrCursorRegression = errors.New("progress cursor cannot decrease")

// Cursor is the persisted position in the roster
type Cursor struct {
	NextStart int `json:"next_start"`
}

// Store persists the cursor between process invocations
type Store interface {
	Load(ctx context.Context) (Cursor, error)
	Save(ctx context.Context, c Cursor) error
}

// FileStore keeps the cursor in a small JSON file
type FileStore struct {
	path   string
	logger *logging.StructuredLogger
}

// NewFileStore creates a cursor store at path
func NewFileStore(path string, logger *logging.StructuredLogger) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the cursor file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the cursor. A missing, unreadable or corrupt file reads as 0;
// only the corrupt cases are logged.
func (s *FileStore) Load(ctx context.Context) (Cursor, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Cursor{}, nil
	}
	if err != nil {
		s.logger.Warn(ctx, "[PROGRESS_READ_FAILED] Could not read progress file, starting at 0", logging.Fields{
			"path":  s.path,
			"error": err.Error(),
		})
		return Cursor{}, nil
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		s.logger.Warn(ctx, "[PROGRESS_CORRUPT] Progress file is not valid JSON, starting at 0", logging.Fields{
			"path":  s.path,
			"error": err.Error(),
		})
		return Cursor{}, nil
	}

	if c.NextStart < 0 {
		s.logger.Warn(ctx, "[PROGRESS_CORRUPT] Negative progress cursor, starting at 0", logging.Fields{
			"path":       s.path,
			"next_start": c.NextStart,
		})
		return Cursor{}, nil
	}

	return c, nil
}

// Save writes the cursor through a temp file and rename, so a crash leaves
// either the old or the new value on disk
func (s *FileStore) Save(ctx context.Context, c Cursor) error {
	if c.NextStart < 0 {
		return fmt.Errorf("invalid cursor %d: %w", c.NextStart, ErrCursorRegression)
	}

	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if c.NextStart < current.NextStart {
		return fmt.Errorf("cursor %d is behind stored %d: %w", c.NextStart, current.NextStart, ErrCursorRegression)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cursor: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp progress file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close progress file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace progress file: %w", err)
	}

	s.logger.Debug(ctx, "[PROGRESS_SAVED] Progress cursor saved", logging.Fields{
		"path":       s.path,
		"next_start": c.NextStart,
	})

	return nil
}
