package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/calvdc1/Registrar-bot/internal/models"
)

// FileStore keeps the document in a single JSON file, the format the
// original deployment used. A missing or unreadable-as-JSON file loads as
// an empty document so a fresh install needs no setup step.
type FileStore struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
}

func NewFileStore(path string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Load() (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	doc := models.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		s.log.Warn("document file is not valid JSON, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return models.NewDocument(), nil
	}
	return doc, nil
}

func (s *FileStore) Save(doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	// Write-then-rename so a crash mid-write cannot truncate the store.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
