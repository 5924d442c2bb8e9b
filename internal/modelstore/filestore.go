// Package modelstore persists trained model artifacts as opaque JSON blobs.
// A saved artifact must score identically after reload on any feature vector.
package modelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/telemed-priority-engine/internal/domain"
	"github.com/telemed-priority-engine/internal/gbt"
)

// Artifact is the serializable form of a trained model.
type Artifact struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Params    gbt.Params             `json:"params"`
	Metrics   domain.TrainingMetrics `json:"metrics"`
	Ensemble  *gbt.Ensemble          `json:"ensemble"`
}

// Store defines the interface for model artifact persistence.
type Store interface {
	Save(ctx context.Context, artifact *Artifact) error
	Load(ctx context.Context) (*Artifact, error)
	Exists() bool
}

// FileStore implements Store on the local filesystem. Writes go through a
// temp file plus rename so readers never observe a partially written model.
type FileStore struct {
	path   string
	logger *logrus.Logger
}

// NewFileStore creates a store rooted at the given artifact path.
func NewFileStore(path string, logger *logrus.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Path returns the artifact location on disk.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether a persisted artifact is present.
func (s *FileStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Save writes the artifact atomically.
func (s *FileStore) Save(ctx context.Context, artifact *Artifact) error {
	if artifact == nil || artifact.Ensemble == nil {
		return fmt.Errorf("refusing to persist an empty artifact")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to encode model artifact: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".model-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace model artifact: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":     s.path,
		"model_id": artifact.ID,
		"bytes":    len(data),
	}).Info("Model artifact saved")

	return nil
}

// Load reads the persisted artifact.
func (s *FileStore) Load(ctx context.Context) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	if artifact.Ensemble == nil {
		return nil, fmt.Errorf("model artifact at %s has no ensemble payload", s.path)
	}

	s.logger.WithFields(logrus.Fields{
		"path":     s.path,
		"model_id": artifact.ID,
		"trees":    len(artifact.Ensemble.Trees),
	}).Info("Model artifact loaded")

	return &artifact, nil
}
