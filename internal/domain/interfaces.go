package domain

import (
	"context"
)

// Model is an opaque trained regression artifact. Any fitting technique can
// satisfy it; the scoring engine only needs a raw score and the per-feature
// importance side channel. Importance weights are non-negative and sum to ~1.
type Model interface {
	Predict(fv FeatureVector) float64
	Importances() map[string]float64
}

// Synthesizer produces labeled bootstrap examples when no historical data exists
type Synthesizer interface {
	Generate(n int) *Dataset
}

// Scorer turns a validated feature vector into a scored, explained result
type Scorer interface {
	Score(fv FeatureVector) (PredictionResult, error)
	FeatureImportance() (map[string]float64, error)
	IsLoaded() bool
}

// Trainer fits a fresh model from labeled examples and atomically activates it
type Trainer interface {
	Train(ctx context.Context, examples []TrainingExample) (*TrainingReport, error)
}

// HistoryStore persists scored predictions for audit and review
type HistoryStore interface {
	Save(ctx context.Context, record *PredictionRecord) error
	List(ctx context.Context, limit, offset int) ([]*PredictionRecord, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
}
