// Package history provides persistent storage for scored predictions.
// Every scoring decision is recorded with its inputs, score, justification,
// and the model generation that produced it, for later audit and review.
package history

import (
	"context"
	"io"
	"time"

	"github.com/telemed-priority-engine/internal/domain"
)

// Store defines the interface for prediction history storage operations.
type Store interface {
	// Save stores one scored prediction.
	Save(ctx context.Context, record *domain.PredictionRecord) error

	// List returns prediction records with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.PredictionRecord, error)

	// Count returns the total number of stored predictions.
	Count(ctx context.Context) (int64, error)

	// Delete removes a prediction record by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all records to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports records from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string                     `json:"version"`
	ExportedAt time.Time                  `json:"exported_at"`
	Count      int                        `json:"count"`
	Records    []*domain.PredictionRecord `json:"records"`
}
