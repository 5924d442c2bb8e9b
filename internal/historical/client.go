// Package historical fetches labeled outcome records from the external
// medical records service for use as retraining data.
package historical

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/telemed-priority-engine/internal/domain"
)

// Config represents configuration for the historical records client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRecords int
}

// historicalRecord is the wire format served by the records service
type historicalRecord struct {
	Age           int     `json:"age"`
	Severity      int     `json:"severity"`
	Rural         bool    `json:"rural"`
	Chronic       bool    `json:"chronic"`
	WaitingTime   float64 `json:"waiting_time"`
	OutcomeScore  float64 `json:"outcome_score"`
	ReviewedBy    string  `json:"reviewed_by,omitempty"`
	ReviewedAtUTC string  `json:"reviewed_at,omitempty"`
}

type recordsResponse struct {
	Records []historicalRecord `json:"records"`
	Total   int                `json:"total"`
}

// Client fetches reviewed triage outcomes over HTTP. Calls are wrapped
// in a circuit breaker so a degraded records service cannot stall
// retraining, the caller falls back to synthetic data instead.
type Client struct {
	baseURL    string
	maxRecords int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewClient creates a historical records client
func NewClient(config Config, logger *logrus.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRecords <= 0 {
		config.MaxRecords = 10000
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "HistoricalRecords",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    config.BaseURL,
		maxRecords: config.MaxRecords,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// FetchTrainingData retrieves reviewed outcome records and converts
// them to training examples. Records with out-of-range features are
// skipped rather than failing the whole batch.
func (c *Client) FetchTrainingData(ctx context.Context) ([]domain.TrainingExample, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchRecords(ctx)
	})
	if err != nil {
		return nil, domain.NewEngineError(domain.ErrCodeHistoricalSource,
			"fetching historical records", err.Error(), "")
	}

	records := result.([]historicalRecord)
	examples := make([]domain.TrainingExample, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if !validRecord(rec) {
			skipped++
			continue
		}
		examples = append(examples, domain.TrainingExample{
			Features: domain.FeatureVector{
				Age:         rec.Age,
				Severity:    rec.Severity,
				Rural:       rec.Rural,
				Chronic:     rec.Chronic,
				WaitingTime: rec.WaitingTime,
			},
			Label: rec.OutcomeScore,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"fetched": len(records),
		"usable":  len(examples),
		"skipped": skipped,
	}).Info("Fetched historical training data")

	return examples, nil
}

func (c *Client) fetchRecords(ctx context.Context) ([]historicalRecord, error) {
	url := fmt.Sprintf("%s/records?limit=%d", c.baseURL, c.maxRecords)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("records request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("records service returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding records response: %w", err)
	}

	return parsed.Records, nil
}

// BreakerState exposes the breaker state for health reporting
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func validRecord(rec historicalRecord) bool {
	if rec.Age < 0 || rec.Age > 120 {
		return false
	}
	if rec.Severity < 1 || rec.Severity > 10 {
		return false
	}
	if rec.WaitingTime < 0 {
		return false
	}
	return rec.OutcomeScore >= 0 && rec.OutcomeScore <= 100
}
