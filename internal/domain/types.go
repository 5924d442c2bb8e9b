package domain

import (
	"time"
)

// Core Enums and Types

// PriorityLevel represents the coarse urgency band derived from the final score
type PriorityLevel string

const (
	HIGH_PRIORITY   PriorityLevel = "HIGH PRIORITY"
	MEDIUM_PRIORITY PriorityLevel = "MEDIUM PRIORITY"
	LOW_PRIORITY    PriorityLevel = "LOW PRIORITY"
)

// FeatureName identifies one of the five model inputs
type FeatureName string

const (
	FeatureAge         FeatureName = "age"
	FeatureSeverity    FeatureName = "severity"
	FeatureRural       FeatureName = "rural"
	FeatureChronic     FeatureName = "chronic"
	FeatureWaitingTime FeatureName = "waiting_time"
)

// FeatureNames lists the model inputs in the column order the regressor expects
var FeatureNames = []string{"age", "severity", "rural", "chronic", "waiting_time"}

// NumFeatures is the width of a feature row
const NumFeatures = 5

// FeatureVector is the five-field patient descriptor consumed by scoring.
// The core assumes ranges were validated at the boundary (age 0-120,
// severity 1-10, waiting time >= 0) and does not re-check them.
type FeatureVector struct {
	Age         int     `json:"age"`
	Severity    int     `json:"severity"`
	Rural       bool    `json:"rural"`
	Chronic     bool    `json:"chronic"`
	WaitingTime float64 `json:"waiting_time"`
}

// Floats returns the vector as a feature row in canonical column order.
func (fv FeatureVector) Floats() []float64 {
	row := make([]float64, NumFeatures)
	row[0] = float64(fv.Age)
	row[1] = float64(fv.Severity)
	if fv.Rural {
		row[2] = 1
	}
	if fv.Chronic {
		row[3] = 1
	}
	row[4] = fv.WaitingTime
	return row
}

// TrainingExample pairs a feature vector with its ground-truth priority label.
// Labels are in [0,100]. Examples are immutable once created.
type TrainingExample struct {
	Features FeatureVector `json:"features"`
	Label    float64       `json:"label"`
}

// Dataset is a labeled sample collection plus label-range diagnostics.
type Dataset struct {
	Examples []TrainingExample `json:"examples"`
	LabelMin float64           `json:"label_min"`
	LabelMax float64           `json:"label_max"`
}

// PredictionResult is the scored outcome for one patient: an integer
// priority in [0,100] and a deterministic human-readable justification.
type PredictionResult struct {
	PriorityScore int    `json:"priority_score"`
	Reason        string `json:"reason"`
}

// TrainingMetrics reports held-out accuracy and normalized feature importances.
type TrainingMetrics struct {
	MSE         float64            `json:"mse"`
	R2          float64            `json:"r2"`
	Importances map[string]float64 `json:"feature_importance"`
}

// TrainingReport captures the outcome of one completed training run.
type TrainingReport struct {
	ModelID     string          `json:"model_id"`
	Metrics     TrainingMetrics `json:"metrics"`
	SampleCount int             `json:"sample_count"`
	TrainedAt   time.Time       `json:"trained_at"`
	Duration    time.Duration   `json:"duration"`
}

// PredictionRecord is one audited scoring decision, persisted for review.
type PredictionRecord struct {
	ID            int64     `json:"id,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	Age           int       `json:"age"`
	Severity      int       `json:"severity"`
	Rural         bool      `json:"rural"`
	Chronic       bool      `json:"chronic"`
	WaitingTime   float64   `json:"waiting_time"`
	PriorityScore int       `json:"priority_score"`
	Reason        string    `json:"reason"`
	ModelID       string    `json:"model_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// FeaturesOf reconstructs the feature vector stored on a prediction record.
func (r *PredictionRecord) FeaturesOf() FeatureVector {
	return FeatureVector{
		Age:         r.Age,
		Severity:    r.Severity,
		Rural:       r.Rural,
		Chronic:     r.Chronic,
		WaitingTime: r.WaitingTime,
	}
}

// LevelForScore maps a final clamped score to its priority band.
func LevelForScore(score int) PriorityLevel {
	switch {
	case score >= 80:
		return HIGH_PRIORITY
	case score >= 50:
		return MEDIUM_PRIORITY
	default:
		return LOW_PRIORITY
	}
}
