// Package service implements the priority scoring engine: training a
// boosted-tree regressor on labeled examples and scoring patients with a
// deterministic fairness adjustment and explanation.
package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/telemed-priority-engine/internal/domain"
	"github.com/telemed-priority-engine/internal/gbt"
	"github.com/telemed-priority-engine/internal/modelstore"
)

// RuralFairnessUplift is the fixed post-model bonus for rural patients.
// It is a documented bias correction, applied outside the regression so it
// stays reproducible and auditable regardless of what the model learned.
const RuralFairnessUplift = 10.0

// heldOutFraction is the share of samples reserved for evaluation.
const heldOutFraction = 0.2

// DefaultSplitSeed fixes the train/held-out partition for reproducible runs.
const DefaultSplitSeed = 42

// ActiveModel bundles the live model with its training provenance.
type ActiveModel struct {
	ID        string
	Model     domain.Model
	Metrics   domain.TrainingMetrics
	TrainedAt time.Time
}

// Engine is the scoring engine. It starts unloaded; only a successful train
// or artifact load transitions it to loaded, and it never transitions back.
// The active model reference is swapped atomically: a failed retrain leaves
// the prior generation untouched.
type Engine struct {
	logger    *logrus.Logger
	store     modelstore.Store
	params    gbt.Params
	splitSeed int64

	active  atomic.Pointer[ActiveModel]
	trainMu sync.Mutex

	swapMu sync.Mutex
	onSwap []func(modelID string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches artifact persistence; each successful train is saved
// before the new model is activated.
func WithStore(store modelstore.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithParams overrides the fitting hyperparameters.
func WithParams(params gbt.Params) Option {
	return func(e *Engine) { e.params = params }
}

// WithSplitSeed overrides the train/held-out partition seed.
func WithSplitSeed(seed int64) Option {
	return func(e *Engine) { e.splitSeed = seed }
}

// NewEngine creates an unloaded scoring engine.
func NewEngine(logger *logrus.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{
		logger:    logger,
		params:    gbt.DefaultParams(),
		splitSeed: DefaultSplitSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnModelSwap registers a hook invoked after each model activation, e.g. to
// purge prediction caches keyed by the previous model.
func (e *Engine) OnModelSwap(fn func(modelID string)) {
	e.swapMu.Lock()
	defer e.swapMu.Unlock()
	e.onSwap = append(e.onSwap, fn)
}

// IsLoaded reports whether a model is active.
func (e *Engine) IsLoaded() bool {
	return e.active.Load() != nil
}

// Active returns the current model generation, or nil when unloaded.
func (e *Engine) Active() *ActiveModel {
	return e.active.Load()
}

// Train fits a fresh model on the given examples, evaluates it on a fixed
// 80/20 held-out split, persists the artifact, and atomically activates the
// new generation. On any failure the previously active model stays live.
func (e *Engine) Train(ctx context.Context, examples []domain.TrainingExample) (*domain.TrainingReport, error) {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	start := time.Now()

	if len(examples) == 0 {
		return nil, fmt.Errorf("train: %w", domain.ErrInvalidTrainingData)
	}

	trainSet, heldOut := splitExamples(examples, heldOutFraction, e.splitSeed)

	rows := make([][]float64, len(trainSet))
	labels := make([]float64, len(trainSet))
	for i, ex := range trainSet {
		rows[i] = ex.Features.Floats()
		labels[i] = ex.Label
	}

	ensemble, err := gbt.Fit(rows, labels, e.params)
	if err != nil {
		e.logger.WithError(err).Error("Model fit failed, keeping prior model active")
		return nil, fmt.Errorf("%w: %v", domain.ErrTrainingFailed, err)
	}

	// Small sample sets may leave nothing held out; fall back to the
	// training subset so metrics are always defined.
	evalSet := heldOut
	if len(evalSet) == 0 {
		evalSet = trainSet
	}
	mse, r2 := evaluate(ensemble, evalSet)

	model := NewTreeModel(ensemble)
	metrics := domain.TrainingMetrics{
		MSE:         mse,
		R2:          r2,
		Importances: model.Importances(),
	}

	generation := &ActiveModel{
		ID:        uuid.New().String(),
		Model:     model,
		Metrics:   metrics,
		TrainedAt: time.Now().UTC(),
	}

	if e.store != nil {
		artifact := &modelstore.Artifact{
			ID:        generation.ID,
			CreatedAt: generation.TrainedAt,
			Params:    e.params,
			Metrics:   metrics,
			Ensemble:  ensemble,
		}
		if err := e.store.Save(ctx, artifact); err != nil {
			e.logger.WithError(err).Error("Model persistence failed, keeping prior model active")
			return nil, fmt.Errorf("%w: persisting artifact: %v", domain.ErrTrainingFailed, err)
		}
	}

	e.activate(generation)

	report := &domain.TrainingReport{
		ModelID:     generation.ID,
		Metrics:     metrics,
		SampleCount: len(examples),
		TrainedAt:   generation.TrainedAt,
		Duration:    time.Since(start),
	}

	e.logger.WithFields(logrus.Fields{
		"model_id":     report.ModelID,
		"samples":      report.SampleCount,
		"train_size":   len(trainSet),
		"heldout_size": len(heldOut),
		"mse":          metrics.MSE,
		"r2":           metrics.R2,
		"duration":     report.Duration,
	}).Info("Model training completed")

	for name, weight := range metrics.Importances {
		e.logger.WithFields(logrus.Fields{
			"feature":    name,
			"importance": weight,
		}).Debug("Feature importance")
	}

	return report, nil
}

// LoadArtifact activates a previously persisted model generation.
func (e *Engine) LoadArtifact(artifact *modelstore.Artifact) error {
	if artifact == nil || artifact.Ensemble == nil {
		return fmt.Errorf("load: artifact has no ensemble payload")
	}

	generation := &ActiveModel{
		ID:        artifact.ID,
		Model:     NewTreeModel(artifact.Ensemble),
		Metrics:   artifact.Metrics,
		TrainedAt: artifact.CreatedAt,
	}
	e.activate(generation)

	e.logger.WithFields(logrus.Fields{
		"model_id":   artifact.ID,
		"trained_at": artifact.CreatedAt,
	}).Info("Model artifact activated")

	return nil
}

func (e *Engine) activate(generation *ActiveModel) {
	e.active.Store(generation)

	e.swapMu.Lock()
	hooks := make([]func(string), len(e.onSwap))
	copy(hooks, e.onSwap)
	e.swapMu.Unlock()

	for _, fn := range hooks {
		fn(generation.ID)
	}
}

// Score produces the prediction for one pre-validated feature vector using
// the active model. Without one it fails; a fallback score is never
// fabricated in its place.
func (e *Engine) Score(fv domain.FeatureVector) (domain.PredictionResult, error) {
	generation := e.active.Load()
	if generation == nil {
		return domain.PredictionResult{}, domain.ErrModelNotLoaded
	}
	return ScoreWith(generation.Model, fv), nil
}

// ScoreWith is the pure scoring path: raw model output, rural fairness
// uplift, integer clamp into [0,100], then explanation synthesis. Identical
// inputs always yield identical results for a fixed model.
func ScoreWith(model domain.Model, fv domain.FeatureVector) domain.PredictionResult {
	raw := model.Predict(fv)

	if fv.Rural {
		raw += RuralFairnessUplift
	}

	score := clampScore(raw)

	return domain.PredictionResult{
		PriorityScore: score,
		Reason:        buildReason(fv, score),
	}
}

// FeatureImportance exposes the active model's normalized importance weights.
func (e *Engine) FeatureImportance() (map[string]float64, error) {
	generation := e.active.Load()
	if generation == nil {
		return nil, domain.ErrModelNotLoaded
	}
	return generation.Model.Importances(), nil
}

// clampScore truncates the raw score to an integer in [0,100].
func clampScore(raw float64) int {
	if raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return int(raw)
}

// splitExamples partitions examples into train and held-out subsets with a
// seeded shuffle, so repeated runs produce the same partition.
func splitExamples(examples []domain.TrainingExample, heldOutFrac float64, seed int64) (train, heldOut []domain.TrainingExample) {
	n := len(examples)
	heldOutN := int(float64(n) * heldOutFrac)

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	heldOut = make([]domain.TrainingExample, 0, heldOutN)
	train = make([]domain.TrainingExample, 0, n-heldOutN)
	for i, idx := range perm {
		if i < heldOutN {
			heldOut = append(heldOut, examples[idx])
		} else {
			train = append(train, examples[idx])
		}
	}
	return train, heldOut
}

// evaluate computes MSE and R2 for an ensemble over a sample set.
func evaluate(ensemble *gbt.Ensemble, examples []domain.TrainingExample) (mse, r2 float64) {
	n := float64(len(examples))

	var labelSum float64
	for _, ex := range examples {
		labelSum += ex.Label
	}
	labelMean := labelSum / n

	var sse, sst float64
	for _, ex := range examples {
		diff := ex.Label - ensemble.Predict(ex.Features.Floats())
		sse += diff * diff
		dev := ex.Label - labelMean
		sst += dev * dev
	}

	mse = sse / n
	if sst == 0 {
		if sse == 0 {
			return mse, 1
		}
		return mse, 0
	}
	return mse, 1 - sse/sst
}
