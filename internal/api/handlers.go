package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/telemed-priority-engine/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// predictRequest is the intake payload for a scoring request. Zero is
// a valid value for every field except severity, so those bind through
// pointers to distinguish absent from zero.
type predictRequest struct {
	Age         *int     `json:"age" binding:"required,min=0,max=120"`
	Severity    int      `json:"severity" binding:"required,min=1,max=10"`
	Rural       *bool    `json:"rural" binding:"required"`
	Chronic     *bool    `json:"chronic" binding:"required"`
	WaitingTime *float64 `json:"waiting_time" binding:"required,min=0"`
}

func (r *predictRequest) features() domain.FeatureVector {
	return domain.FeatureVector{
		Age:         *r.Age,
		Severity:    r.Severity,
		Rural:       *r.Rural,
		Chronic:     *r.Chronic,
		WaitingTime: *r.WaitingTime,
	}
}

type predictResponse struct {
	PriorityScore int    `json:"priority_score"`
	Reason        string `json:"reason"`
	ModelID       string `json:"model_id"`
	CorrelationID string `json:"correlation_id"`
	Cached        bool   `json:"cached"`
}

type retrainRequest struct {
	Samples int `json:"samples"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":       "healthy",
		"version":      Version,
		"model_loaded": s.deps.Engine.IsLoaded(),
		"timestamp":    time.Now().UTC(),
	}
	if active := s.deps.Engine.Active(); active != nil {
		resp["model_id"] = active.ID
		resp["trained_at"] = active.TrainedAt
	}
	if s.deps.Historical != nil {
		resp["historical_breaker"] = s.deps.Historical.BreakerState()
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.Health(c.Request.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unhealthy"
			s.logger.WithError(err).Warn("Database health check failed")
		} else {
			resp["database"] = "healthy"
		}
	}
	if s.deps.Cache != nil {
		resp["cache"] = s.deps.Cache.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

// handlePredict scores one patient intake
func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid request body", err.Error())
		return
	}

	active := s.deps.Engine.Active()
	if active == nil {
		s.writeError(c, http.StatusServiceUnavailable, domain.ErrCodeModelNotLoaded, "no model loaded", "")
		return
	}

	features := req.features()
	correlationID := c.GetString("correlation_id")

	if s.deps.Cache != nil {
		if result, ok := s.deps.Cache.Get(c.Request.Context(), active.ID, features); ok {
			c.JSON(http.StatusOK, predictResponse{
				PriorityScore: result.PriorityScore,
				Reason:        result.Reason,
				ModelID:       active.ID,
				CorrelationID: correlationID,
				Cached:        true,
			})
			return
		}
	}

	result, err := s.deps.Engine.Score(features)
	if err != nil {
		s.writeError(c, statusForError(err), domain.CodeForError(err), "scoring failed", err.Error())
		return
	}

	if s.deps.Cache != nil {
		s.deps.Cache.Set(c.Request.Context(), active.ID, features, result)
	}

	record := &domain.PredictionRecord{
		CorrelationID: correlationID,
		Age:           features.Age,
		Severity:      features.Severity,
		Rural:         features.Rural,
		Chronic:       features.Chronic,
		WaitingTime:   features.WaitingTime,
		PriorityScore: result.PriorityScore,
		Reason:        result.Reason,
		ModelID:       active.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.deps.History.Save(c.Request.Context(), record); err != nil {
		// Audit write failures must not block triage decisions.
		s.logger.WithError(err).WithField("correlation_id", correlationID).
			Error("Failed to persist prediction record")
	}

	s.hub.Broadcast("prediction", record)

	c.JSON(http.StatusOK, predictResponse{
		PriorityScore: result.PriorityScore,
		Reason:        result.Reason,
		ModelID:       active.ID,
		CorrelationID: correlationID,
	})
}

// handleRetrain rebuilds the model from historical records when the
// source is available, otherwise from synthesized data
func (s *Server) handleRetrain(c *gin.Context) {
	var req retrainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid request body", err.Error())
			return
		}
	}
	samples := req.Samples
	if samples <= 0 {
		samples = s.deps.Samples
	}

	examples, source := s.trainingData(c, samples)

	report, err := s.deps.Engine.Train(c.Request.Context(), examples)
	if err != nil {
		s.writeError(c, statusForError(err), domain.CodeForError(err), "retraining failed", err.Error())
		return
	}

	s.hub.Broadcast("model_swapped", gin.H{
		"model_id":     report.ModelID,
		"sample_count": report.SampleCount,
		"source":       source,
		"mse":          report.Metrics.MSE,
		"r2":           report.Metrics.R2,
	})

	c.JSON(http.StatusOK, gin.H{
		"model_id":           report.ModelID,
		"source":             source,
		"sample_count":       report.SampleCount,
		"mse":                report.Metrics.MSE,
		"r2":                 report.Metrics.R2,
		"feature_importance": report.Metrics.Importances,
		"trained_at":         report.TrainedAt,
		"duration_ms":        report.Duration.Milliseconds(),
	})
}

// trainingData prefers reviewed historical outcomes and falls back to
// synthesized intake data
func (s *Server) trainingData(c *gin.Context, samples int) ([]domain.TrainingExample, string) {
	if s.deps.Historical != nil {
		examples, err := s.deps.Historical.FetchTrainingData(c.Request.Context())
		if err == nil && len(examples) > 0 {
			return examples, "historical"
		}
		if err != nil {
			s.logger.WithError(err).Warn("Historical source unavailable, falling back to synthetic data")
		}
	}
	return s.deps.Synthesize(samples), "synthetic"
}

// handleImportance reports normalized per-feature importances
func (s *Server) handleImportance(c *gin.Context) {
	importances, err := s.deps.Engine.FeatureImportance()
	if err != nil {
		s.writeError(c, statusForError(err), domain.CodeForError(err), "no feature importances available", err.Error())
		return
	}

	active := s.deps.Engine.Active()
	c.JSON(http.StatusOK, gin.H{
		"model_id":           active.ID,
		"feature_importance": importances,
	})
}

// handleListPredictions returns stored predictions, newest first
func (s *Server) handleListPredictions(c *gin.Context) {
	limit := queryInt(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, err := s.deps.History.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "listing predictions failed", err.Error())
		return
	}
	total, err := s.deps.History.Count(c.Request.Context())
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "counting predictions failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": records,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// handleExportPredictions streams the full audit history as JSON so
// records can be moved between backends or archived
func (s *Server) handleExportPredictions(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="predictions.json"`)
	c.Status(http.StatusOK)

	if err := s.deps.History.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		// Headers are already on the wire, all we can do is log.
		s.logger.WithError(err).Error("Prediction export failed mid-stream")
	}
}

// handleImportPredictions loads an exported history file, skipping
// records whose correlation ID is already present
func (s *Server) handleImportPredictions(c *gin.Context) {
	imported, skipped, err := s.deps.History.ImportJSON(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid import payload", err.Error())
		return
	}

	s.logger.WithFields(logrus.Fields{
		"imported": imported,
		"skipped":  skipped,
	}).Info("Prediction history imported")

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"skipped":  skipped,
	})
}

// handleDeletePrediction removes one audit record by ID
func (s *Server) handleDeletePrediction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid prediction id", c.Param("id"))
		return
	}

	if err := s.deps.History.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "deleting prediction failed", err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) writeError(c *gin.Context, status int, code, message, details string) {
	correlationID := c.GetString("correlation_id")
	s.logger.WithFields(logrus.Fields{
		"status":         status,
		"code":           code,
		"correlation_id": correlationID,
		"details":        details,
	}).Warn(message)

	c.AbortWithStatusJSON(status, gin.H{
		"error": domain.NewEngineError(code, message, details, correlationID),
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidTrainingData):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTrainingFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
