package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/telemed-priority-engine/internal/domain"
)

// ScorePatientInput is the input schema for the score_patient tool.
type ScorePatientInput struct {
	Age         int     `json:"age" jsonschema:"patient age in years (0-120)"`
	Severity    int     `json:"severity" jsonschema:"symptom severity on a 1-10 scale"`
	Rural       bool    `json:"rural" jsonschema:"whether the patient lives in a rural area"`
	Chronic     bool    `json:"chronic" jsonschema:"whether the patient has a chronic illness"`
	WaitingTime float64 `json:"waiting_time" jsonschema:"minutes already spent waiting"`
}

// ScorePatientOutput is the output schema for the score_patient tool.
type ScorePatientOutput struct {
	PriorityScore int    `json:"priority_score"`
	Reason        string `json:"reason"`
	ModelID       string `json:"model_id"`
}

// RetrainInput is the input schema for the retrain_model tool.
type RetrainInput struct {
	Samples int `json:"samples,omitempty" jsonschema:"number of synthetic samples to train on (default from config)"`
}

// RetrainOutput is the output schema for the retrain_model tool.
type RetrainOutput struct {
	ModelID     string  `json:"model_id"`
	SampleCount int     `json:"sample_count"`
	MSE         float64 `json:"mse"`
	R2          float64 `json:"r2"`
}

// ImportanceOutput is the output schema for the feature_importance tool.
type ImportanceOutput struct {
	ModelID     string             `json:"model_id"`
	Importances map[string]float64 `json:"feature_importance"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "score_patient",
		Description: "Score a patient intake and return an urgency score (0-100) with a human-readable justification",
	}, s.handleScorePatient)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrain_model",
		Description: "Retrain the urgency model on freshly synthesized intake data",
	}, s.handleRetrain)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "feature_importance",
		Description: "Report the active model's normalized per-feature importances",
	}, s.handleImportance)
}

// handleScorePatient handles the score_patient tool invocation.
func (s *Server) handleScorePatient(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ScorePatientInput,
) (*mcp.CallToolResult, ScorePatientOutput, error) {
	if input.Age < 0 || input.Age > 120 {
		return nil, ScorePatientOutput{}, domain.NewValidationError("age", "must be between 0 and 120", input.Age)
	}
	if input.Severity < 1 || input.Severity > 10 {
		return nil, ScorePatientOutput{}, domain.NewValidationError("severity", "must be between 1 and 10", input.Severity)
	}
	if input.WaitingTime < 0 {
		return nil, ScorePatientOutput{}, domain.NewValidationError("waiting_time", "must not be negative", input.WaitingTime)
	}

	result, err := s.deps.Engine.Score(domain.FeatureVector{
		Age:         input.Age,
		Severity:    input.Severity,
		Rural:       input.Rural,
		Chronic:     input.Chronic,
		WaitingTime: input.WaitingTime,
	})
	if err != nil {
		return nil, ScorePatientOutput{}, err
	}

	active := s.deps.Engine.Active()
	return nil, ScorePatientOutput{
		PriorityScore: result.PriorityScore,
		Reason:        result.Reason,
		ModelID:       active.ID,
	}, nil
}

// handleRetrain handles the retrain_model tool invocation.
func (s *Server) handleRetrain(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrainInput,
) (*mcp.CallToolResult, RetrainOutput, error) {
	samples := input.Samples
	if samples <= 0 {
		samples = s.deps.Samples
	}

	report, err := s.deps.Engine.Train(ctx, s.deps.Synthesize(samples))
	if err != nil {
		return nil, RetrainOutput{}, err
	}

	return nil, RetrainOutput{
		ModelID:     report.ModelID,
		SampleCount: report.SampleCount,
		MSE:         report.Metrics.MSE,
		R2:          report.Metrics.R2,
	}, nil
}

// handleImportance handles the feature_importance tool invocation.
func (s *Server) handleImportance(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, ImportanceOutput, error) {
	importances, err := s.deps.Engine.FeatureImportance()
	if err != nil {
		return nil, ImportanceOutput{}, err
	}

	return nil, ImportanceOutput{
		ModelID:     s.deps.Engine.Active().ID,
		Importances: importances,
	}, nil
}
