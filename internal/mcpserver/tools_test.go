package mcpserver

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemed-priority-engine/internal/domain"
	"github.com/telemed-priority-engine/internal/service"
	"github.com/telemed-priority-engine/internal/synth"
)

func newTestServer(t *testing.T, trained bool) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	engine := service.NewEngine(logger)
	synthesize := func(n int) []domain.TrainingExample {
		return synth.NewGenerator(synth.DefaultSeed, logger).Generate(n).Examples
	}
	if trained {
		_, err := engine.Train(context.Background(), synthesize(600))
		require.NoError(t, err)
	}

	return NewServer(Deps{
		Engine:     engine,
		Synthesize: synthesize,
		Samples:    400,
	}, logger)
}

func TestHandleScorePatient(t *testing.T) {
	s := newTestServer(t, true)

	_, out, err := s.handleScorePatient(context.Background(), nil, ScorePatientInput{
		Age:         70,
		Severity:    9,
		Rural:       true,
		Chronic:     true,
		WaitingTime: 45,
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, out.PriorityScore, 0)
	assert.LessOrEqual(t, out.PriorityScore, 100)
	assert.Contains(t, out.Reason, "PRIORITY:")
	assert.NotEmpty(t, out.ModelID)
}

func TestHandleScorePatient_Validation(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name  string
		input ScorePatientInput
	}{
		{"negative age", ScorePatientInput{Age: -1, Severity: 5}},
		{"age above range", ScorePatientInput{Age: 130, Severity: 5}},
		{"severity zero", ScorePatientInput{Age: 40, Severity: 0}},
		{"severity above range", ScorePatientInput{Age: 40, Severity: 11}},
		{"negative wait", ScorePatientInput{Age: 40, Severity: 5, WaitingTime: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.handleScorePatient(context.Background(), nil, tt.input)
			require.Error(t, err)

			var validationErr *domain.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestHandleScorePatient_NoModel(t *testing.T) {
	s := newTestServer(t, false)

	_, _, err := s.handleScorePatient(context.Background(), nil, ScorePatientInput{Age: 40, Severity: 5})
	assert.ErrorIs(t, err, domain.ErrModelNotLoaded)
}

func TestHandleRetrain(t *testing.T) {
	s := newTestServer(t, false)

	_, out, err := s.handleRetrain(context.Background(), nil, RetrainInput{Samples: 300})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ModelID)
	assert.Equal(t, 300, out.SampleCount)
	assert.True(t, s.deps.Engine.IsLoaded())
}

func TestHandleRetrain_DefaultSamples(t *testing.T) {
	s := newTestServer(t, false)

	_, out, err := s.handleRetrain(context.Background(), nil, RetrainInput{})
	require.NoError(t, err)
	assert.Equal(t, 400, out.SampleCount)
}

func TestHandleImportance(t *testing.T) {
	s := newTestServer(t, true)

	_, out, err := s.handleImportance(context.Background(), nil, struct{}{})
	require.NoError(t, err)

	require.Len(t, out.Importances, domain.NumFeatures)
	sum := 0.0
	for _, v := range out.Importances {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestHandleImportance_NoModel(t *testing.T) {
	s := newTestServer(t, false)

	_, _, err := s.handleImportance(context.Background(), nil, struct{}{})
	assert.ErrorIs(t, err, domain.ErrModelNotLoaded)
}
