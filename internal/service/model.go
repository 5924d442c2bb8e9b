package service

import (
	"github.com/telemed-priority-engine/internal/domain"
	"github.com/telemed-priority-engine/internal/gbt"
)

// treeModel adapts a fitted gbt.Ensemble to the domain.Model interface.
type treeModel struct {
	ensemble *gbt.Ensemble
}

// NewTreeModel wraps a fitted ensemble as an opaque scoring model.
func NewTreeModel(ensemble *gbt.Ensemble) domain.Model {
	return &treeModel{ensemble: ensemble}
}

func (m *treeModel) Predict(fv domain.FeatureVector) float64 {
	return m.ensemble.Predict(fv.Floats())
}

func (m *treeModel) Importances() map[string]float64 {
	weights := m.ensemble.Importances()
	out := make(map[string]float64, len(weights))
	for i, name := range domain.FeatureNames {
		if i < len(weights) {
			out[name] = weights[i]
		}
	}
	return out
}
