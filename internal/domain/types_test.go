package domain

import (
	"testing"
)

func TestFeatureVectorFloats(t *testing.T) {
	tests := []struct {
		name string
		fv   FeatureVector
		want []float64
	}{
		{
			name: "All flags set",
			fv:   FeatureVector{Age: 70, Severity: 9, Rural: true, Chronic: true, WaitingTime: 45.5},
			want: []float64{70, 9, 1, 1, 45.5},
		},
		{
			name: "No flags set",
			fv:   FeatureVector{Age: 25, Severity: 2, WaitingTime: 5},
			want: []float64{25, 2, 0, 0, 5},
		},
		{
			name: "Zero value",
			fv:   FeatureVector{},
			want: []float64{0, 0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fv.Floats()
			if len(got) != NumFeatures {
				t.Fatalf("Expected %d columns, got %d", NumFeatures, len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Column %s: expected %v, got %v", FeatureNames[i], tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  PriorityLevel
	}{
		{0, LOW_PRIORITY},
		{49, LOW_PRIORITY},
		{50, MEDIUM_PRIORITY},
		{79, MEDIUM_PRIORITY},
		{80, HIGH_PRIORITY},
		{100, HIGH_PRIORITY},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestPredictionRecordFeaturesOf(t *testing.T) {
	rec := &PredictionRecord{
		Age: 65, Severity: 8, Rural: true, Chronic: false, WaitingTime: 30,
	}
	fv := rec.FeaturesOf()
	if fv.Age != 65 || fv.Severity != 8 || !fv.Rural || fv.Chronic || fv.WaitingTime != 30 {
		t.Errorf("FeaturesOf() returned %+v", fv)
	}
}
