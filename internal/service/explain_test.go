package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telemed-priority-engine/internal/domain"
)

func TestBuildReason(t *testing.T) {
	tests := []struct {
		name  string
		fv    domain.FeatureVector
		score int
		want  string
	}{
		{
			name:  "All factors present",
			fv:    domain.FeatureVector{Age: 70, Severity: 9, Rural: true, Chronic: true, WaitingTime: 70},
			score: 85,
			want:  "HIGH PRIORITY: High severity, elderly patient, rural location (fairness uplift applied), chronic illness, and long wait time",
		},
		{
			name:  "Single factor",
			fv:    domain.FeatureVector{Age: 25, Severity: 2, WaitingTime: 5},
			score: 20,
			want:  "LOW PRIORITY: Low severity",
		},
		{
			name:  "Two factors",
			fv:    domain.FeatureVector{Age: 55, Severity: 5, WaitingTime: 10},
			score: 50,
			want:  "MEDIUM PRIORITY: Moderate severity and middle-aged patient",
		},
		{
			name:  "Moderate wait time",
			fv:    domain.FeatureVector{Age: 30, Severity: 6, WaitingTime: 30},
			score: 45,
			want:  "LOW PRIORITY: Moderate severity and moderate wait time",
		},
		{
			name:  "Severity boundary high",
			fv:    domain.FeatureVector{Age: 20, Severity: 8, WaitingTime: 0},
			score: 80,
			want:  "HIGH PRIORITY: High severity",
		},
		{
			name:  "Elderly boundary",
			fv:    domain.FeatureVector{Age: 65, Severity: 3, WaitingTime: 0},
			score: 30,
			want:  "LOW PRIORITY: Low severity and elderly patient",
		},
		{
			name:  "Chronic only flag",
			fv:    domain.FeatureVector{Age: 49, Severity: 4, Chronic: true, WaitingTime: 59.9},
			score: 49,
			want:  "LOW PRIORITY: Low severity, chronic illness, and moderate wait time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildReason(tt.fv, tt.score))
		})
	}
}

func TestJoinFactors(t *testing.T) {
	tests := []struct {
		name    string
		factors []string
		want    string
	}{
		{"empty falls back", nil, "standard case"},
		{"one", []string{"A"}, "A"},
		{"two", []string{"A", "B"}, "A and B"},
		{"three", []string{"A", "B", "C"}, "A, B, and C"},
		{"five", []string{"A", "B", "C", "D", "E"}, "A, B, C, D, and E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinFactors(tt.factors))
		})
	}
}
