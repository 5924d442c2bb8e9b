package service

import (
	"fmt"
	"strings"

	"github.com/telemed-priority-engine/internal/domain"
)

// Explanation thresholds. Derived from the input features only, never from
// model internals, so every justification is independently auditable.
const (
	highSeverityMin     = 8
	moderateSeverityMin = 5
	elderlyAgeMin       = 65
	middleAgedAgeMin    = 50
	longWaitMin         = 60.0
	moderateWaitMin     = 30.0
)

// buildReason derives the human-readable justification for a score. Factor
// order is fixed: severity, age, rural, chronic, wait time. The priority
// level prefix is determined solely by the final clamped score.
func buildReason(fv domain.FeatureVector, score int) string {
	factors := make([]string, 0, 5)

	switch {
	case fv.Severity >= highSeverityMin:
		factors = append(factors, "High severity")
	case fv.Severity >= moderateSeverityMin:
		factors = append(factors, "Moderate severity")
	default:
		factors = append(factors, "Low severity")
	}

	if fv.Age >= elderlyAgeMin {
		factors = append(factors, "elderly patient")
	} else if fv.Age >= middleAgedAgeMin {
		factors = append(factors, "middle-aged patient")
	}

	if fv.Rural {
		factors = append(factors, "rural location (fairness uplift applied)")
	}

	if fv.Chronic {
		factors = append(factors, "chronic illness")
	}

	if fv.WaitingTime >= longWaitMin {
		factors = append(factors, "long wait time")
	} else if fv.WaitingTime >= moderateWaitMin {
		factors = append(factors, "moderate wait time")
	}

	return fmt.Sprintf("%s: %s", domain.LevelForScore(score), joinFactors(factors))
}

// joinFactors joins contributing factors Oxford-comma style. The severity
// bucket always contributes, so the empty fallback is unreachable in
// practice but kept as a safety net.
func joinFactors(factors []string) string {
	switch len(factors) {
	case 0:
		return "standard case"
	case 1:
		return factors[0]
	case 2:
		return factors[0] + " and " + factors[1]
	default:
		last := len(factors) - 1
		return strings.Join(factors[:last], ", ") + ", and " + factors[last]
	}
}
