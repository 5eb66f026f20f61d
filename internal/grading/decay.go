package grading

import (
	"fmt"
	"math"
	"time"
)

// Decay curve kinds.
const (
	DecayExponential = "exponential"
	DecayLinear      = "linear"
)

// DecayFunc maps a deal's age to a recency multiplier in [0, 1]. A deal
// dated today always scores its full weight; anything at or past the
// horizon contributes nothing.
type DecayFunc func(age time.Duration) float64

// NewDecay builds the configured decay curve.
func NewDecay(kind string, halfLife, horizon time.Duration) (DecayFunc, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("decay horizon must be positive, got %v", horizon)
	}
	switch kind {
	case DecayExponential:
		if halfLife <= 0 {
			return nil, fmt.Errorf("decay half-life must be positive, got %v", halfLife)
		}
		return func(age time.Duration) float64 {
			if age <= 0 {
				return 1
			}
			if age >= horizon {
				return 0
			}
			return math.Pow(0.5, float64(age)/float64(halfLife))
		}, nil
	case DecayLinear:
		return func(age time.Duration) float64 {
			if age <= 0 {
				return 1
			}
			if age >= horizon {
				return 0
			}
			return 1 - float64(age)/float64(horizon)
		}, nil
	default:
		return nil, fmt.Errorf("unknown decay kind %q", kind)
	}
}
