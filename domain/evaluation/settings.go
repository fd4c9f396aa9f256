package evaluation

import "fmt"

// Settings holds the thresholds and weights used to judge a response.
type Settings struct {
	Thresholds       map[Criterion]float64 `json:"thresholds" yaml:"thresholds"`
	Weights          map[Criterion]float64 `json:"weights" yaml:"weights"`
	OverallThreshold float64               `json:"overall_threshold" yaml:"overall_threshold"`
}

// DefaultSettings returns the stock thresholds and weights.
func DefaultSettings() Settings {
	return Settings{
		Thresholds: map[Criterion]float64{
			Relevance:         0.7,
			FactualAccuracy:   0.8,
			Completeness:      0.7,
			LogicalCoherence:  0.7,
			EthicalCompliance: 0.9,
		},
		Weights: map[Criterion]float64{
			Relevance:         0.25,
			FactualAccuracy:   0.3,
			Completeness:      0.2,
			LogicalCoherence:  0.15,
			EthicalCompliance: 0.1,
		},
		OverallThreshold: 0.75,
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := Settings{
		Thresholds:       make(map[Criterion]float64, len(s.Thresholds)),
		Weights:          make(map[Criterion]float64, len(s.Weights)),
		OverallThreshold: s.OverallThreshold,
	}
	for k, v := range s.Thresholds {
		out.Thresholds[k] = v
	}
	for k, v := range s.Weights {
		out.Weights[k] = v
	}
	return out
}

// Merge overlays non-empty values from other onto a copy of s.
func (s Settings) Merge(other Settings) Settings {
	out := s.Clone()
	for k, v := range other.Thresholds {
		out.Thresholds[k] = v
	}
	for k, v := range other.Weights {
		out.Weights[k] = v
	}
	if other.OverallThreshold > 0 {
		out.OverallThreshold = other.OverallThreshold
	}
	return out
}

// Validate checks every threshold is in [0,1] and every weight is non-negative.
func (s Settings) Validate() error {
	for c, v := range s.Thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidThreshold, c, v)
		}
	}
	if s.OverallThreshold < 0 || s.OverallThreshold > 1 {
		return fmt.Errorf("%w: overall=%v", ErrInvalidThreshold, s.OverallThreshold)
	}
	for c, v := range s.Weights {
		if v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeight, c, v)
		}
	}
	return nil
}
