package evo

import "synapsia/internal/scape"

// FitnessVector is the non-empty vector-of-reals fitness representation:
// component 0 is always the scalar Scape.Evaluate result; any additional
// components come from trace counters named in SecondaryComponents, in the
// order given, letting a multi-objective experiment extend a scalar-only
// Scape without changing its Evaluate signature.
type FitnessVector []float64

// BuildFitnessVector assembles a FitnessVector from a scalar fitness and an
// episode trace, pulling numeric secondary components out of trace by name.
// A missing or non-numeric trace key contributes a zero component rather
// than failing the evaluation.
func BuildFitnessVector(fitness scape.Fitness, trace scape.Trace, secondaryComponents []string) FitnessVector {
	vec := make(FitnessVector, 1+len(secondaryComponents))
	vec[0] = float64(fitness)
	for i, key := range secondaryComponents {
		switch v := trace[key].(type) {
		case float64:
			vec[i+1] = v
		case int:
			vec[i+1] = float64(v)
		default:
			vec[i+1] = 0
		}
	}
	return vec
}

// FitnessComparator orders two fitness vectors: Less reports whether a
// ranks strictly below b.
type FitnessComparator interface {
	Less(a, b FitnessVector) bool
}

// LexicographicComparator compares component by component, most significant
// (component 0) first. This is the default comparator per the fitness
// vector's spec.
type LexicographicComparator struct{}

func (LexicographicComparator) Less(a, b FitnessVector) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// ScalarSumComparator reduces both vectors to a sum before comparing,
// ignoring component ordering entirely.
type ScalarSumComparator struct{}

func (ScalarSumComparator) Less(a, b FitnessVector) bool {
	return sumComponents(a) < sumComponents(b)
}

// WeightedSumComparator reduces both vectors to a weighted sum; a component
// beyond len(Weights) is weighted 1.
type WeightedSumComparator struct {
	Weights []float64
}

func (c WeightedSumComparator) Less(a, b FitnessVector) bool {
	return c.weightedSum(a) < c.weightedSum(b)
}

func (c WeightedSumComparator) weightedSum(v FitnessVector) float64 {
	total := 0.0
	for i, component := range v {
		weight := 1.0
		if i < len(c.Weights) {
			weight = c.Weights[i]
		}
		total += component * weight
	}
	return total
}

func sumComponents(v FitnessVector) float64 {
	total := 0.0
	for _, component := range v {
		total += component
	}
	return total
}
