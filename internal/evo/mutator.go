package evo

import (
	"context"
	"math/rand"

	"synapsia/internal/model"
)

// MutationMode selects how a generation's mutation operators are chosen for
// a genome: independently per operator, or exactly one sampled by weight.
type MutationMode int

const (
	// ModeIndependent runs an independent Bernoulli trial for every
	// configured operator, applying each one whose trial succeeds.
	ModeIndependent MutationMode = iota
	// ModeExactlyOne samples a single operator proportional to its weight
	// and applies only that one.
	ModeExactlyOne
)

// OperatorProbability pairs a mutation operator with the probability (or,
// under ModeExactlyOne, the relative weight) it is chosen with.
type OperatorProbability struct {
	Operator    Operator
	Probability float64
	Structural  bool
}

// Mutator applies a generation's worth of mutation operators to a genome. It
// orders structural operators (add/remove connection, add/remove neuron)
// ahead of weight and bias perturbations, so a perturbation never acts on a
// synapse or neuron a structural operator is about to remove in the same
// pass, and treats every operator failure as a silent skip: a failed
// operator never aborts the remaining ones or the caller's generation loop.
type Mutator struct {
	Mode       MutationMode
	Operators  []OperatorProbability
	Rand       *rand.Rand
	ScapeName  string
}

func (mu *Mutator) ordered() []OperatorProbability {
	ordered := make([]OperatorProbability, 0, len(mu.Operators))
	for _, op := range mu.Operators {
		if op.Structural {
			ordered = append(ordered, op)
		}
	}
	for _, op := range mu.Operators {
		if !op.Structural {
			ordered = append(ordered, op)
		}
	}
	return ordered
}

func (mu *Mutator) applicable(op Operator, genome model.Genome) bool {
	if op == nil {
		return false
	}
	if contextual, ok := op.(ContextualOperator); ok {
		return contextual.Applicable(genome, mu.ScapeName)
	}
	return true
}

// Mutate returns genome with this generation's operators applied according
// to Mode. It never returns an error: an inapplicable or failing operator is
// skipped and the genome it started with for that operator is kept.
func (mu *Mutator) Mutate(ctx context.Context, genome model.Genome) model.Genome {
	if mu == nil || mu.Rand == nil || len(mu.Operators) == 0 {
		return genome
	}

	switch mu.Mode {
	case ModeExactlyOne:
		return mu.mutateExactlyOne(ctx, genome)
	default:
		return mu.mutateIndependent(ctx, genome)
	}
}

func (mu *Mutator) mutateIndependent(ctx context.Context, genome model.Genome) model.Genome {
	current := genome
	for _, candidate := range mu.ordered() {
		if !mu.applicable(candidate.Operator, current) {
			continue
		}
		if mu.Rand.Float64() >= candidate.Probability {
			continue
		}
		mutated, err := candidate.Operator.Apply(ctx, current)
		if err != nil {
			continue
		}
		current = mutated
	}
	return current
}

func (mu *Mutator) mutateExactlyOne(ctx context.Context, genome model.Genome) model.Genome {
	ordered := mu.ordered()
	candidates := make([]OperatorProbability, 0, len(ordered))
	total := 0.0
	for _, candidate := range ordered {
		if !mu.applicable(candidate.Operator, genome) || candidate.Probability <= 0 {
			continue
		}
		candidates = append(candidates, candidate)
		total += candidate.Probability
	}
	if len(candidates) == 0 {
		return genome
	}

	pick := mu.Rand.Float64() * total
	acc := 0.0
	chosen := candidates[len(candidates)-1].Operator
	for _, candidate := range candidates {
		acc += candidate.Probability
		if pick <= acc {
			chosen = candidate.Operator
			break
		}
	}

	mutated, err := chosen.Apply(ctx, genome)
	if err != nil {
		return genome
	}
	return mutated
}
