package scape

import (
	"context"
	"errors"
)

// ErrScapeFailure wraps any error a concrete Scape implementation returns
// from Evaluate or step. Callers log it and assign the lowest fitness
// rather than aborting the generation.
var ErrScapeFailure = errors.New("scape evaluation failed")

type Fitness float64

type Trace map[string]any

type Agent interface {
	ID() string
}

type TickAgent interface {
	Agent
	Tick(ctx context.Context) ([]float64, error)
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error)
}
