package platform

import "errors"

// ErrConfigError wraps a malformed EvolutionConfig or Polis runtime state
// rejected before a run starts: a missing mutation operator, an unregistered
// scape name, a population/initial-genome count mismatch. It is never
// returned once evaluation has begun.
var ErrConfigError = errors.New("config error")
