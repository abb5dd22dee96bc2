package evo

import "errors"

// ErrEvaluationStorm is returned by PopulationMonitor.Run when more than
// half of a generation's genomes fail evaluation. A single ScapeError is
// caught, logged, and scored at the lowest fitness; a majority failing in
// the same generation usually means the scape itself is broken, so the run
// aborts instead of producing a generation of meaningless rankings.
var ErrEvaluationStorm = errors.New("evaluation storm: majority of generation failed to evaluate")
