package nn

import (
	"errors"
	"strings"

	"synapsia/internal/model"
)

var (
	// ErrInputArityMismatch is returned by ForwardWithState when the
	// supplied input map does not name exactly the genome's input neurons.
	ErrInputArityMismatch = errors.New("input arity mismatch")
	// ErrNumericOverflow is returned when StrictOverflow is enabled and an
	// aggregate would have produced a non-finite value before clamping.
	ErrNumericOverflow = errors.New("numeric overflow")
)

// inputNeuronIDs returns the genome's neuron ids classified as input by the
// ":in:" id-role marker. Duplicated from genotype.ClassifyLayer's input case
// rather than imported, since genotype imports this package for topology.
func inputNeuronIDs(genome model.Genome) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, neuron := range genome.Neurons {
		if strings.Contains(neuron.ID, ":in:") {
			ids[neuron.ID] = struct{}{}
		}
	}
	return ids
}

func checkInputArity(genome model.Genome, inputByNeuron map[string]float64) error {
	expected := inputNeuronIDs(genome)
	if len(expected) == 0 {
		return nil
	}
	if len(inputByNeuron) != len(expected) {
		return ErrInputArityMismatch
	}
	for id := range expected {
		if _, ok := inputByNeuron[id]; !ok {
			return ErrInputArityMismatch
		}
	}
	return nil
}
