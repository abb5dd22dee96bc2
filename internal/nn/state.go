package nn

import (
	"fmt"
	"math"

	"synapsia/internal/model"
)

// ForwardState carries the activation trace a Cortex needs across calls: the
// previous cycle's per-neuron values (consulted only by recurrent synapses)
// and a cached topology so repeated ticks against the same genome don't
// re-run Tarjan's algorithm every time.
type ForwardState struct {
	previous map[string]float64
	compiled *compiledTopology
	// StrictOverflow, when true, surfaces ErrNumericOverflow instead of
	// silently clamping a non-finite aggregate to the saturation range.
	StrictOverflow bool
}

// NewForwardState returns a state whose recurrent inputs are all zero, as
// required on episode reset.
func NewForwardState() *ForwardState {
	return &ForwardState{previous: make(map[string]float64)}
}

// ForwardWithState activates genome once, reading recurrent-synapse inputs
// from the previous call's outputs (zero before the first call) and
// feed-forward inputs from values already computed earlier in this call's
// topological order.
func ForwardWithState(genome model.Genome, inputByNeuron map[string]float64, state *ForwardState) (map[string]float64, error) {
	if state == nil {
		state = NewForwardState()
	}
	if err := checkInputArity(genome, inputByNeuron); err != nil {
		return nil, err
	}

	signature := genomeSignature(genome)
	if state.compiled == nil || state.compiled.signature != signature {
		compiled, err := compileTopology(genome)
		if err != nil {
			return nil, err
		}
		state.compiled = compiled
	}
	compiled := state.compiled

	incoming := make(map[string][]model.Synapse, len(genome.Neurons))
	for _, synapse := range genome.Synapses {
		if !synapse.Enabled {
			continue
		}
		incoming[synapse.To] = append(incoming[synapse.To], synapse)
	}

	values := make(map[string]float64, len(genome.Neurons))
	for neuronID, value := range inputByNeuron {
		values[neuronID] = value
	}

	neurons := make(map[string]model.Neuron, len(genome.Neurons))
	for _, neuron := range genome.Neurons {
		neurons[neuron.ID] = neuron
	}

	for _, neuronID := range compiled.order {
		if _, fixedInput := inputByNeuron[neuronID]; fixedInput {
			continue
		}
		neuron, ok := neurons[neuronID]
		if !ok {
			continue
		}

		total, err := aggregateIncomingWithRecurrence(neuron.Aggregator, neuron.Bias, incoming[neuronID], values, state.previous, compiled.recurrent)
		if err != nil {
			return nil, fmt.Errorf("neuron %s: %w", neuronID, err)
		}

		activated, err := applyActivation(neuron.Activation, total)
		if err != nil {
			return nil, fmt.Errorf("neuron %s: %w", neuronID, err)
		}
		if state.StrictOverflow && (math.IsNaN(activated) || math.IsInf(activated, 0)) {
			return nil, fmt.Errorf("neuron %s: %w", neuronID, ErrNumericOverflow)
		}
		values[neuronID] = saturate(activated, -outputSaturationLimit, outputSaturationLimit)
	}

	next := make(map[string]float64, len(values))
	for k, v := range values {
		next[k] = v
	}
	state.previous = next

	return values, nil
}

// aggregateIncomingWithRecurrence is aggregateIncoming's recurrence-aware
// counterpart: a synapse flagged recurrent reads its source value from the
// previous cycle instead of the one being computed.
func aggregateIncomingWithRecurrence(
	mode string,
	bias float64,
	synapses []model.Synapse,
	current map[string]float64,
	previous map[string]float64,
	recurrent map[string]bool,
) (float64, error) {
	resolved := make([]model.Synapse, len(synapses))
	values := make(map[string]float64, len(synapses))
	for i, synapse := range synapses {
		resolved[i] = synapse
		if recurrent[synapse.ID] {
			values[synapse.From] = previous[synapse.From]
		} else {
			values[synapse.From] = current[synapse.From]
		}
	}
	return aggregateIncoming(mode, bias, resolved, values)
}
