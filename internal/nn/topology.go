package nn

import (
	"fmt"
	"sort"

	"synapsia/internal/model"
)

// compiledTopology is the pre-computed, executable shape of a genome: a total
// order over its non-input neurons such that every non-recurrent synapse runs
// from an earlier position to a later one, plus the set of synapses that were
// marked recurrent because they could not be placed that way.
//
// Order is computed with Tarjan's strongly-connected-components algorithm:
// components are emitted in reverse-postorder (a topological order of the
// condensation graph), and within a component neurons are ordered by id for
// determinism. A synapse is recurrent when its target's position is not
// strictly after its source's position, which covers self-loops, back edges,
// and the non-monotonic edges inside a non-trivial component.
type compiledTopology struct {
	order     []string
	index     map[string]int
	recurrent map[string]bool // synapse id -> recurrent
	signature string
}

// TopologicalOrder returns the full activation order Compile would use: every
// neuron, feed-forward predecessors before successors, ties broken by id.
func TopologicalOrder(genome model.Genome) ([]string, error) {
	compiled, err := compileTopology(genome)
	if err != nil {
		return nil, err
	}
	return compiled.order, nil
}

// RecurrentSynapseIDs returns the set of enabled synapse ids that compileTopology
// could not place in feed-forward order (self-loops, back edges, and the
// non-monotonic edges inside a non-trivial strongly connected component).
func RecurrentSynapseIDs(genome model.Genome) (map[string]bool, error) {
	compiled, err := compileTopology(genome)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(compiled.recurrent))
	for id, recurrent := range compiled.recurrent {
		if recurrent {
			out[id] = true
		}
	}
	return out, nil
}

func genomeSignature(genome model.Genome) string {
	return fmt.Sprintf("%s:%d:%d:%d", genome.ID, genome.VersionedRecord.SchemaVersion, len(genome.Neurons), len(genome.Synapses))
}

func compileTopology(genome model.Genome) (*compiledTopology, error) {
	adjacency := make(map[string][]string, len(genome.Neurons))
	neuronSet := make(map[string]struct{}, len(genome.Neurons))
	for _, neuron := range genome.Neurons {
		neuronSet[neuron.ID] = struct{}{}
		if _, ok := adjacency[neuron.ID]; !ok {
			adjacency[neuron.ID] = nil
		}
	}
	for _, synapse := range genome.Synapses {
		if !synapse.Enabled {
			continue
		}
		if _, ok := neuronSet[synapse.From]; !ok {
			continue
		}
		if _, ok := neuronSet[synapse.To]; !ok {
			continue
		}
		adjacency[synapse.From] = append(adjacency[synapse.From], synapse.To)
	}

	ids := make([]string, 0, len(genome.Neurons))
	for _, neuron := range genome.Neurons {
		ids = append(ids, neuron.ID)
	}
	sort.Strings(ids)

	components := tarjanSCC(ids, adjacency)

	order := make([]string, 0, len(ids))
	for _, component := range components {
		sort.Strings(component)
		order = append(order, component...)
	}

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	recurrent := make(map[string]bool, len(genome.Synapses))
	for _, synapse := range genome.Synapses {
		if !synapse.Enabled {
			continue
		}
		fromPos, fromOK := index[synapse.From]
		toPos, toOK := index[synapse.To]
		if !fromOK || !toOK {
			recurrent[synapse.ID] = true
			continue
		}
		recurrent[synapse.ID] = toPos <= fromPos
	}

	return &compiledTopology{
		order:     order,
		index:     index,
		recurrent: recurrent,
		signature: genomeSignature(genome),
	}, nil
}

// tarjanSCC returns strongly connected components of the graph described by
// adjacency, ordered so that a component containing only edges into a later
// component always appears before it (reverse postorder of the condensation).
func tarjanSCC(ids []string, adjacency map[string][]string) [][]string {
	index := 0
	indices := make(map[string]int, len(ids))
	lowlink := make(map[string]int, len(ids))
	onStack := make(map[string]bool, len(ids))
	var stack []string
	var components [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adjacency[v] {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			components = append(components, component)
		}
	}

	for _, id := range ids {
		if _, seen := indices[id]; !seen {
			strongConnect(id)
		}
	}

	// Tarjan emits components in reverse topological order of the
	// condensation (a component is closed only after all of its
	// successors); reverse it so predecessors precede successors.
	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}
	return components
}
