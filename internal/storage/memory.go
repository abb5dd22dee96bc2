package storage

import (
	"context"
	"sync"

	"synapsia/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	genomes     map[string]model.Genome
	populations map[string]model.Population
	lineage     map[string][]model.LineageRecord
	fitness     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
	species     map[string][]model.SpeciesGeneration
	topGenomes  map[string][]model.TopGenomeRecord
	scapes      map[string]model.ScapeSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.genomes = make(map[string]model.Genome)
	s.populations = make(map[string]model.Population)
	s.lineage = make(map[string][]model.LineageRecord)
	s.fitness = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.species = make(map[string][]model.SpeciesGeneration)
	s.topGenomes = make(map[string][]model.TopGenomeRecord)
	s.scapes = make(map[string]model.ScapeSummary)
	return nil
}

// Reset clears all persisted state in place, satisfying storage.Resetter.
func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]float64, len(history))
	copy(copied, history)
	s.fitness[runID] = copied
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.fitness[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]float64, len(history))
	copy(copied, history)
	return copied, true, nil
}

func (s *MemoryStore) SaveGenome(_ context.Context, genome model.Genome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genomes[genome.ID] = genome
	return nil
}

func (s *MemoryStore) GetGenome(_ context.Context, id string) (model.Genome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	genome, ok := s.genomes[id]
	return genome, ok, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, population model.Population) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.populations[population.ID] = population
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.Population, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	population, ok := s.populations[id]
	return population, ok, nil
}

func (s *MemoryStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.LineageRecord, len(lineage))
	copy(copied, lineage)
	s.lineage[runID] = copied
	return nil
}

func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.LineageRecord, len(lineage))
	copy(copied, lineage)
	return copied, true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveSpeciesHistory(_ context.Context, runID string, history []model.SpeciesGeneration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.SpeciesGeneration, len(history))
	copy(copied, history)
	s.species[runID] = copied
	return nil
}

func (s *MemoryStore) GetSpeciesHistory(_ context.Context, runID string) ([]model.SpeciesGeneration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.species[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.SpeciesGeneration, len(history))
	copy(copied, history)
	return copied, true, nil
}

func (s *MemoryStore) SaveTopGenomes(_ context.Context, runID string, top []model.TopGenomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.TopGenomeRecord, len(top))
	copy(copied, top)
	s.topGenomes[runID] = copied
	return nil
}

func (s *MemoryStore) GetTopGenomes(_ context.Context, runID string) ([]model.TopGenomeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.topGenomes[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TopGenomeRecord, len(top))
	copy(copied, top)
	return copied, true, nil
}

func (s *MemoryStore) SaveScapeSummary(_ context.Context, summary model.ScapeSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scapes[summary.Name] = summary
	return nil
}

func (s *MemoryStore) GetScapeSummary(_ context.Context, name string) (model.ScapeSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.scapes[name]
	return summary, ok, nil
}
