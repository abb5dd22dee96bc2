package evo

import (
	"synapsia/internal/genotype"
	"synapsia/internal/model"
)

type TopologySummary = genotype.TopologySummary

type GenomeSignature = genotype.GenomeSignature

func ComputeGenomeSignature(genome model.Genome) GenomeSignature {
	return genotype.ComputeGenomeSignature(genome)
}
