package morphology

import (
	"fmt"
	"sort"
	"strings"

	"synapsia/internal/scapeid"
)

// EnsureScapeCompatibilityWithProfile resolves the named morphology profile
// for scapeName and validates its sensors/actuators against the protoio
// registry.
func EnsureScapeCompatibilityWithProfile(scapeName, profile string) error {
	m, err := ConstructMorphology(scapeName, profile)
	if err != nil {
		return err
	}
	scapeName = scapeid.Normalize(scapeName)
	return ValidateRegisteredComponents(scapeName, m)
}

// ConstructMorphology returns the Morphology for scapeName, selecting among
// that scape's named profiles. Only "default" is defined for the illustrative
// scapes shipped with this engine (xor, regression-mimic, cart-pole-lite);
// unknown profiles are rejected rather than silently ignored.
func ConstructMorphology(scapeName, profile string) (Morphology, error) {
	scapeName = scapeid.Normalize(scapeName)
	profile = normalizeMorphologyProfile(profile)
	m, ok := defaultMorphologyForScape(scapeName)
	if !ok {
		return nil, fmt.Errorf("unsupported scape morphology: %s", scapeName)
	}
	if profile != "" && profile != "default" {
		return nil, fmt.Errorf("unsupported %s morphology profile: %s", scapeName, profile)
	}
	return m, nil
}

// AvailableMorphologyProfiles lists the morphology profile names understood
// for scapeName.
func AvailableMorphologyProfiles(scapeName string) []string {
	scapeName = scapeid.Normalize(scapeName)
	var profiles []string
	if _, ok := defaultMorphologyForScape(scapeName); ok {
		profiles = []string{"default"}
	}
	sort.Strings(profiles)
	return profiles
}

func normalizeMorphologyProfile(raw string) string {
	profile := strings.TrimSpace(strings.ToLower(raw))
	profile = strings.ReplaceAll(profile, "-", "_")
	return profile
}
