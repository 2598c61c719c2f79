package merge

import (
	"sort"

	"github.com/roach88/protrecon/internal/protein"
)

// ParticipationsEqual is the structural equality used to detect duplicate
// participations. Identifiers and owning records are ignored. The owning
// interaction is compared only when both sides have one.
func ParticipationsEqual(a, b protein.Participation) bool {
	if a.Stoichiometry != b.Stoichiometry {
		return false
	}
	if a.BiologicalRole != b.BiologicalRole || a.ExpressedIn != b.ExpressedIn {
		return false
	}
	if a.InteractionID != "" && b.InteractionID != "" && a.InteractionID != b.InteractionID {
		return false
	}
	if !sameSet(a.ExperimentalRoles, b.ExperimentalRoles) {
		return false
	}
	if !sameSet(a.DetectionMethods, b.DetectionMethods) {
		return false
	}
	if !sameSet(confidenceKeys(a.Confidences), confidenceKeys(b.Confidences)) {
		return false
	}
	if !sameSet(parameterKeys(a.Parameters), parameterKeys(b.Parameters)) {
		return false
	}
	return featureSetsEqual(a.Features, b.Features)
}

// FeaturesEqual compares type, name and the range sets. Ranges are equal
// when their fuzzy status tags, interval bounds and captured sequence
// snippet all match.
func FeaturesEqual(a, b protein.Feature) bool {
	if a.Type != b.Type || a.Name != b.Name {
		return false
	}
	if len(a.Ranges) != len(b.Ranges) {
		return false
	}
	return sameSet(a.Ranges, b.Ranges)
}

// featureSetsEqual holds when every feature on each side has a structurally
// equal counterpart on the other.
func featureSetsEqual(a, b []protein.Feature) bool {
	if len(a) != len(b) {
		return false
	}
	return coveredBy(a, b) && coveredBy(b, a)
}

func coveredBy(a, b []protein.Feature) bool {
	for _, fa := range a {
		found := false
		for _, fb := range b {
			if FeaturesEqual(fa, fb) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func confidenceKeys(cs []protein.Confidence) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Key()
	}
	return out
}

func parameterKeys(ps []protein.Parameter) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Key()
	}
	return out
}

// sameSet compares two slices as sets.
func sameSet[T comparable](a, b []T) bool {
	sa := make(map[T]struct{}, len(a))
	for _, v := range a {
		sa[v] = struct{}{}
	}
	sb := make(map[T]struct{}, len(b))
	for _, v := range b {
		if _, ok := sa[v]; !ok {
			return false
		}
		sb[v] = struct{}{}
	}
	return len(sa) == len(sb)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
