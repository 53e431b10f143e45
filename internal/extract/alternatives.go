package extract

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// highNameConfidence is the score above which a name is taken at face value
// and its alternatives are left in model order.
const highNameConfidence = 0.9

// rankNameAlternatives orders candidate name readings by how plausibly they
// were misheard as value: soundalikes (sharing a Double Metaphone code with
// the value) rank ahead of everything else, ties broken by Jaro-Winkler
// string similarity. The validation screen shows the list top-first.
func rankNameAlternatives(value string, candidates []string) []string {
	if len(candidates) < 2 {
		return candidates
	}

	type scored struct {
		name      string
		soundsAlike bool
		similarity  float64
	}

	scoredAlts := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		scoredAlts = append(scoredAlts, scored{
			name:        c,
			soundsAlike: soundsAlike(value, c),
			similarity:  matchr.JaroWinkler(strings.ToLower(value), strings.ToLower(c), false),
		})
	}

	sort.SliceStable(scoredAlts, func(i, j int) bool {
		if scoredAlts[i].soundsAlike != scoredAlts[j].soundsAlike {
			return scoredAlts[i].soundsAlike
		}
		return scoredAlts[i].similarity > scoredAlts[j].similarity
	})

	out := make([]string, len(scoredAlts))
	for i, s := range scoredAlts {
		out[i] = s.name
	}
	return out
}

// soundsAlike reports whether a and b share a Double Metaphone code on any
// of their name parts. "Maria Lopez" and "Mariah Lopes" sound alike; "Maria
// Lopez" and "Mario Gomez" do not.
func soundsAlike(a, b string) bool {
	aParts := strings.Fields(a)
	bParts := strings.Fields(b)
	if len(aParts) == 0 || len(bParts) == 0 {
		return false
	}

	matched := 0
	for _, ap := range aParts {
		ap1, ap2 := matchr.DoubleMetaphone(ap)
		for _, bp := range bParts {
			bp1, bp2 := matchr.DoubleMetaphone(bp)
			if codesOverlap(ap1, ap2, bp1, bp2) {
				matched++
				break
			}
		}
	}
	// Every part of the shorter name must have a soundalike counterpart.
	return matched >= min(len(aParts), len(bParts))
}

// codesOverlap reports whether any non-empty metaphone code is shared.
func codesOverlap(a1, a2, b1, b2 string) bool {
	for _, a := range []string{a1, a2} {
		if a == "" {
			continue
		}
		if a == b1 || (b2 != "" && a == b2) {
			return true
		}
	}
	return false
}
