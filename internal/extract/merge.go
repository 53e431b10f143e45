package extract

import "strings"

// Merge folds a follow-up extraction into an existing entity set, for the
// add-more-details flow on the validation screen.
//
// Per field, the second pass is authoritative: any value the update detected
// replaces the old one, and the displaced value becomes the top alternative.
// Fields the update did not hear keep their value and confidence.
// Alternatives are unioned. Notes from both rounds are kept, newline
// separated. Neither input is mutated.
func Merge(base, update *Entities) *Entities {
	if base == nil {
		return update.Clone()
	}
	if update == nil {
		return base.Clone()
	}

	out := base.Clone()
	for name, u := range update.Fields() {
		mergeField(out.Field(name), u)
	}

	switch {
	case out.Notes == "":
		out.Notes = update.Notes
	case update.Notes != "" && update.Notes != out.Notes:
		out.Notes = strings.TrimSpace(out.Notes + "\n" + update.Notes)
	}

	return out
}

// mergeField merges the update entity into dst in place. A re-dictated field
// takes the newest reading whatever its score: the user chose to say it
// again, and the review gate still catches a low-confidence result.
func mergeField(dst, update *Entity) {
	if dst == nil || update == nil || update.Value == "" {
		return
	}

	switch {
	case dst.Value == "":
		dst.Value = update.Value
		dst.Confidence = update.Confidence
	case dst.Value == update.Value:
		// Heard again: keep the better score.
		if update.Confidence > dst.Confidence {
			dst.Confidence = update.Confidence
		}
	default:
		dst.Alternatives = prependUnique(dst.Alternatives, dst.Value)
		dst.Value = update.Value
		dst.Confidence = update.Confidence
	}

	dst.Alternatives = withoutValue(dst.Alternatives, dst.Value)
	for _, a := range update.Alternatives {
		if a != dst.Value {
			dst.Alternatives = appendUnique(dst.Alternatives, a)
		}
	}
}

// withoutValue removes v from list, preserving order. A promoted reading must
// not keep listing itself as its own alternative.
func withoutValue(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// appendUnique appends v to list unless already present.
func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
