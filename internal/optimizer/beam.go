package optimizer

import "sort"

// SelectBeam merges candidates into beam, orders by ascending MAE and keeps the
// first width entries. Equal scores keep their existing order, so an incumbent
// is never displaced by a tie. Neither input is modified.
func SelectBeam(beam, candidates []Candidate, width int) []Candidate {
	merged := make([]Candidate, 0, len(beam)+len(candidates))
	merged = append(merged, beam...)
	merged = append(merged, candidates...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].MAE < merged[j].MAE
	})
	if width > 0 && len(merged) > width {
		merged = merged[:width]
	}
	return merged
}
