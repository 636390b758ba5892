package report

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/TFMV/bdt/pkg/compare"
)

// ColumnHint pairs a left-only column with a right-only column whose name is
// close enough to suggest a rename or a case change. Columns are still matched
// by exact name; hints are advisory.
type ColumnHint struct {
	Left     string `json:"left" yaml:"left"`
	Right    string `json:"right" yaml:"right"`
	Distance int    `json:"distance" yaml:"distance"`
}

// maxHintDistance returns the largest edit distance accepted for a name of
// length n.
func maxHintDistance(n int) int {
	return max(1, n/3)
}

// ColumnHints suggests, for each left-only column, the closest unclaimed
// right-only column. Names that differ only by case have distance 0.
func ColumnHints(plan *compare.Plan) []ColumnHint {
	if plan == nil {
		return nil
	}
	var left, right []string
	for _, p := range plan.Pairings {
		switch p.Kind {
		case compare.LeftOnly:
			left = append(left, p.Name)
		case compare.RightOnly:
			right = append(right, p.Name)
		}
	}

	claimed := make(map[string]bool, len(right))
	var hints []ColumnHint
	for _, l := range left {
		best, bestDist := "", -1
		for _, r := range right {
			if claimed[r] {
				continue
			}
			d := levenshtein.ComputeDistance(strings.ToLower(l), strings.ToLower(r))
			if d > maxHintDistance(max(len(l), len(r))) {
				continue
			}
			if bestDist < 0 || d < bestDist {
				best, bestDist = r, d
			}
		}
		if bestDist >= 0 {
			claimed[best] = true
			hints = append(hints, ColumnHint{Left: l, Right: best, Distance: bestDist})
		}
	}
	return hints
}
