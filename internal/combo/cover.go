package combo

import (
	"sort"

	"github.com/okeyhub/okey101/internal/tile"
)

// Combination is a scored window of contiguous rack slots. Start and End are inclusive slot
// indexes. Tiles is a copy of the window and is not owned by the rack.
type Combination struct {
	Start int         `json:"start"`
	End   int         `json:"end"`
	Kind  Kind        `json:"kind"`
	Score int         `json:"score"`
	Tiles []tile.Tile `json:"tiles"`
}

// Len returns the number of slots spanned.
func (c Combination) Len() int {
	return c.End - c.Start + 1
}

// Overlaps reports whether c and o claim a common slot.
func (c Combination) Overlaps(o Combination) bool {
	return c.Start <= o.End && o.Start <= c.End
}

// Evaluation is the greedy cover of a rack.
type Evaluation struct {
	Combinations []Combination `json:"combinations"`
	TotalScore   int           `json:"totalScore"`
}

// Covers reports whether slot i is part of a selected combination.
func (e Evaluation) Covers(i int) bool {
	for _, c := range e.Combinations {
		if i >= c.Start && i <= c.End {
			return true
		}
	}
	return false
}

// window is a combination without its tiles, used as the memoised form.
type window struct {
	start, end int
	kind       Kind
	score      int
}

// candidates lists every valid window of length >= MinSize in enumeration order: by start
// slot, then by length. Windows that span an empty slot are skipped.
func candidates(hand tile.Hand, okey tile.Okey) []window {
	var out []window
	for i := range hand {
		for end := i; end < len(hand); end++ {
			if hand[end].IsZero() {
				break
			}
			if end-i+1 < MinSize {
				continue
			}
			k, s := Classify(hand[i:end+1], okey)
			if k == Invalid {
				continue
			}
			out = append(out, window{start: i, end: end, kind: k, score: s})
		}
	}
	return out
}

// cover orders the candidates by score then length, both descending, keeping enumeration
// order for ties, and selects greedily without overlap.
func cover(cands []window, slots int) []window {
	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].score != cands[b].score {
			return cands[a].score > cands[b].score
		}
		return cands[a].end-cands[a].start > cands[b].end-cands[b].start
	})

	claimed := make([]bool, slots)
	var picked []window
next:
	for _, w := range cands {
		for i := w.start; i <= w.end; i++ {
			if claimed[i] {
				continue next
			}
		}
		for i := w.start; i <= w.end; i++ {
			claimed[i] = true
		}
		picked = append(picked, w)
	}
	return picked
}

func materialize(hand tile.Hand, picked []window) Evaluation {
	ev := Evaluation{Combinations: make([]Combination, 0, len(picked))}
	for _, w := range picked {
		tiles := make([]tile.Tile, w.end-w.start+1)
		copy(tiles, hand[w.start:w.end+1])
		ev.Combinations = append(ev.Combinations, Combination{
			Start: w.start,
			End:   w.end,
			Kind:  w.kind,
			Score: w.score,
			Tiles: tiles,
		})
		ev.TotalScore += w.score
	}
	return ev
}

// FindAllValidCombinations returns the greedy non-overlapping cover of hand in selection
// order, highest priority first.
func FindAllValidCombinations(hand tile.Hand, okey tile.Okey) []Combination {
	return EvaluateHand(hand, okey).Combinations
}

// EvaluateHand computes the greedy cover of hand and its total score. It does not modify hand.
func EvaluateHand(hand tile.Hand, okey tile.Okey) Evaluation {
	return materialize(hand, cover(candidates(hand, okey), len(hand)))
}
