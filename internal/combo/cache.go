package combo

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/okeyhub/okey101/internal/tile"
)

// Evaluator memoises EvaluateHand by the faces in each slot, so two racks that differ only in
// physical tile identity share an entry. It is safe for concurrent use.
type Evaluator struct {
	cache *lru.ARCCache
}

// NewEvaluator returns an Evaluator holding up to size racks.
func NewEvaluator(size int) (*Evaluator, error) {
	c, err := lru.NewARC(size)
	if err != nil {
		return nil, fmt.Errorf("lru new instance of arc cache: %w", err)
	}
	return &Evaluator{cache: c}, nil
}

// Evaluate behaves like EvaluateHand.
func (e *Evaluator) Evaluate(hand tile.Hand, okey tile.Okey) Evaluation {
	key := signature(hand, okey)
	if v, ok := e.cache.Get(key); ok {
		return materialize(hand, v.([]window))
	}
	picked := cover(candidates(hand, okey), len(hand))
	e.cache.Add(key, picked)
	return materialize(hand, picked)
}

// Len returns the number of cached racks.
func (e *Evaluator) Len() int {
	return e.cache.Len()
}

func signature(hand tile.Hand, okey tile.Okey) string {
	var b strings.Builder
	b.WriteString(okey.String())
	for _, t := range hand {
		b.WriteByte('|')
		b.WriteString(t.String())
	}
	return b.String()
}
