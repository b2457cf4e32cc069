package manifest

import (
	"fmt"
	"math"
	"math/rand"
)

// ratioTolerance bounds how far train+val+test may drift from 1.0
// before the ratios are rejected as a configuration error.
const ratioTolerance = 1e-6

// Ratios holds the train/val/test split fractions.
type Ratios struct {
	Train float64
	Val   float64
	Test  float64
}

// Validate checks that the three fractions sum to 1.0 within both an
// absolute and a relative tolerance of 1e-6.
func (r Ratios) Validate() error {
	total := r.Train + r.Val + r.Test
	diff := math.Abs(total - 1.0)
	if diff > ratioTolerance && diff > ratioTolerance*math.Abs(total) {
		return fmt.Errorf("train, val and test ratios must sum to 1.0, got %v", total)
	}
	return nil
}

// AssignSplits shuffles entries in place with the given seed and
// assigns split labels by position: the first floor(N*train) entries
// become train, the next floor(N*val) become val, and the remainder
// test. Integer truncation means the realized test fraction is always
// at least the nominal one. A fixed seed replays the same assignment.
func AssignSplits(entries []*Entry, ratios Ratios, seed int64) {
	if len(entries) == 0 {
		return
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})

	n := len(entries)
	nTrain := int(float64(n) * ratios.Train)
	nVal := int(float64(n) * ratios.Val)
	for i, entry := range entries {
		switch {
		case i < nTrain:
			entry.Split = SplitTrain
		case i < nTrain+nVal:
			entry.Split = SplitVal
		default:
			entry.Split = SplitTest
		}
	}
}
