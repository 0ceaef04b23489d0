package fetcher

import (
	"fmt"
	"testing"

	"ewintr.nl/ytstats/model"
)

func TestSplit(t *testing.T) {
	for _, tc := range []struct {
		count int
		exp   []int
	}{
		{count: 0, exp: []int{}},
		{count: 1, exp: []int{1}},
		{count: 50, exp: []int{50}},
		{count: 51, exp: []int{50, 1}},
		{count: 115, exp: []int{50, 50, 15}},
		{count: 150, exp: []int{50, 50, 50}},
	} {
		t.Run(fmt.Sprintf("%d", tc.count), func(t *testing.T) {
			refs := make([]model.VideoReference, tc.count)
			for i := range refs {
				refs[i] = model.VideoReference{RecordID: fmt.Sprintf("r%d", i)}
			}

			batches := Split(refs, MaxBatchSize)
			if len(batches) != len(tc.exp) {
				t.Fatalf("exp %d batches, got %d", len(tc.exp), len(batches))
			}
			var joined []model.VideoReference
			for i, b := range batches {
				if len(b) != tc.exp[i] {
					t.Errorf("batch %d: exp size %d, got %d", i, tc.exp[i], len(b))
				}
				joined = append(joined, b...)
			}
			if len(joined) != len(refs) {
				t.Fatalf("exp %d refs after joining, got %d", len(refs), len(joined))
			}
			for i := range refs {
				if joined[i] != refs[i] {
					t.Errorf("position %d: exp %v, got %v", i, refs[i], joined[i])
				}
			}
		})
	}
}

func TestSplitDoesNotShareCapacity(t *testing.T) {
	refs := make([]model.VideoReference, 3)
	batches := Split(refs, 2)
	batches[0] = append(batches[0], model.VideoReference{RecordID: "extra"})
	if batches[1][0].RecordID == "extra" {
		t.Error("appending to a batch overwrote the next one")
	}
}
