// Package batch partitions normalized items into fixed-size groups for
// submission to the classifier.
package batch

import "github.com/a-marczewski/goalsift/internal/model"

// Split partitions items into batches of at most size items each,
// preserving input order. The last batch may be smaller. A non-positive
// size yields a single batch with everything in it.
func Split(items []model.Item, size int) [][]model.Item {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(items)
	}

	batches := make([][]model.Item, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
