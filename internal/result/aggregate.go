// Package result aggregates classified items into the persisted run
// artifact: dedup, threshold filtering, ordering, and atomic writes.
package result

import (
	"sort"

	"github.com/a-marczewski/goalsift/internal/model"
)

// farFuture sorts items without a start date after everything dated.
const farFuture = "9999-12-31"

// Deduplicate collapses duplicate item ids, keeping the entry with the
// higher classification confidence. Split retries can legitimately process
// the same item twice; arrival order must not decide the winner, so the
// tie-break is confidence only (a missing classification counts as zero,
// and ties keep the first seen).
func Deduplicate(items []model.ClassifiedItem) []model.ClassifiedItem {
	unique := make(map[string]model.ClassifiedItem, len(items))
	order := make([]string, 0, len(items))

	for _, item := range items {
		existing, seen := unique[item.ID]
		if !seen {
			unique[item.ID] = item
			order = append(order, item.ID)
			continue
		}
		if item.Confidence() > existing.Confidence() {
			unique[item.ID] = item
		}
	}

	out := make([]model.ClassifiedItem, 0, len(unique))
	for _, id := range order {
		out = append(out, unique[id])
	}
	return out
}

// Kept returns the confidently retained subset: items the model said to
// keep with confidence at or above the threshold. Needs-review items never
// qualify here; Exported carries them into the artifact.
func Kept(items []model.ClassifiedItem, threshold float64) []model.ClassifiedItem {
	kept := make([]model.ClassifiedItem, 0, len(items))
	for _, item := range items {
		if item.Classification == nil {
			continue
		}
		if item.Classification.Keep && item.Classification.Confidence >= threshold {
			kept = append(kept, item)
		}
	}
	return kept
}

// Exported returns the persisted view: the threshold-kept items plus every
// needs-review item. Flagged items must reach the artifact with their
// review reason or manual review has nothing to read.
func Exported(items []model.ClassifiedItem, threshold float64) []model.ClassifiedItem {
	exported := make([]model.ClassifiedItem, 0, len(items))
	for _, item := range items {
		if item.NeedsReview {
			exported = append(exported, item)
			continue
		}
		if item.Classification != nil && item.Classification.Keep && item.Classification.Confidence >= threshold {
			exported = append(exported, item)
		}
	}
	return exported
}

// Sort orders items by start date ascending (missing dates sort last),
// then by Eisenhower rank. Stable, so equal keys keep their input order.
func Sort(items []model.ClassifiedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := sortDate(items[i]), sortDate(items[j])
		if di != dj {
			return di < dj
		}
		return sortRank(items[i]) < sortRank(items[j])
	})
}

func sortDate(item model.ClassifiedItem) string {
	if item.StartDate == "" {
		return farFuture
	}
	return item.StartDate
}

func sortRank(item model.ClassifiedItem) int {
	if item.Classification == nil {
		return model.CategoryRank("")
	}
	return model.CategoryRank(item.Classification.PriorityCategory)
}
