package model

// Status of an item as reported by its source.
const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
	StatusCancelled = "cancelled"
)

// Eisenhower Matrix categories. The rank order is used for output sorting
// only, never for filtering.
const (
	CategoryUrgentImportant       = "Urgent & Important"
	CategoryImportantNotUrgent    = "Important & Not Urgent"
	CategoryUrgentNotImportant    = "Urgent & Not Important"
	CategoryNotUrgentNotImportant = "Not Urgent & Not Important"
)

// categoryRank maps each Eisenhower category to its sort rank.
// Lower values sort first. Unknown or missing categories rank last.
var categoryRank = map[string]int{
	CategoryUrgentImportant:       0,
	CategoryImportantNotUrgent:    1,
	CategoryUrgentNotImportant:    2,
	CategoryNotUrgentNotImportant: 3,
}

// CategoryRank returns the sort rank for an Eisenhower category.
func CategoryRank(category string) int {
	if rank, ok := categoryRank[category]; ok {
		return rank
	}
	return 3
}

// GoalCategories is the fixed vocabulary of life-goal groups the classifier
// may align an item with.
var GoalCategories = []string{
	"Foundational Pillars",
	"Core Connections",
	"Growth & Aspirations",
}

// FocusAreas is the fixed vocabulary of current focus areas.
var FocusAreas = []string{
	"Financial Stability",
	"Career Progression",
	"Physical Health",
	"Healthy Marriage",
	"Mental Health",
}

// Item is a normalized event or task. Immutable once normalized within a
// run; identity is the source-assigned ID, stable across runs.
type Item struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
	IsAllDay         bool   `json:"is_all_day"`
	Status           string `json:"status"`
	SourceCollection string `json:"source_collection"`
}

// Classification holds one per-item verdict from the model.
type Classification struct {
	Keep             bool     `json:"keep"`
	GoalAlignment    []string `json:"goal_alignment"`
	FocusAlignment   []string `json:"focus_area_alignment"`
	PriorityCategory string   `json:"eisenhower_category"`
	Confidence       float64  `json:"confidence_score"`
	Reasoning        string   `json:"reasoning"`
}

// ClassifiedItem is the unit stored in output: an item plus whatever the
// classifier produced for it. Classification is nil when classification
// failed; NeedsReview marks items that exhausted the retry policy.
type ClassifiedItem struct {
	Item
	Classification *Classification `json:"classification,omitempty"`
	NeedsReview    bool            `json:"needs_review,omitempty"`
	ReviewReason   string          `json:"review_reason,omitempty"`
}

// Confidence returns the classification confidence, treating a missing
// classification as zero. Used by the dedup tie-break.
func (c ClassifiedItem) Confidence() float64 {
	if c.Classification == nil {
		return 0
	}
	return c.Classification.Confidence
}

// RunMetadata describes one filtering run.
type RunMetadata struct {
	RunID                string  `json:"run_id"`
	TotalItemsProcessed  int     `json:"total_events_processed"`
	ItemsRetained        int     `json:"events_retained"`
	FilteringDate        string  `json:"filtering_date"`
	ConfidenceThreshold  float64 `json:"confidence_threshold"`
	BatchSize            int     `json:"batch_size"`
	MaxConcurrentBatches int     `json:"max_concurrent_batches"`
	TotalBatches         int     `json:"total_batches"`
	BatchesProcessed     int     `json:"batches_processed"`
	SuccessfulBatches    int     `json:"successful_batches"`
}

// RunResult is the persisted artifact: the threshold-kept items plus every
// needs-review item, with run metadata. The JSON keys match the original
// export format so downstream consumers keep working.
type RunResult struct {
	FilteredItems []ClassifiedItem `json:"filtered_events"`
	Metadata      RunMetadata      `json:"metadata"`
}
