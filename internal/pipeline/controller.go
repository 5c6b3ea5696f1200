// Package pipeline coordinates the classification run: batch fan-out under
// a concurrency bound, split-retry of failed batches, progressive
// persistence, and final aggregation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/a-marczewski/goalsift/internal/batch"
	"github.com/a-marczewski/goalsift/internal/classify"
	"github.com/a-marczewski/goalsift/internal/model"
	"github.com/a-marczewski/goalsift/internal/result"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchClassifier is the single-call contract the controller schedules.
// One invocation equals one model call; the controller owns all retries.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, items []model.Item) ([]classify.Result, error)
}

// batchState tracks a batch through its lifecycle. The split retry is a
// single bounded fallback, not recursion; the state value keeps that
// explicit.
type batchState int

const (
	statePending batchState = iota
	stateInFlight
	stateSucceeded
	stateFailed
	stateNeedsReview
)

func (s batchState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateInFlight:
		return "in_flight"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	case stateNeedsReview:
		return "needs_review"
	default:
		return "unknown"
	}
}

// Options carries the tunables for one run.
type Options struct {
	ConfidenceThreshold  float64
	BatchSize            int
	MaxConcurrentBatches int
	InterimSaveEvery     int
	FirstRetryBackoff    time.Duration
	SecondRetryBackoff   time.Duration
	RequestTimeout       time.Duration
}

// Controller runs batches through a classifier under bounded parallelism.
type Controller struct {
	classifier BatchClassifier
	writer     *result.Writer
	logger     *zap.Logger
	opts       Options
}

// New creates a controller. The writer receives both interim snapshots and
// the final artifact.
func New(classifier BatchClassifier, writer *result.Writer, logger *zap.Logger, opts Options) *Controller {
	return &Controller{
		classifier: classifier,
		writer:     writer,
		logger:     logger,
		opts:       opts,
	}
}

// Outcome is the full result of a run: the persisted artifact plus the
// deduplicated-all view, which keeps every input item including the
// needs-review ones.
type Outcome struct {
	Result   *model.RunResult
	AllItems []model.ClassifiedItem
}

// batchOutcome is what one worker hands back to the coordinator.
type batchOutcome struct {
	index int
	state batchState
	items []model.ClassifiedItem
}

// Eligible returns the items worth classifying: not already past, not
// cancelled. Runs before any batching so past items never reach the model.
func Eligible(items []model.Item, now time.Time) []model.Item {
	today := now.Format("2006-01-02")
	eligible := make([]model.Item, 0, len(items))
	for _, item := range items {
		if item.Status == model.StatusCancelled {
			continue
		}
		if item.StartDate != "" && item.StartDate < today {
			continue
		}
		eligible = append(eligible, item)
	}
	return eligible
}

// Run classifies all items and writes the final artifact. Errors local to
// one batch never abort the run; only a failure writing the final artifact
// is fatal.
func (c *Controller) Run(ctx context.Context, items []model.Item) (*Outcome, error) {
	runID := uuid.NewString()
	startedAt := time.Now()

	eligible := Eligible(items, startedAt)
	skipped := len(items) - len(eligible)

	batches := batch.Split(eligible, c.opts.BatchSize)

	c.logger.Info("starting classification run",
		zap.String("run_id", runID),
		zap.Int("items", len(items)),
		zap.Int("eligible", len(eligible)),
		zap.Int("skipped", skipped),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", c.opts.BatchSize),
		zap.Int("max_concurrent", c.opts.MaxConcurrentBatches),
		zap.Float64("confidence_threshold", c.opts.ConfidenceThreshold),
		zap.String("output", c.writer.Path()))

	// All batches are scheduled eagerly; the semaphore, not a queue,
	// provides backpressure.
	sem := make(chan struct{}, c.opts.MaxConcurrentBatches)
	outcomes := make(chan batchOutcome, len(batches))

	for i, b := range batches {
		go func(index int, items []model.Item) {
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes <- c.processBatch(ctx, index, len(batches), items)
		}(i, b)
	}

	var all []model.ClassifiedItem
	completed := 0
	succeeded := 0

	for range batches {
		outcome := <-outcomes
		completed++
		if outcome.state == stateSucceeded {
			succeeded++
		}
		all = append(all, outcome.items...)

		c.logger.Info("batch finished",
			zap.Int("batch", outcome.index+1),
			zap.Int("of", len(batches)),
			zap.String("state", outcome.state.String()),
			zap.Int("completed", completed))

		if c.opts.InterimSaveEvery > 0 && completed%c.opts.InterimSaveEvery == 0 && completed < len(batches) {
			c.saveInterim(runID, all, len(items), completed, succeeded, len(batches), startedAt)
		}
	}

	deduped := result.Deduplicate(all)
	kept := result.Kept(deduped, c.opts.ConfidenceThreshold)
	exported := result.Exported(deduped, c.opts.ConfidenceThreshold)
	result.Sort(deduped)
	result.Sort(exported)

	final := &model.RunResult{
		FilteredItems: exported,
		Metadata: model.RunMetadata{
			RunID:                runID,
			TotalItemsProcessed:  len(items),
			ItemsRetained:        len(kept),
			FilteringDate:        time.Now().Format(time.RFC3339),
			ConfidenceThreshold:  c.opts.ConfidenceThreshold,
			BatchSize:            c.opts.BatchSize,
			MaxConcurrentBatches: c.opts.MaxConcurrentBatches,
			TotalBatches:         len(batches),
			BatchesProcessed:     len(batches),
			SuccessfulBatches:    succeeded,
		},
	}

	if err := c.writer.Save(final); err != nil {
		return nil, fmt.Errorf("failed to write final results: %w", err)
	}

	percentage := 0.0
	if len(items) > 0 {
		percentage = float64(len(kept)) / float64(len(items)) * 100
	}
	c.logger.Info("classification run complete",
		zap.String("run_id", runID),
		zap.Int("retained", len(kept)),
		zap.Int("processed", len(items)),
		zap.String("percentage", fmt.Sprintf("%.1f%%", percentage)),
		zap.Int("batches_succeeded", succeeded),
		zap.Int("batches_total", len(batches)),
		zap.Duration("elapsed", time.Since(startedAt)),
		zap.String("output", c.writer.Path()))

	return &Outcome{Result: final, AllItems: deduped}, nil
}

// processBatch runs one batch to a terminal state. On failure the batch is
// bisected and each half gets exactly one more attempt after a fixed
// backoff; a half that fails again flags its items for manual review. A
// single-item batch skips the split. Runs entirely inside the worker's
// semaphore slot, so the concurrency bound covers retries too.
func (c *Controller) processBatch(ctx context.Context, index, total int, items []model.Item) batchOutcome {
	results, err := c.classifyOnce(ctx, items)
	if err == nil {
		return batchOutcome{index: index, state: stateSucceeded, items: toClassified(results)}
	}

	c.logger.Warn("batch classification failed",
		zap.Int("batch", index+1),
		zap.Int("of", total),
		zap.Int("items", len(items)),
		zap.Error(err))

	if len(items) == 1 {
		return batchOutcome{
			index: index,
			state: stateNeedsReview,
			items: reviewFlagged(items, "classification failed and batch cannot be split further"),
		}
	}

	// Single bounded split: two halves, one attempt each, fixed backoffs.
	mid := len(items) / 2
	halves := [][]model.Item{items[:mid], items[mid:]}
	backoffs := []time.Duration{c.opts.FirstRetryBackoff, c.opts.SecondRetryBackoff}

	var collected []model.ClassifiedItem
	recovered := 0
	for h, half := range halves {
		sleepCtx(ctx, backoffs[h])

		c.logger.Info("retrying batch half",
			zap.Int("batch", index+1),
			zap.Int("half", h+1),
			zap.Int("items", len(half)))

		halfResults, halfErr := c.classifyOnce(ctx, half)
		if halfErr != nil {
			c.logger.Warn("batch half failed, flagging items for review",
				zap.Int("batch", index+1),
				zap.Int("half", h+1),
				zap.Error(halfErr))
			collected = append(collected, reviewFlagged(half, "classification failed after split retry")...)
			continue
		}
		recovered++
		collected = append(collected, toClassified(halfResults)...)
	}

	state := stateNeedsReview
	if recovered == len(halves) {
		state = stateSucceeded
	}
	return batchOutcome{index: index, state: state, items: collected}
}

// classifyOnce is one model call with the per-call timeout applied.
func (c *Controller) classifyOnce(ctx context.Context, items []model.Item) ([]classify.Result, error) {
	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}
	return c.classifier.ClassifyBatch(ctx, items)
}

// saveInterim snapshots the exported view so an interrupted run keeps its
// progress. Failures are logged and swallowed.
func (c *Controller) saveInterim(runID string, all []model.ClassifiedItem, totalItems, completed, succeeded, totalBatches int, startedAt time.Time) {
	deduped := result.Deduplicate(all)
	kept := result.Kept(deduped, c.opts.ConfidenceThreshold)
	exported := result.Exported(deduped, c.opts.ConfidenceThreshold)
	result.Sort(exported)

	interim := &model.RunResult{
		FilteredItems: exported,
		Metadata: model.RunMetadata{
			RunID:                runID,
			TotalItemsProcessed:  totalItems,
			ItemsRetained:        len(kept),
			FilteringDate:        time.Now().Format(time.RFC3339),
			ConfidenceThreshold:  c.opts.ConfidenceThreshold,
			BatchSize:            c.opts.BatchSize,
			MaxConcurrentBatches: c.opts.MaxConcurrentBatches,
			TotalBatches:         totalBatches,
			BatchesProcessed:     completed,
			SuccessfulBatches:    succeeded,
		},
	}

	if err := c.writer.Save(interim); err != nil {
		c.logger.Error("failed to save interim results", zap.Error(err))
		return
	}
	c.logger.Info("saved interim results",
		zap.Int("batches_completed", completed),
		zap.Int("batches_total", totalBatches),
		zap.Int("items_retained", len(kept)),
		zap.Duration("elapsed", time.Since(startedAt)))
}

// toClassified converts classifier results, flagging verdict gaps for
// review so no item ever silently drops out of the output.
func toClassified(results []classify.Result) []model.ClassifiedItem {
	items := make([]model.ClassifiedItem, 0, len(results))
	for _, r := range results {
		ci := model.ClassifiedItem{Item: r.Item, Classification: r.Classification}
		if r.Classification == nil {
			ci.NeedsReview = true
			ci.ReviewReason = "no verdict in model response"
		}
		items = append(items, ci)
	}
	return items
}

// reviewFlagged marks every item in a failed group for manual review.
func reviewFlagged(items []model.Item, reason string) []model.ClassifiedItem {
	flagged := make([]model.ClassifiedItem, 0, len(items))
	for _, item := range items {
		flagged = append(flagged, model.ClassifiedItem{
			Item:         item,
			NeedsReview:  true,
			ReviewReason: reason,
		})
	}
	return flagged
}

// sleepCtx waits for the backoff or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
