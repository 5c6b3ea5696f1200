// Package classify turns batches of normalized items into per-item
// classification verdicts via one model call per batch. Retries are the
// caller's job; this package reports failures and moves on.
package classify

import (
	"context"
	"fmt"

	"github.com/a-marczewski/goalsift/internal/llm"
	"github.com/a-marczewski/goalsift/internal/model"
	"go.uber.org/zap"
)

// Result pairs one input item with its verdict. Classification is nil when
// the model returned no matching verdict for the item.
type Result struct {
	Item           model.Item
	Classification *model.Classification
}

// Classifier submits batches to a chat model and parses the verdicts.
type Classifier struct {
	chatter llm.Chatter
	logger  *zap.Logger
}

// New creates a classifier on top of any chat client.
func New(chatter llm.Chatter, logger *zap.Logger) *Classifier {
	return &Classifier{chatter: chatter, logger: logger}
}

// verdict is the wire shape of one classification in the model's reply.
// item_id is the documented key; event_id is accepted for compatibility
// with older exports of the same schema.
type verdict struct {
	ItemID           string   `json:"item_id"`
	EventID          string   `json:"event_id"`
	Keep             bool     `json:"keep"`
	KeepEvent        *bool    `json:"keep_event"`
	GoalAlignment    []string `json:"goal_alignment"`
	FocusAlignment   []string `json:"focus_area_alignment"`
	PriorityCategory string   `json:"eisenhower_category"`
	Confidence       float64  `json:"confidence_score"`
	Reasoning        string   `json:"reasoning"`
}

func (v verdict) id() string {
	if v.ItemID != "" {
		return v.ItemID
	}
	return v.EventID
}

func (v verdict) keep() bool {
	if v.KeepEvent != nil {
		return *v.KeepEvent
	}
	return v.Keep
}

type batchPayload struct {
	Classifications []verdict `json:"classifications"`
}

// ClassifyBatch makes exactly one model call for the batch and matches
// verdicts back to items by id. The returned slice is order-preserving and
// length-matching; items the model skipped get a nil classification. Any
// transport or parse failure fails the whole batch.
func (c *Classifier) ClassifyBatch(ctx context.Context, items []model.Item) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	userPrompt, err := buildUserPrompt(items)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("sending batch to model",
		zap.Int("items", len(items)),
		zap.String("model", c.chatter.GetModel()))

	resp, err := c.chatter.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", ErrMalformedResponse)
	}

	var payload batchPayload
	if err := extractJSON(resp.Choices[0].Message.Content, &payload); err != nil {
		return nil, err
	}

	byID := make(map[string]verdict, len(payload.Classifications))
	for _, v := range payload.Classifications {
		if v.id() == "" {
			continue
		}
		byID[v.id()] = v
	}

	results := make([]Result, 0, len(items))
	matched := 0
	for _, item := range items {
		v, ok := byID[item.ID]
		if !ok {
			c.logger.Warn("no verdict for item in model response",
				zap.String("id", item.ID),
				zap.String("title", item.Title))
			results = append(results, Result{Item: item})
			continue
		}
		matched++
		results = append(results, Result{
			Item:           item,
			Classification: toClassification(v),
		})
	}

	c.logger.Debug("batch classified",
		zap.Int("items", len(items)),
		zap.Int("matched", matched))

	return results, nil
}

func toClassification(v verdict) *model.Classification {
	category := v.PriorityCategory
	if category == "" {
		category = model.CategoryNotUrgentNotImportant
	}
	reasoning := v.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}
	return &model.Classification{
		Keep:             v.keep(),
		GoalAlignment:    v.GoalAlignment,
		FocusAlignment:   v.FocusAlignment,
		PriorityCategory: category,
		Confidence:       clamp01(v.Confidence),
		Reasoning:        reasoning,
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
