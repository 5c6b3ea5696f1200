package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a-marczewski/goalsift/internal/model"
)

// systemPrompt encodes the personal-goals rubric the model classifies
// against. The quality and specificity of this text directly drives
// classification accuracy.
const systemPrompt = `You are an AI assistant helping to filter calendar events and tasks based on life goals and priorities.

# Life Goals Framework
The user has defined their life goals in these categories:

## Foundational Pillars (Maslow's Physiological & Safety Needs):
- Physical Health: Maintaining a healthy body capable of supporting life activities.
- Mental Health: Cultivating emotional stability, resilience, and psychological well-being.
- Financial Stability: Ensuring sufficient resources and security to meet needs and reduce financial stress.

## Core Connections (Maslow's Love & Belonging Needs):
- Healthy Marriage: Building and maintaining a mutually supportive, fulfilling partnership.
- Social Connection: Cultivating meaningful relationships with friends, family, and community.

## Growth & Aspirations (Maslow's Esteem & Self-Actualization Needs):
- Career Progression: Seeking growth, achievement, competence, and satisfaction in professional life.
- Home Ownership: Achieving the goal of owning a home, representing stability, security, and accomplishment.
- Children: Potentially raising a family, representing purpose, nurturing, and long-term fulfillment.

# Current Focus Areas:
1. Financial Stability (primary focus)
2. Career Progression/Job Search (parallel key priority)
3. Physical Health (active area requiring attention)
4. Healthy Marriage (crucial contextually)
5. Mental Health (essential for navigating priorities)

# Eisenhower Matrix Categories:
1. Urgent & Important (Do First): Tasks needing immediate attention that contribute significantly to focus areas
2. Important & Not Urgent (Schedule): Tasks crucial for long-term goals but don't require immediate action
3. Urgent & Not Important (Delegate/Minimize): Tasks demanding attention but not contributing significantly to core goals
4. Not Urgent & Not Important (Delete/Defer): Tasks that are distractions or low value

You'll be given a batch of items and asked to classify each one. For each item, determine:
1. Whether to keep it in the filtered output (keep)
2. Which life goal categories it aligns with (goal_alignment)
3. Which current focus areas it aligns with (focus_area_alignment)
4. Where it falls in the Eisenhower Matrix (eisenhower_category)
5. Your confidence in this classification (confidence_score)
6. Your reasoning for this classification (reasoning)

Respond with JSON following the exact structure provided in the user's request.`

// batchSchema is spelled out verbatim in the user prompt; an explicit
// schema makes the model far more likely to emit parseable JSON.
const batchSchema = `{
  "classifications": [
    {
      "item_id": "string",
      "keep": true,
      "goal_alignment": ["string"],
      "focus_area_alignment": ["string"],
      "eisenhower_category": "string",
      "confidence_score": 0.95,
      "reasoning": "string"
    }
  ]
}`

// buildUserPrompt renders one batch of items plus the output-schema
// instructions.
func buildUserPrompt(items []model.Item) (string, error) {
	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch items: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Based on the batch of items below, classify each item according to the criteria you were given.\n\n")
	sb.WriteString("# Items to Classify:\n")
	sb.Write(itemsJSON)
	sb.WriteString("\n\nYou MUST respond with valid JSON that precisely follows this schema without any additional text before or after:\n")
	sb.WriteString(batchSchema)
	sb.WriteString("\n\nEach entry in the classifications array must correspond to an item in the input, in the same order.\n")
	sb.WriteString("Each classification must include the item_id field to match it with the original item.\n")
	return sb.String(), nil
}
