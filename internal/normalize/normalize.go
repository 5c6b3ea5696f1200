// Package normalize maps heterogeneous raw source records onto the flat
// Item shape the pipeline works with. Two source shapes are understood:
// calendar events (Google-style start/end objects) and task-manager tasks
// (Todoist-style content/due fields).
package normalize

import (
	"errors"
	"strings"

	"github.com/a-marczewski/goalsift/internal/model"
)

// ErrMissingID marks a raw record with no usable identity. Such records
// are dropped with a warning by callers, never fatal to the run.
var ErrMissingID = errors.New("raw record has no id")

// RawDateTime is a calendar date/time: either a plain date (all-day) or an
// RFC3339 dateTime.
type RawDateTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// dateOnly reduces the value to a YYYY-MM-DD string, empty if absent.
func (r *RawDateTime) dateOnly() string {
	if r == nil {
		return ""
	}
	if r.Date != "" {
		return r.Date
	}
	if r.DateTime != "" {
		if idx := strings.IndexByte(r.DateTime, 'T'); idx > 0 {
			return r.DateTime[:idx]
		}
		return r.DateTime
	}
	return ""
}

// RawEvent is a calendar event as exported by the calendar API client.
type RawEvent struct {
	ID          string       `json:"id"`
	Summary     string       `json:"summary"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status,omitempty"`
	Start       *RawDateTime `json:"start,omitempty"`
	End         *RawDateTime `json:"end,omitempty"`
}

// RawDue is a task due date.
type RawDue struct {
	Date string `json:"date,omitempty"`
}

// RawTask is a task as exported by the task-management API client.
type RawTask struct {
	ID          string  `json:"id"`
	Content     string  `json:"content"`
	Description string  `json:"description,omitempty"`
	IsCompleted bool    `json:"is_completed,omitempty"`
	Priority    int     `json:"priority,omitempty"`
	Due         *RawDue `json:"due,omitempty"`
}

// Event normalizes one calendar event. All-day is inferred from the start
// carrying a plain date, matching how the calendar API reports it.
func Event(raw RawEvent, calendarName string) (model.Item, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return model.Item{}, ErrMissingID
	}

	status := raw.Status
	if status == "" {
		status = model.StatusConfirmed
	}

	item := model.Item{
		ID:               raw.ID,
		Title:            raw.Summary,
		Description:      raw.Description,
		StartDate:        raw.Start.dateOnly(),
		EndDate:          raw.End.dateOnly(),
		IsAllDay:         raw.Start != nil && raw.Start.Date != "",
		Status:           status,
		SourceCollection: calendarName,
	}
	return item, nil
}

// Task normalizes one task. Completed tasks map to cancelled so the
// eligibility filter treats them like cancelled events; a due date becomes
// the start date and tasks are treated as all-day.
func Task(raw RawTask, projectName string) (model.Item, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return model.Item{}, ErrMissingID
	}

	status := model.StatusConfirmed
	if raw.IsCompleted {
		status = model.StatusCancelled
	}

	item := model.Item{
		ID:               raw.ID,
		Title:            raw.Content,
		Description:      raw.Description,
		IsAllDay:         true,
		Status:           status,
		SourceCollection: projectName,
	}
	if raw.Due != nil {
		item.StartDate = raw.Due.Date
	}
	return item, nil
}
