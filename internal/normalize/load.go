package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/a-marczewski/goalsift/internal/model"
	"go.uber.org/zap"
)

// exportFile is the pre-fetched export the API clients write: events keyed
// by calendar name, or tasks keyed by project name. A file may carry both.
type exportFile struct {
	Calendars map[string][]RawEvent `json:"calendars,omitempty"`
	Projects  map[string][]RawTask  `json:"projects,omitempty"`
}

// Load reads a pre-fetched export and normalizes every record in it.
// Records without an identity are dropped with a warning; everything else
// tolerates missing optional fields.
func Load(r io.Reader, logger *zap.Logger) ([]model.Item, error) {
	var export exportFile
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode export file: %w", err)
	}
	if len(export.Calendars) == 0 && len(export.Projects) == 0 {
		return nil, fmt.Errorf("export file contains no calendars or projects")
	}

	var items []model.Item

	// Iterate collections in name order so batch composition is stable
	// from run to run.
	for _, calendarName := range sortedKeys(export.Calendars) {
		for _, raw := range export.Calendars[calendarName] {
			item, err := Event(raw, calendarName)
			if err != nil {
				if errors.Is(err, ErrMissingID) {
					logger.Warn("dropping event without id",
						zap.String("calendar", calendarName),
						zap.String("summary", raw.Summary))
					continue
				}
				return nil, err
			}
			items = append(items, item)
		}
	}

	for _, projectName := range sortedKeys(export.Projects) {
		for _, raw := range export.Projects[projectName] {
			item, err := Task(raw, projectName)
			if err != nil {
				if errors.Is(err, ErrMissingID) {
					logger.Warn("dropping task without id",
						zap.String("project", projectName),
						zap.String("content", raw.Content))
					continue
				}
				return nil, err
			}
			items = append(items, item)
		}
	}

	return items, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
