package result

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/a-marczewski/goalsift/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "out.json")
	w, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Save(&model.RunResult{}))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := NewWriter(path)
	require.NoError(t, err)

	in := &model.RunResult{
		FilteredItems: []model.ClassifiedItem{
			classified("a", "2025-05-01", true, 0.9, model.CategoryUrgentImportant),
		},
		Metadata: model.RunMetadata{RunID: "run-1", ItemsRetained: 1},
	}
	require.NoError(t, w.Save(in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out model.RunResult
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "run-1", out.Metadata.RunID)
	require.Len(t, out.FilteredItems, 1)
	assert.Equal(t, "a", out.FilteredItems[0].ID)
	assert.Equal(t, 0.9, out.FilteredItems[0].Confidence())
}

func TestWriterLeavesNoTempResidue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Save(&model.RunResult{}))
	require.NoError(t, w.Save(&model.RunResult{})) // overwrite path

	_, err = os.Stat(path + ".temp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriterResolvesRelativePath(t *testing.T) {
	w, err := NewWriter("out.json")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(w.Path()))
}
