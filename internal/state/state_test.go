package state

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewManager(filepath.Join(t.TempDir(), "state.json"), logger)
}

func TestLastProcessedDateMissingFile(t *testing.T) {
	m := newTestManager(t)
	assert.Empty(t, m.LastProcessedDate())
}

func TestSaveThenLoadStepsBackOneDay(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Save("2025-03-07"))
	// The final day of a run may be incomplete, so resume one day earlier.
	assert.Equal(t, "2025-03-06", m.LastProcessedDate())
}

func TestLastProcessedDateCorruptFile(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.WriteFile(m.path, []byte("{not json"), 0o644))
	assert.Empty(t, m.LastProcessedDate())
}

func TestLastProcessedDateInvalidDate(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.WriteFile(m.path, []byte(`{"last_processed_date":"07.03.2025"}`), 0o644))
	assert.Empty(t, m.LastProcessedDate())
}

func TestLastProcessedDateEmptyValue(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.WriteFile(m.path, []byte(`{"last_processed_date":""}`), 0o644))
	assert.Empty(t, m.LastProcessedDate())
}

func TestSaveOverwrites(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Save("2025-03-07"))
	require.NoError(t, m.Save("2025-04-01"))
	assert.Equal(t, "2025-03-31", m.LastProcessedDate())
}
