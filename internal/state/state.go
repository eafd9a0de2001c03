// Package state persists the last processed date between runs so
// incremental extractions can resume where the previous one stopped.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// Manager reads and writes the run state file.
type Manager struct {
	path   string
	logger *logrus.Logger
}

type fileState struct {
	LastProcessedDate string `json:"last_processed_date"`
}

// NewManager returns a manager for the state file at path.
func NewManager(path string, logger *logrus.Logger) *Manager {
	return &Manager{path: path, logger: logger}
}

// LastProcessedDate returns the stored date adjusted back by one day, so
// the next run re-fetches the possibly incomplete final day of the last
// one. Returns "" when there is no usable state, which starts a fresh run.
func (m *Manager) LastProcessedDate() string {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.WithError(err).Warn("failed to read state file, starting fresh")
		}
		return ""
	}

	var s fileState
	if err := json.Unmarshal(data, &s); err != nil {
		m.logger.Warn("state file is corrupted, resetting state")
		return ""
	}
	if s.LastProcessedDate == "" {
		return ""
	}

	last, err := time.Parse(dateLayout, s.LastProcessedDate)
	if err != nil {
		m.logger.WithField("value", s.LastProcessedDate).Warn("invalid date format in state file")
		return ""
	}
	return last.AddDate(0, 0, -1).Format(dateLayout)
}

// Save stores lastDate as the last processed date.
func (m *Manager) Save(lastDate string) error {
	data, err := json.Marshal(fileState{LastProcessedDate: lastDate})
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save state file: %w", err)
	}
	m.logger.WithField("last_processed_date", lastDate).Info("saved last processed date")
	return nil
}
