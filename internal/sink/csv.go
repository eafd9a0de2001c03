package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/enerlytics/energis-extractor/internal/models"
)

// CSVSink writes rows to a CSV file with a header, in the column order the
// dataset defines. Writes are mutex-serialized.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	fields []string
	count  int
}

// NewCSV creates the output file and writes the header row.
func NewCSV(path string, fields []string) (*CSVSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(fields); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &CSVSink{file: file, writer: writer, fields: fields}, nil
}

func (s *CSVSink) Write(row models.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := make([]string, len(s.fields))
	for i, field := range s.fields {
		record[i] = row[field]
	}
	if err := s.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	s.count++
	return nil
}

// Finalize flushes and closes the file, returning the row count (header
// excluded).
func (s *CSVSink) Finalize() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return s.count, fmt.Errorf("failed to flush output: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return s.count, fmt.Errorf("failed to close output: %w", err)
	}
	return s.count, nil
}

// Manifest describes the output table for the downstream loader.
type Manifest struct {
	Destination string   `json:"destination"`
	Incremental bool     `json:"incremental"`
	PrimaryKey  []string `json:"primary_key"`
	Columns     []string `json:"columns"`
}

// WriteManifest writes the table manifest next to the CSV file.
func WriteManifest(csvPath string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(csvPath+".manifest", data, 0o644)
}

// TableName returns the output table name for a dataset and granularity,
// e.g. energis_export_quarter_hour_data.
func TableName(dataset models.Dataset, g models.Granularity) string {
	return fmt.Sprintf("energis_%s_%s_data", dataset, g.FileSuffix())
}

var _ Sink = (*CSVSink)(nil)
