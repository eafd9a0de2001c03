package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/enerlytics/energis-extractor/internal/models"
)

// batchSize bounds how many rows are buffered before a transactional flush.
const batchSize = 500

// PostgresSink writes rows to a Postgres table in transactional batches.
type PostgresSink struct {
	db     *sql.DB
	table  string
	fields []string
	insert string

	mu    sync.Mutex
	buf   []models.Row
	count int
}

// NewPostgres opens a connection, verifies it, and prepares the sink for
// the given table and column set.
func NewPostgres(connStr, table string, fields []string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresSink{
		db:     db,
		table:  table,
		fields: fields,
		insert: insertStatement(table, fields),
		buf:    make([]models.Row, 0, batchSize),
	}, nil
}

// insertStatement builds the parameterized insert for a table and column
// set, quoting identifiers since both come from configuration.
func insertStatement(table string, fields []string) string {
	cols := make([]string, len(fields))
	params := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = pq.QuoteIdentifier(f)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
}

func (s *PostgresSink) Write(row models.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, row)
	if len(s.buf) >= batchSize {
		return s.flushLocked()
	}
	return nil
}

// flushLocked inserts the buffered rows in one transaction. The operation
// is atomic: either the whole batch lands or none of it.
func (s *PostgresSink) flushLocked() error {
	if len(s.buf) == 0 {
		return nil
	}
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // rollback if not committed

	stmt, err := tx.PrepareContext(ctx, s.insert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range s.buf {
		args := make([]interface{}, len(s.fields))
		for i, field := range s.fields {
			args[i] = row[field]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.count += len(s.buf)
	s.buf = s.buf[:0]
	return nil
}

// Finalize flushes the remaining buffer and closes the connection.
func (s *PostgresSink) Finalize() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(); err != nil {
		s.db.Close()
		return s.count, err
	}
	return s.count, s.db.Close()
}

var _ Sink = (*PostgresSink)(nil)
