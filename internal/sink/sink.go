// Package sink persists extracted rows. Implementations serialize their own
// writes: the fetch coordinator calls Write from multiple goroutines.
package sink

import "github.com/enerlytics/energis-extractor/internal/models"

// Sink consumes rows as they are extracted. Write is called many times per
// run, concurrently; Finalize is called once at the end and returns the
// number of rows written.
type Sink interface {
	Write(models.Row) error
	Finalize() (int, error)
}
