package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerlytics/energis-extractor/internal/models"
)

// memorySink collects rows under a lock, mirroring the serialization
// contract real sinks provide.
type memorySink struct {
	mu   sync.Mutex
	rows []models.Row
}

func (s *memorySink) Write(row models.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *memorySink) Finalize() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		day := fmt.Sprintf("2025-01-%02d", i+1)
		chunks[i] = models.Chunk{Start: day, End: day}
	}
	return chunks
}

func rowsResponse(count int) string {
	body := "<response>"
	for i := 0; i < count; i++ {
		body += fmt.Sprintf(
			"<responseData><uzel>%d</uzel><hodnota>%d.5</hodnota><cas>06.03.2025</cas></responseData>",
			7090001+i, i,
		)
	}
	return body + "</response>"
}

func newTestCoordinator(t *testing.T, url string, maxConcurrent int) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(http.DefaultClient, testLogger(), Config{
		Username:      "user",
		DataURL:       url,
		Dataset:       models.DatasetExport,
		Granularity:   models.Day,
		Nodes:         []int{7090001},
		MaxConcurrent: maxConcurrent,
	})
	require.NoError(t, err)
	return c
}

func TestRunRespectsConcurrencyBound(t *testing.T) {
	var inFlight, peak int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)
		for {
			old := atomic.LoadInt64(&peak)
			if current <= old || atomic.CompareAndSwapInt64(&peak, old, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, rowsResponse(2))
	}))
	defer srv.Close()

	c := newTestCoordinator(t, srv.URL, 4)
	out := &memorySink{}

	total, err := c.Run(context.Background(), testChunks(10), "key", out)
	require.NoError(t, err)

	assert.Equal(t, 20, total, "total rows must equal the sum across all chunk responses")
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(4), "no more than 4 fetches may be outstanding")

	count, err := out.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestRunEmptyChunkListIsNoOp(t *testing.T) {
	c := newTestCoordinator(t, "http://unused.invalid", 4)

	total, err := c.Run(context.Background(), nil, "key", &memorySink{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRunFailsFastOnFault(t *testing.T) {
	var requests int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "<faultstring>Neplatný klíč.</faultstring>")
			return
		}
		fmt.Fprint(w, rowsResponse(1))
	}))
	defer srv.Close()

	c := newTestCoordinator(t, srv.URL, 1)
	out := &memorySink{}

	_, err := c.Run(context.Background(), testChunks(10), "key", out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataRequest)
	assert.Contains(t, err.Error(), "Neplatný klíč.")

	// Fail-fast: rows from chunks that completed before the failure stay
	// in the sink.
	count, ferr := out.Finalize()
	require.NoError(t, ferr)
	assert.Equal(t, 2, count)
}

func TestRunCancelledMidRunReportsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var served int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&served, 1) > 2 {
			// The server only watches for client disconnect (which cancels
			// r.Context()) once the request body has been consumed.
			io.Copy(io.Discard, r.Body)
			cancel()
			<-r.Context().Done()
			return
		}
		fmt.Fprint(w, rowsResponse(1))
	}))
	defer srv.Close()

	c := newTestCoordinator(t, srv.URL, 2)
	out := &memorySink{}

	// Chunks that never ran mean the range was not fully fetched; the run
	// must not look like a success.
	_, err := c.Run(ctx, testChunks(10), "key", out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTransportErrorWithoutFaultBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestCoordinator(t, srv.URL, 2)

	_, err := c.Run(context.Background(), testChunks(2), "key", &memorySink{})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestRunEmptyChunksAreBenign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<response></response>")
	}))
	defer srv.Close()

	c := newTestCoordinator(t, srv.URL, 4)

	total, err := c.Run(context.Background(), testChunks(5), "key", &memorySink{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestBuildRequestSelectsEnvelope(t *testing.T) {
	c := newTestCoordinator(t, "http://unused.invalid", 1)

	body, headers, err := c.buildRequest(models.Chunk{Start: "2025-03-06", End: "2025-03-07"}, "key")
	require.NoError(t, err)
	assert.Contains(t, body, "<cas>030620250000,030720250000</cas>")
	assert.Equal(t, "xexport", headers["SOAPAction"])

	body, headers, err = c.buildRequest(models.Chunk{Period: "d-10"}, "key")
	require.NoError(t, err)
	assert.Contains(t, body, "<cas>d-10</cas>")
	assert.Equal(t, "xexport", headers["SOAPAction"])
}

func TestBuildRequestJournal(t *testing.T) {
	c, err := NewCoordinator(http.DefaultClient, testLogger(), Config{
		Username:    "user",
		DataURL:     "http://unused.invalid",
		Dataset:     models.DatasetJournal,
		Granularity: models.Day,
		Nodes:       []int{1, 2},
		Event:       "alarm",
	})
	require.NoError(t, err)

	body, headers, err := c.buildRequest(models.Chunk{Start: "2025-03-06", End: "2025-03-07"}, "key")
	require.NoError(t, err)
	assert.Contains(t, body, "<ene:xjournal>")
	assert.Contains(t, body, "<udalost>alarm</udalost>")
	assert.NotContains(t, body, "<faze>")
	assert.Equal(t, "xjournal", headers["SOAPAction"])
}
