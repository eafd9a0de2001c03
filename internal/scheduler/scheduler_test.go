package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestStartRejectsInvalidCronSpec(t *testing.T) {
	s := New(context.Background(), "not a cron spec", func(context.Context) error {
		return nil
	}, testLogger())

	assert.Error(t, s.Start())
}

func TestSchedulerTriggersRuns(t *testing.T) {
	var runs int64
	s := New(context.Background(), "@every 10ms", func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}, testLogger())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
