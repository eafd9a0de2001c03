// Package runner orchestrates one extraction run: resolve the date range,
// plan chunks, authenticate, fetch, and finalize the output.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/enerlytics/energis-extractor/internal/auth"
	"github.com/enerlytics/energis-extractor/internal/chunk"
	"github.com/enerlytics/energis-extractor/internal/config"
	"github.com/enerlytics/energis-extractor/internal/fetch"
	"github.com/enerlytics/energis-extractor/internal/models"
	"github.com/enerlytics/energis-extractor/internal/sink"
	"github.com/enerlytics/energis-extractor/internal/state"
)

// Runner executes extraction runs for one configuration.
type Runner struct {
	cfg    *config.Config
	logger *logrus.Logger
	client fetch.Doer
	state  *state.Manager
}

// New creates a runner. The client is shared between authentication and
// data fetches so both get the same timeout policy.
func New(cfg *config.Config, logger *logrus.Logger, client fetch.Doer) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger,
		client: client,
		state:  state.NewManager(cfg.State.File, logger),
	}
}

// Run performs one extraction. On success it writes the manifest (CSV
// output) and advances the persisted state in incremental mode. An empty
// result is not an error: it skips both.
func (r *Runner) Run(ctx context.Context) error {
	dateFrom, dateTo := r.resolveDates()
	dataset := r.cfg.Dataset()
	granularity := r.cfg.Granularity()

	chunks, err := r.planChunks(granularity, dateFrom, dateTo)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		r.logger.WithFields(logrus.Fields{
			"date_from": dateFrom,
			"date_to":   dateTo,
		}).Info("nothing to fetch for the requested range")
		return nil
	}

	r.logger.WithFields(logrus.Fields{
		"dataset":     string(dataset),
		"granularity": string(granularity),
		"nodes":       len(r.cfg.SyncOptions.Nodes),
		"date_from":   dateFrom,
		"date_to":     dateTo,
		"chunks":      len(chunks),
	}).Info("starting extraction")

	session := auth.NewSession(
		r.client, r.logger,
		r.cfg.Authentication.Username, r.cfg.Authentication.Password,
		r.cfg.Authentication.APIBaseURL, r.cfg.Debug,
	)
	key, err := session.Authenticate(ctx)
	if err != nil {
		return err
	}

	out, csvPath, err := r.buildSink(dataset, granularity)
	if err != nil {
		return err
	}

	coordinator, err := fetch.NewCoordinator(r.client, r.logger, fetch.Config{
		Username:          r.cfg.Authentication.Username,
		DataURL:           r.cfg.Authentication.APIBaseURL + "?data",
		Dataset:           dataset,
		Granularity:       granularity,
		Nodes:             r.cfg.SyncOptions.Nodes,
		Event:             r.cfg.SyncOptions.Event,
		Phase:             r.cfg.SyncOptions.Phase,
		MaxConcurrent:     r.cfg.SyncOptions.MaxConcurrent,
		RequestsPerSecond: r.cfg.SyncOptions.RequestsPerSecond,
		Debug:             r.cfg.Debug,
	})
	if err != nil {
		out.Finalize()
		return err
	}

	_, runErr := coordinator.Run(ctx, chunks, key, out)
	count, finErr := out.Finalize()
	if runErr != nil {
		// Fail-fast: rows already written stay in the sink; the run still
		// counts as failed and no state is advanced.
		r.logger.WithField("rows_written", count).Warn("run failed after partial output")
		return runErr
	}
	if finErr != nil {
		return finErr
	}

	if count == 0 {
		r.logger.Info("no data found")
		return nil
	}
	r.logger.WithField("rows", count).Info("data processing completed")

	if csvPath != "" {
		if err := r.writeManifest(csvPath, dataset, granularity); err != nil {
			return err
		}
	}
	if r.cfg.SyncOptions.Incremental {
		if err := r.state.Save(dateTo); err != nil {
			r.logger.WithError(err).Warn("failed to save state file")
		}
	}
	return nil
}

// resolveDates applies incremental resume: the state manager hands back the
// last processed date already adjusted by -1 day.
func (r *Runner) resolveDates() (string, string) {
	dateFrom := r.cfg.SyncOptions.DateFrom
	if r.cfg.SyncOptions.Incremental {
		if last := r.state.LastProcessedDate(); last != "" {
			dateFrom = last
		}
	}
	return dateFrom, r.cfg.ResolvedDateTo()
}

func (r *Runner) planChunks(g models.Granularity, dateFrom, dateTo string) ([]models.Chunk, error) {
	if r.cfg.SyncOptions.Addressing == config.AddressingPeriod {
		return chunk.PlanPeriods(g, dateFrom, dateTo)
	}
	return chunk.PlanRange(g, len(r.cfg.SyncOptions.Nodes), dateFrom, dateTo)
}

// buildSink returns the configured sink; the second value is the CSV path
// when a manifest should be written next to it.
func (r *Runner) buildSink(dataset models.Dataset, g models.Granularity) (sink.Sink, string, error) {
	fields := dataset.OutputFields()
	if r.cfg.Output.Format == "postgres" {
		s, err := sink.NewPostgres(r.cfg.Output.Postgres.DSN, r.cfg.Output.Postgres.Table, fields)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open postgres sink: %w", err)
		}
		return s, "", nil
	}

	if err := os.MkdirAll(r.cfg.Output.Dir, 0o755); err != nil {
		return nil, "", err
	}
	path := filepath.Join(r.cfg.Output.Dir, sink.TableName(dataset, g)+".csv")
	s, err := sink.NewCSV(path, fields)
	if err != nil {
		return nil, "", err
	}
	return s, path, nil
}

func (r *Runner) writeManifest(csvPath string, dataset models.Dataset, g models.Granularity) error {
	m := sink.Manifest{
		Destination: "out.c-data." + sink.TableName(dataset, g),
		Incremental: true,
		PrimaryKey:  dataset.PrimaryKeys(),
		Columns:     dataset.OutputFields(),
	}
	if err := sink.WriteManifest(csvPath, m); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	r.logger.WithField("file", filepath.Base(csvPath)).Info("manifest created")
	return nil
}
