package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/andreiv/feedbase/internal/store"
	"github.com/andreiv/feedbase/pkg/chart"
	"github.com/andreiv/feedbase/pkg/etl"
	"github.com/andreiv/feedbase/pkg/extract"
)

// Scheduler drives the periodic batch jobs: raw report ingest, fact
// extraction and chart computation.
type Scheduler struct {
	store       store.Store
	pipeline    *etl.Pipeline
	facts       *etl.Engine
	charts      *chart.Engine
	registry    *extract.Registry
	workers     int
	processInt  time.Duration
	factsInt    time.Duration
	chartsInt   time.Duration
	factsMarker time.Time
}

// New creates a scheduler.
func New(s store.Store, registry *extract.Registry, workers int, processInt, factsInt, chartsInt time.Duration) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if processInt == 0 {
		processInt = 15 * time.Minute
	}
	if factsInt == 0 {
		factsInt = time.Hour
	}
	if chartsInt == 0 {
		chartsInt = 6 * time.Hour
	}
	return &Scheduler{
		store:      s,
		pipeline:   etl.NewPipeline(s),
		facts:      etl.NewEngine(s),
		charts:     chart.NewEngine(s),
		registry:   registry,
		workers:    workers,
		processInt: processInt,
		factsInt:   factsInt,
		chartsInt:  chartsInt,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	processTicker := time.NewTicker(s.processInt)
	factsTicker := time.NewTicker(s.factsInt)
	chartsTicker := time.NewTicker(s.chartsInt)
	defer processTicker.Stop()
	defer factsTicker.Stop()
	defer chartsTicker.Stop()

	slog.Info("scheduler: initial batch run")
	s.process(ctx)
	s.extractFacts(ctx)
	s.computeCharts(ctx)

	slog.Info("scheduler running",
		"process_every", s.processInt,
		"facts_every", s.factsInt,
		"charts_every", s.chartsInt)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return ctx.Err()
		case <-processTicker.C:
			s.process(ctx)
		case <-factsTicker.C:
			s.extractFacts(ctx)
		case <-chartsTicker.C:
			s.computeCharts(ctx)
		}
	}
}

func (s *Scheduler) process(ctx context.Context) {
	if err := s.pipeline.ProcessRawReports(ctx); err != nil {
		slog.Error("raw report processing failed", "error", err)
	}
}

// extractFacts covers uploads since the previous successful run; the
// first run covers the full upload history. Re-covering a boundary is
// harmless because extraction is idempotent.
func (s *Scheduler) extractFacts(ctx context.Context) {
	first, last, ok, err := s.store.UploadTimeBounds(ctx)
	if err != nil {
		slog.Error("upload bounds lookup failed", "error", err)
		return
	}
	if !ok {
		return
	}

	start := s.factsMarker
	if start.IsZero() {
		start = first
	}

	err = etl.ShardWindow(ctx, start, last, s.workers,
		func(ctx context.Context, ws, we time.Time, inclusive bool) error {
			return s.facts.ExtractServerFacts(ctx, ws, we, s.registry.ServerExtractors(), inclusive)
		})
	if err != nil {
		slog.Error("server fact extraction failed", "error", err)
		return
	}
	err = etl.ShardWindow(ctx, start, last, s.workers,
		func(ctx context.Context, ws, we time.Time, inclusive bool) error {
			return s.facts.ExtractUploadFacts(ctx, ws, we, s.registry.UploadExtractors(), inclusive)
		})
	if err != nil {
		slog.Error("upload fact extraction failed", "error", err)
		return
	}
	s.factsMarker = last
}

func (s *Scheduler) computeCharts(ctx context.Context) {
	if err := s.charts.ComputeAll(ctx, false); err != nil {
		if errors.Is(err, chart.ErrNoUploads) {
			slog.Info("no uploads yet, skipping charts")
			return
		}
		slog.Error("chart computation failed", "error", err)
	}
}
