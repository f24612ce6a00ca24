package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreiv/feedbase/internal/config"
	"github.com/andreiv/feedbase/internal/scheduler"
	"github.com/andreiv/feedbase/internal/store"
	"github.com/andreiv/feedbase/pkg/chart"
	"github.com/andreiv/feedbase/pkg/etl"
	"github.com/andreiv/feedbase/pkg/extract"
	"github.com/andreiv/feedbase/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func openStore() (*config.Config, store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, db, nil
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return t.UTC(), nil
}

func runProcess() error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	return etl.NewPipeline(db).ProcessRawReports(context.Background())
}

func runServerFacts(startArg, endArg string, workers int) error {
	start, err := parseDate(startArg)
	if err != nil {
		return err
	}
	end, err := parseDate(endArg)
	if err != nil {
		return err
	}

	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if workers <= 0 {
		workers = cfg.ETL.Workers
	}

	engine := etl.NewEngine(db)
	extractors := extract.DefaultRegistry().ServerExtractors()
	return etl.ShardWindow(context.Background(), start, end, workers,
		func(ctx context.Context, ws, we time.Time, inclusive bool) error {
			return engine.ExtractServerFacts(ctx, ws, we, extractors, inclusive)
		})
}

func runUploadFacts(startArg, endArg string, workers int) error {
	start, err := parseDate(startArg)
	if err != nil {
		return err
	}
	end, err := parseDate(endArg)
	if err != nil {
		return err
	}

	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if workers <= 0 {
		workers = cfg.ETL.Workers
	}

	engine := etl.NewEngine(db)
	extractors := extract.DefaultRegistry().UploadExtractors()
	return etl.ShardWindow(context.Background(), start, end, workers,
		func(ctx context.Context, ws, we time.Time, inclusive bool) error {
			return engine.ExtractUploadFacts(ctx, ws, we, extractors, inclusive)
		})
}

func runCharts(chartID string, recreate bool) error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := chart.NewEngine(db)
	ctx := context.Background()

	if chartID == "all" {
		err = engine.ComputeAll(ctx, recreate)
	} else {
		err = engine.Compute(ctx, chartID, recreate)
	}
	if errors.Is(err, chart.ErrNoUploads) || errors.Is(err, chart.ErrUnknownChart) {
		return err
	}
	if err != nil {
		return fmt.Errorf("compute charts: %w", err)
	}
	return nil
}

func runServe(port int) error {
	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if port == 0 {
		port = cfg.Server.Port
	}
	return server.New(db, port).ListenAndServe()
}

func runDaemon(port int) error {
	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, extract.DefaultRegistry(), cfg.ETL.Workers,
		cfg.Schedule.ParseProcessInterval(),
		cfg.Schedule.ParseFactsInterval(),
		cfg.Schedule.ParseChartsInterval(),
	)

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return server.New(db, port).ListenAndServe()
}
