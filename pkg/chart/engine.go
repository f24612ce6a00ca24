package chart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andreiv/feedbase/internal/store"
)

var (
	// ErrNoUploads means there is no data at all to chart. Distinct from
	// a chart simply having no new data since its last computation.
	ErrNoUploads = errors.New("no uploads, can not compute charts")

	// ErrUnknownChart reports a chart id no definition exists for.
	ErrUnknownChart = errors.New("unknown chart id")
)

// FetchFunc computes the new per-series data for one chart over a window.
type FetchFunc func(ctx context.Context, s store.Store, w store.ChartWindow) (Values, error)

// Definition describes one chart: its stable id, display title and the
// grouped-count query feeding it.
type Definition struct {
	ID    string
	Title string
	Fetch FetchFunc
}

// Definitions returns the built-in charts in computation order.
func Definitions() []Definition {
	return []Definition{
		{
			ID:    "server-count",
			Title: "Server Count by Month",
			Fetch: fetchServerCount,
		},
		{
			ID:    "feature-count",
			Title: "Feature Count by Month",
			Fetch: fetchFeatureCounts,
		},
		{
			ID:    "version-breakdown",
			Title: "Server Version Breakdown by Month",
			Fetch: fetchVersionBreakdown,
		},
		{
			ID:    "architecture-breakdown",
			Title: "Architecture Breakdown by Month",
			Fetch: fetchArchitectureBreakdown,
		},
	}
}

func fetchServerCount(ctx context.Context, s store.Store, w store.ChartWindow) (Values, error) {
	counts, err := s.ServerCountByMonth(ctx, w)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return Values{}, nil
	}
	series := Series{}
	for _, c := range counts {
		series.X = append(series.X, c.Period)
		series.Y = append(series.Y, c.Count)
	}
	return Values{"servers": series}, nil
}

// groupSeries folds grouped-count rows (sorted by period, then series
// name) into per-series values; each series keeps its periods ascending.
func groupSeries(counts []store.MonthCount) Values {
	values := make(Values)
	for _, c := range counts {
		series := values[c.Series]
		series.X = append(series.X, c.Period)
		series.Y = append(series.Y, c.Count)
		values[c.Series] = series
	}
	return values
}

func fetchFeatureCounts(ctx context.Context, s store.Store, w store.ChartWindow) (Values, error) {
	counts, err := s.FeatureCountsByMonth(ctx, w)
	if err != nil {
		return nil, err
	}
	return groupSeries(counts), nil
}

func fetchVersionBreakdown(ctx context.Context, s store.Store, w store.ChartWindow) (Values, error) {
	counts, err := s.VersionBreakdownByMonth(ctx, w)
	if err != nil {
		return nil, err
	}
	return groupSeries(counts), nil
}

func fetchArchitectureBreakdown(ctx context.Context, s store.Store, w store.ChartWindow) (Values, error) {
	counts, err := s.ArchitectureBreakdownByMonth(ctx, w)
	if err != nil {
		return nil, err
	}
	return groupSeries(counts), nil
}

// Engine maintains persisted charts incrementally.
type Engine struct {
	store store.Store
	defs  []Definition
	byID  map[string]Definition
}

func NewEngine(s store.Store) *Engine {
	defs := Definitions()
	byID := make(map[string]Definition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}
	return &Engine{store: s, defs: defs, byID: byID}
}

// ComputeAll computes every built-in chart.
func (e *Engine) ComputeAll(ctx context.Context, recreate bool) error {
	for _, def := range e.defs {
		if err := e.Compute(ctx, def.ID, recreate); err != nil {
			return err
		}
	}
	return nil
}

// Compute folds new upload data into one chart. With recreate, existing
// values are discarded and the chart is rebuilt from the earliest upload;
// otherwise only data after the chart's computed_end_date is fetched,
// with an open start boundary so nothing is double-counted.
func (e *Engine) Compute(ctx context.Context, id string, recreate bool) error {
	def, ok := e.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChart, id)
	}

	first, last, ok, err := e.store.UploadTimeBounds(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoUploads
	}

	chart, meta, err := e.store.GetChart(ctx, id)
	if err != nil {
		return err
	}
	if chart == nil {
		chart = &store.Chart{ID: id}
		meta = &store.ChartMetadata{ChartID: id}
		recreate = true
	}
	if !recreate && meta.ComputedEndDate == nil {
		recreate = true
	}

	values := Values{}
	var window store.ChartWindow
	if recreate {
		window = store.ChartWindow{Start: first, End: last, StartClosed: true}
		start := first
		meta.ComputedStartDate = &start
	} else {
		if err := json.Unmarshal([]byte(chart.SeriesJSON), &values); err != nil {
			return fmt.Errorf("decode chart %s values: %w", id, err)
		}
		window = store.ChartWindow{Start: *meta.ComputedEndDate, End: last}
	}

	delta, err := def.Fetch(ctx, e.store, window)
	if err != nil {
		return fmt.Errorf("fetch chart %s data: %w", id, err)
	}
	slog.Info("computing chart", "id", id, "recreate", recreate,
		"series", len(delta),
		"from", window.Start.Format(time.RFC3339),
		"to", window.End.Format(time.RFC3339))

	merged := MergeValues(values, delta)
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode chart %s values: %w", id, err)
	}

	chart.Title = def.Title
	chart.SeriesJSON = string(encoded)
	end := last
	meta.ComputedEndDate = &end

	if err := e.store.SaveChart(ctx, *chart, *meta); err != nil {
		return err
	}
	return nil
}
