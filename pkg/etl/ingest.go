// Package etl implements the batch pipeline: raw report ingest, fact
// computation over time windows, and window sharding for parallel runs.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andreiv/feedbase/internal/store"
	"github.com/andreiv/feedbase/pkg/report"
)

// Server-level bookkeeping fact keys maintained by the ingest pipeline.
const (
	FactUID         = "uid"
	FactCountryCode = "country_code"
	FactFirstSeen   = "first_seen"
	FactLastSeen    = "last_seen"
)

const ingestWindow = 24 * time.Hour

// Pipeline normalizes raw reports into servers, uploads and data points.
type Pipeline struct {
	store store.Store
}

func NewPipeline(s store.Store) *Pipeline {
	return &Pipeline{store: s}
}

// ProcessRawReports walks every pending raw report in ascending
// upload-time order, in 24-hour windows, and retires each report once its
// side effects are durable.
func (p *Pipeline) ProcessRawReports(ctx context.Context) error {
	first, last, ok, err := p.store.RawReportBounds(ctx)
	if err != nil {
		return fmt.Errorf("raw report bounds: %w", err)
	}
	if !ok {
		slog.Info("no raw reports pending")
		return nil
	}

	// The window query is start-exclusive, so back off one second to
	// include the earliest report.
	start := first.Add(-time.Second)
	slog.Info("processing raw reports",
		"from", first.Format(time.RFC3339), "to", last.Format(time.RFC3339))

	for !start.After(last) {
		end := start.Add(ingestWindow)
		if err := p.processWindow(ctx, start, end); err != nil {
			return err
		}
		start = end
	}

	slog.Info("finished processing raw reports")
	return nil
}

func (p *Pipeline) processWindow(ctx context.Context, start, end time.Time) error {
	reports, err := p.store.ListRawReports(ctx, start, end)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return nil
	}
	slog.Info("processing window",
		"from", start.Format("2006-01-02"), "to", end.Format("2006-01-02"),
		"reports", len(reports))

	for i := range reports {
		if err := p.processReport(ctx, &reports[i]); err != nil {
			return err
		}
	}
	return nil
}

// processReport handles one raw report: parse, discard checks, identity
// resolution, bookkeeping facts and the upload with its data points.
// Every accepted report's side effects are applied in one transaction;
// discarded reports are retired immediately.
func (p *Pipeline) processReport(ctx context.Context, raw *store.RawReport) error {
	rep := report.Parse(raw.Data)

	uid, ok := rep.Get(report.KeyServerUID)
	if !ok || uid == "" {
		slog.Debug("discarding report without server uid", "id", raw.ID)
		return p.store.DeleteRawReport(ctx, raw.ID)
	}
	if info, ok := rep.Get(report.KeyUserInfo); ok && info == report.OptOutMarker {
		slog.Debug("discarding opted-out report", "id", raw.ID)
		return p.store.DeleteRawReport(ctx, raw.ID)
	}

	serverID, found, err := p.store.FindServerByFact(ctx, FactUID, uid)
	if err != nil {
		// A dangling uid fact must abort the batch, never spawn a
		// duplicate server.
		return fmt.Errorf("resolve server identity: %w", err)
	}
	if !found {
		serverID, err = p.store.CreateServerWithFact(ctx, FactUID, uid)
		if err != nil {
			return fmt.Errorf("register server: %w", err)
		}
	}

	batch := store.IngestBatch{
		ServerID:    serverID,
		UploadTime:  raw.UploadTime,
		RawReportID: raw.ID,
	}

	seenAt := raw.UploadTime.UTC().Format(time.RFC3339)
	bookkeeping := []struct {
		key        string
		value      string
		firstWrite bool
	}{
		{FactCountryCode, raw.Country, false},
		{FactLastSeen, seenAt, false},
		{FactFirstSeen, seenAt, true},
	}
	for _, bk := range bookkeeping {
		existing, err := p.store.GetServerFact(ctx, serverID, bk.key)
		if err != nil {
			return fmt.Errorf("lookup %s fact: %w", bk.key, err)
		}
		switch {
		case existing == nil:
			batch.FactCreates = append(batch.FactCreates, store.ServerFact{
				ServerID: serverID, Key: bk.key, Value: bk.value,
			})
		case !bk.firstWrite:
			existing.Value = bk.value
			batch.FactUpdates = append(batch.FactUpdates, *existing)
		}
		// An existing first-write-wins fact is left untouched.
	}

	for _, field := range rep.Fields {
		batch.Points = append(batch.Points, store.DataPoint{
			Key: field.Key, Value: field.Value,
		})
	}

	if err := p.store.ApplyIngest(ctx, batch); err != nil {
		return fmt.Errorf("ingest report %d: %w", raw.ID, err)
	}
	return nil
}
