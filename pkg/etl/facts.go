package etl

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/andreiv/feedbase/internal/store"
	"github.com/andreiv/feedbase/pkg/extract"
)

// Engine computes facts over a time window. Running the same window twice
// with the same extractor set leaves identical fact rows behind.
type Engine struct {
	store store.Store
}

func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// gather fetches the data points the extractors need and groups them into
// the server → upload → key structure, lowercasing keys once here.
func (e *Engine) gather(ctx context.Context, start, end time.Time, keys []string, endInclusive bool) (extract.ServerData, error) {
	rows, err := e.store.FetchKeyedData(ctx, start, end, keys, endInclusive)
	if err != nil {
		return nil, err
	}
	data := make(extract.ServerData)
	for _, row := range rows {
		data.Add(row.ServerID, row.UploadID, strings.ToLower(row.Key), row.Value)
	}
	return data, nil
}

// ExtractServerFacts runs the extractors over the window and upserts the
// merged server facts, one bulk update plus one bulk insert per fact key.
func (e *Engine) ExtractServerFacts(ctx context.Context, start, end time.Time, extractors []extract.ServerFactExtractor, endInclusive bool) error {
	data, err := e.gather(ctx, start, end, extract.RequiredKeys(extractors), endInclusive)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	merged := extract.MergeServerFacts(extractors, data)
	slog.Info("extracted server facts", "servers", len(merged))

	// Regroup by fact key so existing rows can be fetched for exactly
	// the servers that produced a new value for that key.
	byKey := make(map[string]map[int64]string)
	for serverID, facts := range merged {
		for key, value := range facts {
			if byKey[key] == nil {
				byKey[key] = make(map[int64]string)
			}
			byKey[key][serverID] = value
		}
	}

	factKeys := make([]string, 0, len(byKey))
	for key := range byKey {
		factKeys = append(factKeys, key)
	}
	sort.Strings(factKeys)

	for _, key := range factKeys {
		values := byKey[key]
		serverIDs := make([]int64, 0, len(values))
		for serverID := range values {
			serverIDs = append(serverIDs, serverID)
		}
		sort.Slice(serverIDs, func(i, j int) bool { return serverIDs[i] < serverIDs[j] })

		existing, err := e.store.ServerFactsForKey(ctx, key, serverIDs)
		if err != nil {
			return err
		}
		existingByServer := make(map[int64]store.ServerFact, len(existing))
		for _, fact := range existing {
			existingByServer[fact.ServerID] = fact
		}

		var creates, updates []store.ServerFact
		for _, serverID := range serverIDs {
			value := values[serverID]
			if fact, ok := existingByServer[serverID]; ok {
				fact.Value = value
				updates = append(updates, fact)
			} else {
				creates = append(creates, store.ServerFact{
					ServerID: serverID, Key: key, Value: value,
				})
			}
		}
		if err := e.store.ApplyServerFactBatch(ctx, creates, updates); err != nil {
			return fmt.Errorf("persist %s facts: %w", key, err)
		}
	}
	return nil
}

// ExtractUploadFacts runs the extractors over the window and upserts the
// merged upload facts. Existence is checked per (key, upload) pair; the
// writes still go out as one insert batch and one update batch.
func (e *Engine) ExtractUploadFacts(ctx context.Context, start, end time.Time, extractors []extract.UploadFactExtractor, endInclusive bool) error {
	data, err := e.gather(ctx, start, end, extract.RequiredKeys(extractors), endInclusive)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	merged := extract.MergeUploadFacts(extractors, data)
	slog.Info("extracted upload facts", "servers", len(merged))

	var creates, updates []store.UploadFact
	for _, uploads := range merged {
		uploadIDs := make([]int64, 0, len(uploads))
		for uploadID := range uploads {
			uploadIDs = append(uploadIDs, uploadID)
		}
		sort.Slice(uploadIDs, func(i, j int) bool { return uploadIDs[i] < uploadIDs[j] })

		for _, uploadID := range uploadIDs {
			facts := uploads[uploadID]
			keys := make([]string, 0, len(facts))
			for key := range facts {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			for _, key := range keys {
				existing, err := e.store.GetUploadFact(ctx, uploadID, key)
				if err != nil {
					return err
				}
				if existing != nil {
					existing.Value = facts[key]
					updates = append(updates, *existing)
				} else {
					creates = append(creates, store.UploadFact{
						UploadID: uploadID, Key: key, Value: facts[key],
					})
				}
			}
		}
	}

	slog.Info("persisting upload facts", "creating", len(creates), "updating", len(updates))
	if err := e.store.ApplyUploadFactBatch(ctx, creates, updates); err != nil {
		return fmt.Errorf("persist upload facts: %w", err)
	}
	return nil
}
