package etl

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreiv/feedbase/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func tsv(pairs ...[2]string) []byte {
	var data []byte
	for _, p := range pairs {
		data = append(data, p[0]...)
		data = append(data, '\t')
		data = append(data, p[1]...)
		data = append(data, '\n')
	}
	return data
}

func addReport(t *testing.T, s store.Store, country string, at time.Time, pairs ...[2]string) {
	t.Helper()
	_, err := s.AddRawReport(context.Background(), country, tsv(pairs...), at)
	require.NoError(t, err)
}

func serverFact(t *testing.T, s store.Store, serverID int64, key string) string {
	t.Helper()
	fact, err := s.GetServerFact(context.Background(), serverID, key)
	require.NoError(t, err)
	require.NotNil(t, fact, "fact %s missing for server %d", key, serverID)
	return fact.Value
}

func TestProcessRawReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jan5 := time.Date(2022, 1, 5, 10, 0, 0, 0, time.UTC)
	jan9 := time.Date(2022, 1, 9, 15, 0, 0, 0, time.UTC)

	addReport(t, s, "US", jan5,
		[2]string{"FEEDBACK_SERVER_UID", "server-a"},
		[2]string{"VERSION", "10.6.12"},
	)
	addReport(t, s, "DE", jan9,
		[2]string{"FEEDBACK_SERVER_UID", "server-a"},
		[2]string{"VERSION", "10.6.13"},
	)
	addReport(t, s, "FR", jan5,
		[2]string{"FEEDBACK_SERVER_UID", "server-b"},
	)

	require.NoError(t, NewPipeline(s).ProcessRawReports(ctx))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RawReports)
	assert.Equal(t, 2, stats.Servers)
	assert.Equal(t, 3, stats.Uploads)

	serverA, found, err := s.FindServerByFact(ctx, FactUID, "server-a")
	require.NoError(t, err)
	require.True(t, found)

	// Latest report wins for country and last_seen; first_seen keeps the
	// earliest value.
	assert.Equal(t, "DE", serverFact(t, s, serverA, FactCountryCode))
	assert.Equal(t, jan9.Format(time.RFC3339), serverFact(t, s, serverA, FactLastSeen))
	assert.Equal(t, jan5.Format(time.RFC3339), serverFact(t, s, serverA, FactFirstSeen))

	serverB, found, err := s.FindServerByFact(ctx, FactUID, "server-b")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "FR", serverFact(t, s, serverB, FactCountryCode))
}

func TestProcessRawReports_IdentityStable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2022, 1, 5, 10, 0, 0, 0, time.UTC)
	addReport(t, s, "US", at, [2]string{"FEEDBACK_SERVER_UID", "same"})
	require.NoError(t, NewPipeline(s).ProcessRawReports(ctx))

	addReport(t, s, "US", at.Add(48*time.Hour), [2]string{"FEEDBACK_SERVER_UID", "same"})
	require.NoError(t, NewPipeline(s).ProcessRawReports(ctx))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Servers)
	assert.Equal(t, 2, stats.Uploads)
}

func TestProcessRawReports_Discards(t *testing.T) {
	at := time.Date(2022, 1, 5, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		pairs [][2]string
	}{
		{"missing uid", [][2]string{{"VERSION", "10.6.12"}}},
		{"empty uid", [][2]string{{"FEEDBACK_SERVER_UID", ""}}},
		{"opted out", [][2]string{
			{"FEEDBACK_SERVER_UID", "abc"},
			{"FEEDBACK_USER_INFO", "mysql-test"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()

			addReport(t, s, "US", at, tt.pairs...)
			require.NoError(t, NewPipeline(s).ProcessRawReports(ctx))

			stats, err := s.GetStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, stats.RawReports, "discarded report must be retired")
			assert.Equal(t, 0, stats.Servers)
			assert.Equal(t, 0, stats.Uploads)
			assert.Equal(t, 0, stats.DataPoints)
		})
	}
}

func TestProcessRawReports_DataPointsKeepAllValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2022, 1, 5, 10, 0, 0, 0, time.UTC)
	addReport(t, s, "US", at,
		[2]string{"FEEDBACK_SERVER_UID", "abc"},
		[2]string{"Collation_used", "utf8mb4"},
		[2]string{"Collation_used", "latin1"},
	)
	require.NoError(t, NewPipeline(s).ProcessRawReports(ctx))

	rows, err := s.FetchKeyedData(ctx, at.Add(-time.Hour), at.Add(time.Hour), []string{"collation_used"}, true)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "utf8mb4", rows[0].Value)
	assert.Equal(t, "latin1", rows[1].Value)
}

func TestProcessRawReports_SpansMultipleWindows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2022, 1, 1, 0, 30, 0, 0, time.UTC)
	for day := 0; day < 5; day++ {
		addReport(t, s, "US", start.AddDate(0, 0, day),
			[2]string{"FEEDBACK_SERVER_UID", "abc"})
	}
	require.NoError(t, NewPipeline(s).ProcessRawReports(ctx))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RawReports)
	assert.Equal(t, 5, stats.Uploads)
}
