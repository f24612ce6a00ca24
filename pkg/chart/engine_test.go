package chart

import (
	"context"
	"encoding/json"
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

func createServers(t *testing.T, s store.Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := range ids {
		id, err := s.CreateServerWithFact(context.Background(), "uid", string(rune('a'+i)))
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func addUpload(t *testing.T, s store.Store, serverID int64, at time.Time) {
	t.Helper()
	_, err := s.CreateUpload(context.Background(), serverID, at)
	require.NoError(t, err)
}

func chartValues(t *testing.T, s store.Store, id string) (Values, *store.ChartMetadata) {
	t.Helper()
	chart, meta, err := s.GetChart(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, chart)
	values := Values{}
	require.NoError(t, json.Unmarshal([]byte(chart.SeriesJSON), &values))
	return values, meta
}

func TestCompute_NoUploads(t *testing.T) {
	s := newTestStore(t)

	err := NewEngine(s).Compute(context.Background(), "server-count", false)
	assert.ErrorIs(t, err, ErrNoUploads)
}

func TestCompute_UnknownChart(t *testing.T) {
	s := newTestStore(t)

	err := NewEngine(s).Compute(context.Background(), "nope", false)
	assert.ErrorIs(t, err, ErrUnknownChart)
}

func TestCompute_ServerCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	servers := createServers(t, s, 4)

	day := func(month, d int) time.Time {
		return time.Date(2022, time.Month(month), d, 10, 0, 0, 0, time.UTC)
	}

	// January: three servers. February: all four. March: one.
	for _, id := range servers[:3] {
		addUpload(t, s, id, day(1, 5))
	}
	for _, id := range servers {
		addUpload(t, s, id, day(2, 10))
	}
	addUpload(t, s, servers[0], day(3, 10))

	engine := NewEngine(s)
	require.NoError(t, engine.Compute(ctx, "server-count", false))

	values, meta := chartValues(t, s, "server-count")
	assert.Equal(t, Series{
		X: []string{"2022-01", "2022-02", "2022-03"},
		Y: []int{3, 4, 1},
	}, values["servers"])
	require.NotNil(t, meta.ComputedStartDate)
	assert.True(t, meta.ComputedStartDate.Equal(day(1, 5)))
	require.NotNil(t, meta.ComputedEndDate)
	assert.True(t, meta.ComputedEndDate.Equal(day(3, 10)))

	// New uploads after the high-water mark: one more server in March
	// (coalesces into the boundary month) and one in April (appends).
	addUpload(t, s, servers[1], day(3, 20))
	addUpload(t, s, servers[2], day(4, 5))
	require.NoError(t, engine.Compute(ctx, "server-count", false))

	values, meta = chartValues(t, s, "server-count")
	assert.Equal(t, Series{
		X: []string{"2022-01", "2022-02", "2022-03", "2022-04"},
		Y: []int{3, 4, 2, 1},
	}, values["servers"])
	assert.True(t, meta.ComputedEndDate.Equal(day(4, 5)))

	// No new data: recomputing leaves the chart unchanged.
	require.NoError(t, engine.Compute(ctx, "server-count", false))
	values, _ = chartValues(t, s, "server-count")
	assert.Equal(t, []int{3, 4, 2, 1}, values["servers"].Y)

	// Recreation from scratch produces the same totals, not doubles.
	require.NoError(t, engine.Compute(ctx, "server-count", true))
	values, meta = chartValues(t, s, "server-count")
	assert.Equal(t, Series{
		X: []string{"2022-01", "2022-02", "2022-03", "2022-04"},
		Y: []int{3, 4, 2, 1},
	}, values["servers"])
	assert.True(t, meta.ComputedStartDate.Equal(day(1, 5)))
}

func TestCompute_VersionBreakdown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	servers := createServers(t, s, 2)

	at := time.Date(2022, 1, 5, 10, 0, 0, 0, time.UTC)
	for i, id := range servers {
		uploadID, err := s.CreateUpload(ctx, id, at.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		minor := "6"
		if i == 1 {
			minor = "5"
		}
		require.NoError(t, s.ApplyUploadFactBatch(ctx, []store.UploadFact{
			{UploadID: uploadID, Key: "server_version_major", Value: "10"},
			{UploadID: uploadID, Key: "server_version_minor", Value: minor},
		}, nil))
	}

	require.NoError(t, NewEngine(s).Compute(ctx, "version-breakdown", false))

	values, _ := chartValues(t, s, "version-breakdown")
	assert.Equal(t, Series{X: []string{"2022-01"}, Y: []int{1}}, values["10.6"])
	assert.Equal(t, Series{X: []string{"2022-01"}, Y: []int{1}}, values["10.5"])
}

func TestComputeAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	servers := createServers(t, s, 1)
	addUpload(t, s, servers[0], time.Date(2022, 1, 5, 10, 0, 0, 0, time.UTC))

	require.NoError(t, NewEngine(s).ComputeAll(ctx, false))

	charts, err := s.ListCharts(ctx)
	require.NoError(t, err)
	assert.Len(t, charts, len(Definitions()))
}
