package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrDanglingFact reports a uid server fact whose server row is missing.
// This is an internal consistency violation and aborts the current batch.
var ErrDanglingFact = errors.New("server fact references a missing server")

// RawReport is an unprocessed diagnostic upload, as handed over by the
// ingestion endpoint. The ingest pipeline owns its deletion.
type RawReport struct {
	ID         int64     `db:"id"`
	Country    string    `db:"country"`
	Data       []byte    `db:"data"`
	UploadTime time.Time `db:"upload_time"`
}

// ServerFact is a derived key/value annotation on a server.
type ServerFact struct {
	ID       int64  `db:"id"`
	ServerID int64  `db:"server_id"`
	Key      string `db:"key"`
	Value    string `db:"value"`
}

// UploadFact is a derived key/value annotation on an upload.
type UploadFact struct {
	ID       int64  `db:"id"`
	UploadID int64  `db:"upload_id"`
	Key      string `db:"key"`
	Value    string `db:"value"`
}

// DataPoint is one raw key/value field of an upload.
type DataPoint struct {
	ID       int64  `db:"id"`
	UploadID int64  `db:"upload_id"`
	Key      string `db:"key"`
	Value    string `db:"value"`
}

// KeyedValue is a data point joined to its owning upload and server,
// as fetched for fact extraction.
type KeyedValue struct {
	ServerID int64  `db:"server_id"`
	UploadID int64  `db:"upload_id"`
	Key      string `db:"key"`
	Value    string `db:"value"`
}

// Chart holds persisted chart values. Series are stored serialized; the
// chart engine owns the encoding.
type Chart struct {
	ID         string `db:"id"`
	Title      string `db:"title"`
	SeriesJSON string `db:"series"`
}

// ChartMetadata is the high-water mark of data already folded into a chart.
type ChartMetadata struct {
	ChartID           string     `db:"chart_id"`
	ComputedStartDate *time.Time `db:"computed_start_date"`
	ComputedEndDate   *time.Time `db:"computed_end_date"`
}

// IngestBatch groups every side effect of one accepted raw report so they
// are applied in a single transaction before the report is retired.
type IngestBatch struct {
	ServerID    int64
	UploadTime  time.Time
	Points      []DataPoint
	FactCreates []ServerFact
	FactUpdates []ServerFact
	RawReportID int64
}

// ChartWindow bounds a chart data query. End is always inclusive; the
// start boundary is closed only on recreation.
type ChartWindow struct {
	Start       time.Time
	End         time.Time
	StartClosed bool
}

// MonthCount is one grouped-count row of a monthly chart query. Series is
// empty for single-series charts.
type MonthCount struct {
	Period string `db:"period"`
	Series string `db:"series"`
	Count  int    `db:"count"`
}

// Stats holds row counts for the reporting API.
type Stats struct {
	RawReports  int `json:"raw_reports"`
	Servers     int `json:"servers"`
	Uploads     int `json:"uploads"`
	DataPoints  int `json:"data_points"`
	ServerFacts int `json:"server_facts"`
	UploadFacts int `json:"upload_facts"`
}

// Store is the persistence interface.
type Store interface {
	AddRawReport(ctx context.Context, country string, data []byte, uploadTime time.Time) (int64, error)
	RawReportBounds(ctx context.Context) (first, last time.Time, ok bool, err error)
	ListRawReports(ctx context.Context, start, end time.Time) ([]RawReport, error)
	DeleteRawReport(ctx context.Context, id int64) error

	FindServerByFact(ctx context.Context, key, value string) (int64, bool, error)
	CreateServerWithFact(ctx context.Context, key, value string) (int64, error)
	GetServerFact(ctx context.Context, serverID int64, key string) (*ServerFact, error)
	ListServerFacts(ctx context.Context, serverID int64) ([]ServerFact, error)
	ServerFactsForKey(ctx context.Context, key string, serverIDs []int64) ([]ServerFact, error)
	ApplyServerFactBatch(ctx context.Context, creates, updates []ServerFact) error

	GetUploadFact(ctx context.Context, uploadID int64, key string) (*UploadFact, error)
	ListUploadFacts(ctx context.Context, uploadID int64) ([]UploadFact, error)
	ApplyUploadFactBatch(ctx context.Context, creates, updates []UploadFact) error

	ApplyIngest(ctx context.Context, batch IngestBatch) error
	CreateUpload(ctx context.Context, serverID int64, uploadTime time.Time) (int64, error)
	UploadTimeBounds(ctx context.Context) (first, last time.Time, ok bool, err error)
	FetchKeyedData(ctx context.Context, start, end time.Time, keys []string, endInclusive bool) ([]KeyedValue, error)

	GetChart(ctx context.Context, id string) (*Chart, *ChartMetadata, error)
	ListCharts(ctx context.Context) ([]Chart, error)
	SaveChart(ctx context.Context, chart Chart, meta ChartMetadata) error
	ServerCountByMonth(ctx context.Context, w ChartWindow) ([]MonthCount, error)
	FeatureCountsByMonth(ctx context.Context, w ChartWindow) ([]MonthCount, error)
	VersionBreakdownByMonth(ctx context.Context, w ChartWindow) ([]MonthCount, error)
	ArchitectureBreakdownByMonth(ctx context.Context, w ChartWindow) ([]MonthCount, error)

	GetStats(ctx context.Context) (Stats, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_time_format=sqlite" +
		"&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AddRawReport(ctx context.Context, country string, data []byte, uploadTime time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_reports (country, data, upload_time) VALUES (?, ?, ?)
	`, country, data, uploadTime.UTC())
	if err != nil {
		return 0, fmt.Errorf("add raw report: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) RawReportBounds(ctx context.Context) (time.Time, time.Time, bool, error) {
	return s.timeBounds(ctx, "raw_reports")
}

func (s *SQLiteStore) UploadTimeBounds(ctx context.Context) (time.Time, time.Time, bool, error) {
	return s.timeBounds(ctx, "uploads")
}

func (s *SQLiteStore) timeBounds(ctx context.Context, table string) (time.Time, time.Time, bool, error) {
	var first, last time.Time
	err := s.db.GetContext(ctx, &first,
		`SELECT upload_time FROM `+table+` ORDER BY upload_time ASC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("first upload time of %s: %w", table, err)
	}
	err = s.db.GetContext(ctx, &last,
		`SELECT upload_time FROM `+table+` ORDER BY upload_time DESC LIMIT 1`)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("last upload time of %s: %w", table, err)
	}
	return first, last, true, nil
}

// ListRawReports returns pending reports with start < upload_time <= end,
// in ascending upload-time order.
func (s *SQLiteStore) ListRawReports(ctx context.Context, start, end time.Time) ([]RawReport, error) {
	var reports []RawReport
	err := s.db.SelectContext(ctx, &reports, `
		SELECT id, country, data, upload_time FROM raw_reports
		WHERE upload_time > ? AND upload_time <= ?
		ORDER BY upload_time ASC, id ASC
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("list raw reports: %w", err)
	}
	return reports, nil
}

func (s *SQLiteStore) DeleteRawReport(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM raw_reports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete raw report %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) FindServerByFact(ctx context.Context, key, value string) (int64, bool, error) {
	var row struct {
		ServerID int64 `db:"server_id"`
		Exists   bool  `db:"server_exists"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT sf.server_id AS server_id, s.id IS NOT NULL AS server_exists
		FROM server_facts sf
		LEFT JOIN servers s ON s.id = sf.server_id
		WHERE sf.key = ? AND sf.value = ?
		LIMIT 1
	`, key, value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find server by fact %s: %w", key, err)
	}
	if !row.Exists {
		return 0, false, fmt.Errorf("fact %s=%s: %w", key, value, ErrDanglingFact)
	}
	return row.ServerID, true, nil
}

// CreateServerWithFact creates a server row and its identity fact in one
// transaction.
func (s *SQLiteStore) CreateServerWithFact(ctx context.Context, key, value string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create server: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO servers DEFAULT VALUES`)
	if err != nil {
		return 0, fmt.Errorf("create server: %w", err)
	}
	serverID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create server id: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO server_facts (server_id, key, value) VALUES (?, ?, ?)`,
		serverID, key, value)
	if err != nil {
		return 0, fmt.Errorf("create %s fact: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create server: %w", err)
	}
	return serverID, nil
}

// GetServerFact returns nil when the fact does not exist.
func (s *SQLiteStore) GetServerFact(ctx context.Context, serverID int64, key string) (*ServerFact, error) {
	var fact ServerFact
	err := s.db.GetContext(ctx, &fact, `
		SELECT id, server_id, key, value FROM server_facts
		WHERE server_id = ? AND key = ?
	`, serverID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get server fact %s: %w", key, err)
	}
	return &fact, nil
}

func (s *SQLiteStore) ListServerFacts(ctx context.Context, serverID int64) ([]ServerFact, error) {
	var facts []ServerFact
	err := s.db.SelectContext(ctx, &facts, `
		SELECT id, server_id, key, value FROM server_facts
		WHERE server_id = ? ORDER BY key
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list server facts: %w", err)
	}
	return facts, nil
}

// ServerFactsForKey returns the existing facts for one key, limited to the
// given servers. At most one row per server comes back because fact upserts
// keep (server, key) unique.
func (s *SQLiteStore) ServerFactsForKey(ctx context.Context, key string, serverIDs []int64) ([]ServerFact, error) {
	if len(serverIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT id, server_id, key, value FROM server_facts
		WHERE key = ? AND server_id IN (?)
	`, key, serverIDs)
	if err != nil {
		return nil, fmt.Errorf("build facts query: %w", err)
	}
	var facts []ServerFact
	if err := s.db.SelectContext(ctx, &facts, query, args...); err != nil {
		return nil, fmt.Errorf("server facts for key %s: %w", key, err)
	}
	return facts, nil
}

func (s *SQLiteStore) ApplyServerFactBatch(ctx context.Context, creates, updates []ServerFact) error {
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin server fact batch: %w", err)
	}
	defer tx.Rollback()

	if len(creates) > 0 {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO server_facts (server_id, key, value)
			VALUES (:server_id, :key, :value)
		`, creates)
		if err != nil {
			return fmt.Errorf("insert server facts: %w", err)
		}
	}
	for _, fact := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE server_facts SET value = ? WHERE id = ?`,
			fact.Value, fact.ID); err != nil {
			return fmt.Errorf("update server fact %d: %w", fact.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit server fact batch: %w", err)
	}
	return nil
}

// GetUploadFact returns nil when the fact does not exist.
func (s *SQLiteStore) GetUploadFact(ctx context.Context, uploadID int64, key string) (*UploadFact, error) {
	var fact UploadFact
	err := s.db.GetContext(ctx, &fact, `
		SELECT id, upload_id, key, value FROM upload_facts
		WHERE upload_id = ? AND key = ?
	`, uploadID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload fact %s: %w", key, err)
	}
	return &fact, nil
}

func (s *SQLiteStore) ListUploadFacts(ctx context.Context, uploadID int64) ([]UploadFact, error) {
	var facts []UploadFact
	err := s.db.SelectContext(ctx, &facts, `
		SELECT id, upload_id, key, value FROM upload_facts
		WHERE upload_id = ? ORDER BY key
	`, uploadID)
	if err != nil {
		return nil, fmt.Errorf("list upload facts: %w", err)
	}
	return facts, nil
}

func (s *SQLiteStore) ApplyUploadFactBatch(ctx context.Context, creates, updates []UploadFact) error {
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upload fact batch: %w", err)
	}
	defer tx.Rollback()

	if len(creates) > 0 {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO upload_facts (upload_id, key, value)
			VALUES (:upload_id, :key, :value)
		`, creates)
		if err != nil {
			return fmt.Errorf("insert upload facts: %w", err)
		}
	}
	for _, fact := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE upload_facts SET value = ? WHERE id = ?`,
			fact.Value, fact.ID); err != nil {
			return fmt.Errorf("update upload fact %d: %w", fact.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upload fact batch: %w", err)
	}
	return nil
}

// ApplyIngest applies every side effect of one accepted raw report and
// retires the report, all in a single transaction.
func (s *SQLiteStore) ApplyIngest(ctx context.Context, batch IngestBatch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	if len(batch.FactCreates) > 0 {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO server_facts (server_id, key, value)
			VALUES (:server_id, :key, :value)
		`, batch.FactCreates)
		if err != nil {
			return fmt.Errorf("insert bookkeeping facts: %w", err)
		}
	}
	for _, fact := range batch.FactUpdates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE server_facts SET value = ? WHERE id = ?`,
			fact.Value, fact.ID); err != nil {
			return fmt.Errorf("update bookkeeping fact %d: %w", fact.ID, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO uploads (upload_time, server_id) VALUES (?, ?)`,
		batch.UploadTime.UTC(), batch.ServerID)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	uploadID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("upload id: %w", err)
	}

	if len(batch.Points) > 0 {
		points := make([]DataPoint, len(batch.Points))
		copy(points, batch.Points)
		for i := range points {
			points[i].UploadID = uploadID
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO data_points (upload_id, key, value)
			VALUES (:upload_id, :key, :value)
		`, points)
		if err != nil {
			return fmt.Errorf("insert data points: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM raw_reports WHERE id = ?`, batch.RawReportID); err != nil {
		return fmt.Errorf("retire raw report %d: %w", batch.RawReportID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateUpload(ctx context.Context, serverID int64, uploadTime time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (upload_time, server_id) VALUES (?, ?)`,
		uploadTime.UTC(), serverID)
	if err != nil {
		return 0, fmt.Errorf("create upload: %w", err)
	}
	return res.LastInsertId()
}

// FetchKeyedData returns data points whose upload falls in the window and
// whose key matches the required set case-insensitively, joined to the
// owning server, in insertion order.
func (s *SQLiteStore) FetchKeyedData(ctx context.Context, start, end time.Time, keys []string, endInclusive bool) ([]KeyedValue, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(keys))
	for i, key := range keys {
		lowered[i] = strings.ToLower(key)
	}
	endOp := "<"
	if endInclusive {
		endOp = "<="
	}
	query, args, err := sqlx.In(`
		SELECT u.server_id AS server_id, d.upload_id AS upload_id,
		       d.key AS key, d.value AS value
		FROM data_points d
		JOIN uploads u ON u.id = d.upload_id
		WHERE u.upload_time >= ? AND u.upload_time `+endOp+` ?
		  AND lower(d.key) IN (?)
		ORDER BY d.id ASC
	`, start.UTC(), end.UTC(), lowered)
	if err != nil {
		return nil, fmt.Errorf("build keyed data query: %w", err)
	}
	var rows []KeyedValue
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch keyed data: %w", err)
	}
	return rows, nil
}

// GetChart returns (nil, nil, nil) when the chart does not exist.
func (s *SQLiteStore) GetChart(ctx context.Context, id string) (*Chart, *ChartMetadata, error) {
	var chart Chart
	err := s.db.GetContext(ctx, &chart,
		`SELECT id, title, series FROM charts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get chart %s: %w", id, err)
	}

	var meta ChartMetadata
	err = s.db.GetContext(ctx, &meta, `
		SELECT chart_id, computed_start_date, computed_end_date
		FROM chart_metadata WHERE chart_id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		meta = ChartMetadata{ChartID: id}
	} else if err != nil {
		return nil, nil, fmt.Errorf("get chart metadata %s: %w", id, err)
	}
	return &chart, &meta, nil
}

func (s *SQLiteStore) ListCharts(ctx context.Context) ([]Chart, error) {
	var charts []Chart
	err := s.db.SelectContext(ctx, &charts,
		`SELECT id, title, series FROM charts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}
	return charts, nil
}

// SaveChart persists chart values and metadata together.
func (s *SQLiteStore) SaveChart(ctx context.Context, chart Chart, meta ChartMetadata) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save chart: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO charts (id, title, series) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, series = excluded.series
	`, chart.ID, chart.Title, chart.SeriesJSON)
	if err != nil {
		return fmt.Errorf("save chart %s: %w", chart.ID, err)
	}

	var start, end any
	if meta.ComputedStartDate != nil {
		start = meta.ComputedStartDate.UTC()
	}
	if meta.ComputedEndDate != nil {
		end = meta.ComputedEndDate.UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chart_metadata (chart_id, computed_start_date, computed_end_date)
		VALUES (?, ?, ?)
		ON CONFLICT(chart_id) DO UPDATE SET
			computed_start_date = excluded.computed_start_date,
			computed_end_date = excluded.computed_end_date
	`, chart.ID, start, end)
	if err != nil {
		return fmt.Errorf("save chart metadata %s: %w", chart.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save chart: %w", err)
	}
	return nil
}

func (w ChartWindow) clause(col string) (string, []any) {
	startOp := ">"
	if w.StartClosed {
		startOp = ">="
	}
	return col + " " + startOp + " ? AND " + col + " <= ?",
		[]any{w.Start.UTC(), w.End.UTC()}
}

func (s *SQLiteStore) ServerCountByMonth(ctx context.Context, w ChartWindow) ([]MonthCount, error) {
	clause, args := w.clause("upload_time")
	var counts []MonthCount
	err := s.db.SelectContext(ctx, &counts, `
		SELECT strftime('%Y-%m', upload_time) AS period,
		       COUNT(DISTINCT server_id) AS count
		FROM uploads
		WHERE `+clause+`
		GROUP BY period
		ORDER BY period
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("server count by month: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) FeatureCountsByMonth(ctx context.Context, w ChartWindow) ([]MonthCount, error) {
	clause, args := w.clause("u.upload_time")
	var counts []MonthCount
	err := s.db.SelectContext(ctx, &counts, `
		SELECT strftime('%Y-%m', u.upload_time) AS period,
		       je.key AS series,
		       COUNT(DISTINCT u.server_id) AS count
		FROM upload_facts uf
		JOIN uploads u ON u.id = uf.upload_id
		CROSS JOIN json_each(uf.value) AS je
		WHERE uf.key = 'features' AND `+clause+`
		GROUP BY period, series
		ORDER BY period, series
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("feature counts by month: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) VersionBreakdownByMonth(ctx context.Context, w ChartWindow) ([]MonthCount, error) {
	clause, args := w.clause("u.upload_time")
	var counts []MonthCount
	err := s.db.SelectContext(ctx, &counts, `
		SELECT strftime('%Y-%m', u.upload_time) AS period,
		       vmaj.value || '.' || vmin.value AS series,
		       COUNT(DISTINCT u.server_id) AS count
		FROM uploads u
		JOIN upload_facts vmaj ON vmaj.upload_id = u.id AND vmaj.key = 'server_version_major'
		JOIN upload_facts vmin ON vmin.upload_id = u.id AND vmin.key = 'server_version_minor'
		WHERE `+clause+`
		GROUP BY period, series
		ORDER BY period, series
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("version breakdown by month: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) ArchitectureBreakdownByMonth(ctx context.Context, w ChartWindow) ([]MonthCount, error) {
	clause, args := w.clause("u.upload_time")
	var counts []MonthCount
	err := s.db.SelectContext(ctx, &counts, `
		SELECT strftime('%Y-%m', u.upload_time) AS period,
		       sf.value AS series,
		       COUNT(DISTINCT u.server_id) AS count
		FROM uploads u
		JOIN server_facts sf ON sf.server_id = u.server_id AND sf.key = 'hardware_architecture'
		WHERE `+clause+`
		GROUP BY period, series
		ORDER BY period, series
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("architecture breakdown by month: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		table string
		dest  *int
	}{
		{"raw_reports", &stats.RawReports},
		{"servers", &stats.Servers},
		{"uploads", &stats.Uploads},
		{"data_points", &stats.DataPoints},
		{"server_facts", &stats.ServerFacts},
		{"upload_facts", &stats.UploadFacts},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, `SELECT COUNT(*) FROM `+c.table); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return stats, nil
}
