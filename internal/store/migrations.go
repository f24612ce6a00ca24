package store

const schema = `
CREATE TABLE IF NOT EXISTS raw_reports (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    country     TEXT NOT NULL DEFAULT 'ZZ',
    data        BLOB NOT NULL,
    upload_time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_reports_upload_time ON raw_reports(upload_time);

CREATE TABLE IF NOT EXISTS servers (
    id INTEGER PRIMARY KEY AUTOINCREMENT
);

CREATE TABLE IF NOT EXISTS uploads (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    upload_time DATETIME NOT NULL,
    server_id   INTEGER NOT NULL REFERENCES servers(id)
);

CREATE INDEX IF NOT EXISTS idx_uploads_time_server ON uploads(upload_time, server_id);

CREATE TABLE IF NOT EXISTS data_points (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    upload_id INTEGER NOT NULL REFERENCES uploads(id),
    key       TEXT NOT NULL,
    value     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_data_points_upload ON data_points(upload_id);
CREATE INDEX IF NOT EXISTS idx_data_points_key ON data_points(key COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS server_facts (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    server_id INTEGER NOT NULL REFERENCES servers(id),
    key       TEXT NOT NULL,
    value     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_server_facts_key_value ON server_facts(key, value);
CREATE INDEX IF NOT EXISTS idx_server_facts_server_key ON server_facts(server_id, key);

CREATE TABLE IF NOT EXISTS upload_facts (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    upload_id INTEGER NOT NULL REFERENCES uploads(id),
    key       TEXT NOT NULL,
    value     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_upload_facts_upload_key ON upload_facts(upload_id, key);
CREATE INDEX IF NOT EXISTS idx_upload_facts_key ON upload_facts(key);

CREATE TABLE IF NOT EXISTS charts (
    id     TEXT PRIMARY KEY,
    title  TEXT NOT NULL DEFAULT '',
    series TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS chart_metadata (
    chart_id            TEXT PRIMARY KEY REFERENCES charts(id) ON DELETE CASCADE,
    computed_start_date DATETIME,
    computed_end_date   DATETIME
);
`
