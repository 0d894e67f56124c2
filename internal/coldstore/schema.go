package coldstore

const schema = `
CREATE TABLE IF NOT EXISTS log_entries (
	correlation_id TEXT PRIMARY KEY,
	timestamp      DATETIME NOT NULL,
	api_name       TEXT NOT NULL,
	service_name   TEXT NOT NULL,
	log_level      TEXT NOT NULL,
	session_id     TEXT,
	party_id       TEXT,
	log_type       TEXT,
	has_error      TEXT,
	duration_ms    INTEGER,
	url            TEXT,
	request        BLOB,
	response       BLOB,
	error_message  TEXT,
	error_trace    TEXT,
	header_log     BLOB,
	file_name      TEXT,
	timestamp_raw  TEXT,
	created_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp    ON log_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_log_entries_api_name      ON log_entries(api_name);
CREATE INDEX IF NOT EXISTS idx_log_entries_service_name  ON log_entries(service_name);
CREATE INDEX IF NOT EXISTS idx_log_entries_log_level     ON log_entries(log_level);
CREATE INDEX IF NOT EXISTS idx_log_entries_session_id    ON log_entries(session_id);
CREATE INDEX IF NOT EXISTS idx_log_entries_has_error     ON log_entries(has_error);
CREATE INDEX IF NOT EXISTS idx_log_entries_url           ON log_entries(url);

CREATE TABLE IF NOT EXISTS kv_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
