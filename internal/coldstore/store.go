// Package coldstore implements the cold store (spec.md §4.5, C5): the
// durable relational tier, queried with pagination and rolled up for
// aggregates. The example corpus carries no Postgres/MySQL driver, but
// modernc.org/sqlite (pulled in via codenerd's go.mod) gives a real
// database/sql-backed relational engine without a cgo dependency —
// DATABASE_URL is its DSN.
package coldstore

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sastik/logserver/internal/record"
)

var ErrNotFound = errors.New("record not found")

// Store is the cold tier, backed by database/sql.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and ensures the schema exists. The connection pool
// is bounded per spec.md §5 (default 10 + 20 overflow).
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(30)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping pre-checks connectivity, mirroring the "pre-ping on checkout" pool
// policy in spec.md §5.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertBatch inserts or updates records keyed by correlation_id, last
// write wins on ties by ingested_at (spec.md §4.5 / §3 invariant).
func (s *Store) UpsertBatch(ctx context.Context, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if rec.IngestedAt.IsZero() {
			rec.IngestedAt = time.Now().UTC()
		}
		var durationMs interface{}
		if rec.DurationMs != nil {
			durationMs = *rec.DurationMs
		}
		if _, err := stmt.ExecContext(ctx,
			rec.CorrelationID, rec.Timestamp, rec.APIName, rec.ServiceName, string(rec.LogLevel),
			nullableString(rec.SessionID), nullableString(rec.PartyID), nullableString(string(rec.Type)),
			nullableString(string(rec.HasError)), durationMs, nullableString(rec.URL),
			nullableBytes(rec.Request), nullableBytes(rec.Response),
			nullableString(rec.ErrorMessage), nullableString(rec.ErrorTrace), nullableBytes(rec.HeaderLog),
			nullableString(rec.SourceFile), nullableString(rec.TimestampRaw), rec.IngestedAt,
		); err != nil {
			return fmt.Errorf("upserting %s: %w", rec.CorrelationID, err)
		}
	}
	return tx.Commit()
}

const upsertSQL = `
INSERT INTO log_entries (
	correlation_id, timestamp, api_name, service_name, log_level,
	session_id, party_id, log_type, has_error, duration_ms, url,
	request, response, error_message, error_trace, header_log,
	file_name, timestamp_raw, created_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(correlation_id) DO UPDATE SET
	timestamp = excluded.timestamp,
	api_name = excluded.api_name,
	service_name = excluded.service_name,
	log_level = excluded.log_level,
	session_id = excluded.session_id,
	party_id = excluded.party_id,
	log_type = excluded.log_type,
	has_error = excluded.has_error,
	duration_ms = excluded.duration_ms,
	url = excluded.url,
	request = excluded.request,
	response = excluded.response,
	error_message = excluded.error_message,
	error_trace = excluded.error_trace,
	header_log = excluded.header_log,
	file_name = excluded.file_name,
	timestamp_raw = excluded.timestamp_raw,
	created_at = excluded.created_at
WHERE excluded.created_at >= log_entries.created_at
`

// Get returns a single record by correlation id.
func (s *Store) Get(ctx context.Context, cid string) (record.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM log_entries WHERE correlation_id = ?", cid)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, ErrNotFound
	}
	return rec, err
}

// Query executes filter against the cold store, ordered by timestamp
// descending with correlation_id ascending as a stable tiebreak, and
// returns the requested [offset, offset+pageSize) slice alongside the total
// (unpaginated) match count.
func (s *Store) Query(ctx context.Context, filter record.Filter, offset, pageSize int) ([]record.Record, int, error) {
	where, args := whereClause(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM log_entries" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	if pageSize > 5000 {
		pageSize = 5000 // query.Router pulls up to 5000 cold rows for its tier merge
	}
	if offset < 0 {
		offset = 0
	}

	q := selectColumns + " FROM log_entries" + where + " ORDER BY timestamp DESC, correlation_id ASC LIMIT ? OFFSET ?"
	args = append(args, pageSize, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// DeleteOlderThan removes records with timestamp before cutoff, enforcing
// retention (spec.md §4.5 / §5).
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM log_entries WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SaveOffsets implements position.Persister, storing each file's offset
// under the position:<sha1(file_path)> key namespace (spec.md §6.4).
func (s *Store) SaveOffsets(ctx context.Context, offsets map[string]int64) error {
	if len(offsets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO kv_state(key, value) VALUES(?,?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for path, off := range offsets {
		if _, err := stmt.ExecContext(ctx, positionKey(path), fmt.Sprintf("%d", off)); err != nil {
			return err
		}
		// store the reverse mapping too so LoadOffsets can recover the
		// original path (sha1 is one-way).
		if _, err := stmt.ExecContext(ctx, positionPathKey(path), path); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadOffsets implements position.Persister.
func (s *Store) LoadOffsets(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv_state WHERE key LIKE 'position:%' OR key LIKE 'position-path:%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offsetsByHash := map[string]int64{}
	pathsByHash := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch {
		case strings.HasPrefix(key, "position-path:"):
			pathsByHash[strings.TrimPrefix(key, "position-path:")] = value
		case strings.HasPrefix(key, "position:"):
			var off int64
			fmt.Sscanf(value, "%d", &off)
			offsetsByHash[strings.TrimPrefix(key, "position:")] = off
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(offsetsByHash))
	for hash, off := range offsetsByHash {
		if path, ok := pathsByHash[hash]; ok {
			out[path] = off
		}
	}
	return out, nil
}

func positionKey(path string) string {
	sum := sha1.Sum([]byte(path))
	return "position:" + hex.EncodeToString(sum[:])
}

func positionPathKey(path string) string {
	sum := sha1.Sum([]byte(path))
	return "position-path:" + hex.EncodeToString(sum[:])
}

func whereClause(f record.Filter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(col, val string) {
		if val != "" {
			clauses = append(clauses, col+" = ?")
			args = append(args, val)
		}
	}
	add("correlation_id", f.CorrelationID)
	add("api_name", f.APIName)
	add("service_name", f.ServiceName)
	add("log_level", f.LogLevel)
	add("session_id", f.SessionID)
	add("has_error", f.HasError)

	if f.Start != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, *f.Start)
	}
	if f.End != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, *f.End)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
