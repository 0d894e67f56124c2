package coldstore

import (
	"database/sql"

	"github.com/sastik/logserver/internal/record"
)

const selectColumns = `SELECT
	correlation_id, timestamp, api_name, service_name, log_level,
	session_id, party_id, log_type, has_error, duration_ms, url,
	request, response, error_message, error_trace, header_log,
	file_name, timestamp_raw, created_at`

// rowScanner abstracts *sql.Row and *sql.Rows, both of which implement Scan.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (record.Record, error) {
	var rec record.Record
	var sessionID, partyID, logType, hasError, url, errMsg, errTrace, fileName, tsRaw sql.NullString
	var durationMs sql.NullInt64
	var request, response, headerLog []byte
	var createdAt sql.NullTime

	if err := row.Scan(
		&rec.CorrelationID, &rec.Timestamp, &rec.APIName, &rec.ServiceName, &rec.LogLevel,
		&sessionID, &partyID, &logType, &hasError, &durationMs, &url,
		&request, &response, &errMsg, &errTrace, &headerLog,
		&fileName, &tsRaw, &createdAt,
	); err != nil {
		return record.Record{}, err
	}

	rec.SessionID = sessionID.String
	rec.PartyID = partyID.String
	rec.Type = record.Direction(logType.String)
	rec.HasError = record.HasError(hasError.String)
	rec.URL = url.String
	rec.ErrorMessage = errMsg.String
	rec.ErrorTrace = errTrace.String
	rec.SourceFile = fileName.String
	rec.TimestampRaw = tsRaw.String
	rec.Request = request
	rec.Response = response
	rec.HeaderLog = headerLog
	if durationMs.Valid {
		v := durationMs.Int64
		rec.DurationMs = &v
	}
	if createdAt.Valid {
		rec.IngestedAt = createdAt.Time
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}
