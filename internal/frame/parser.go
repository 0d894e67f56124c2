// Package frame implements the frame parser (spec.md §4.1, C1): recovering
// individual Records from a mixed byte stream bounded by paired sentinel
// markers, without ever emitting a partial frame.
package frame

import (
	"bytes"
	"regexp"

	"github.com/sastik/logserver/internal/record"
)

// DefaultMaxFrameSize bounds buffering per spec.md §4.1: a frame larger than
// this is dropped along with its markers rather than held indefinitely.
const DefaultMaxFrameSize = 8 * 1024 * 1024

const markerLen = 10

// markerPattern matches exactly ten '*' characters, a cid, then ten more
// '*' characters. The cid shape is loose on purpose (spec.md §6.1: "matches
// [0-9a-f-]{36}") — it is not re-validated as a strict UUID here, only used
// to pair markers.
var markerPattern = regexp.MustCompile(`\*{10}([0-9a-f-]{36})\*{10}`)

// Parser recovers complete frames from a byte range. It is stateless — all
// framing state (the position cursor) lives with the caller, per spec.md
// §4.1's "parser is stateless" edge case.
type Parser struct {
	MaxFrameSize int
}

// New returns a Parser with the default maximum frame size.
func New() *Parser {
	return &Parser{MaxFrameSize: DefaultMaxFrameSize}
}

type marker struct {
	start, end int
	cid        string
}

// Parse scans data for complete frames and returns the records recovered
// plus the number of leading bytes that are now safe to advance the
// caller's position cursor past. sourceHint is stamped onto each Record's
// SourceFile.
func (p *Parser) Parse(data []byte, sourceHint string) (recs []record.Record, consumed int) {
	max := p.MaxFrameSize
	if max <= 0 {
		max = DefaultMaxFrameSize
	}

	idxs := markerPattern.FindAllSubmatchIndex(data, -1)
	if len(idxs) == 0 {
		return nil, 0
	}

	markers := make([]marker, 0, len(idxs))
	for _, m := range idxs {
		markers = append(markers, marker{start: m[0], end: m[1], cid: string(data[m[2]:m[3]])})
	}

	open := map[string]int{} // cid -> start of its opening marker
	safeEnd := 0

	for _, m := range markers {
		openStart, isClose := open[m.cid]
		if !isClose {
			open[m.cid] = m.start
			continue
		}
		delete(open, m.cid)

		if rec, ok := p.resolveFrame(data, openStart, m.start, m.end, m.cid, sourceHint, max); ok {
			recs = append(recs, rec)
		}

		if len(open) == 0 {
			safeEnd = m.end
		}
	}

	return recs, safeEnd
}

// resolveFrame validates and parses one complete marker-bounded region.
// start is the opening marker's start, bodyEnd is the closing marker's
// start (where the enclosed JSON ends), frameEnd is the closing marker's
// end (the full frame span, used for the size cap). It always returns
// ok=false on failure, but the caller still treats the region as resolved
// (consumed) — only successfully-parsed frames produce a Record.
func (p *Parser) resolveFrame(data []byte, start, bodyEnd, frameEnd int, markerCID, sourceHint string, maxSize int) (record.Record, bool) {
	if frameEnd-start > maxSize {
		FrameTooLarge.Inc()
		return record.Record{}, false
	}

	// the enclosed JSON sits between the first marker's end and the second
	// marker's start; recompute the first marker's end from its known
	// length rather than re-scanning.
	bodyStart := start + markerLen + len(markerCID) + markerLen
	if bodyStart > bodyEnd {
		FrameRejected.Inc()
		return record.Record{}, false
	}
	body := bytes.TrimSpace(data[bodyStart:bodyEnd])

	rec, mismatched, err := record.ParseWire(body, markerCID)
	if err != nil {
		if err == record.ErrRequiredFieldMissing {
			RequiredFieldMissing.Inc()
		} else {
			FrameRejected.Inc()
		}
		return record.Record{}, false
	}
	if mismatched {
		CidMismatch.Inc()
	}
	rec.SourceFile = sourceHint
	return rec, true
}
