package ingestpipeline

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/sastik/logserver/internal/record"
)

// spillFile is a small append-only gob-encoded overflow log, grounded on the
// teacher's chancacher.go disk-backing design: when the cold store cannot
// keep up, batches land here instead of being dropped, and are replayed
// oldest-first once the cold store recovers (spec.md §7 ColdWriteFailed
// policy, SPEC_FULL.md §4.6+).
type spillFile struct {
	mtx  sync.Mutex
	path string
}

func newSpillFile(dir string) (*spillFile, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &spillFile{path: filepath.Join(dir, "ingest_spill.gob")}, nil
}

func (f *spillFile) Write(batch []record.Record) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer fh.Close()
	return gob.NewEncoder(fh).Encode(batch)
}

// Drain reads every spilled batch and removes the file. If replay of a
// later batch fails partway, the caller is expected to re-spill whatever it
// could not place, so partial drains never lose data.
func (f *spillFile) Drain() ([][]record.Record, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	fh, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	dec := gob.NewDecoder(fh)
	var batches [][]record.Record
	for {
		var batch []record.Record
		if err := dec.Decode(&batch); err != nil {
			break // io.EOF or a truncated trailing record; either way we stop here
		}
		batches = append(batches, batch)
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return batches, err
	}
	return batches, nil
}
