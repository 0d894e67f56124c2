// Package position implements the position store (spec.md §4.2, C2): a
// durable (file_path -> byte_offset) mapping with rotation detection, so
// that a re-read of a file never re-delivers already-processed bytes and
// never skips bytes a rotation has invalidated.
package position

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sastik/logserver/internal/logging"
)

// Persister is the durability backend for position snapshots, implemented
// by the cold store under the `position:<sha1(file_path)>` key namespace
// (spec.md §6.4).
type Persister interface {
	SaveOffsets(ctx context.Context, offsets map[string]int64) error
	LoadOffsets(ctx context.Context) (map[string]int64, error)
}

type fileState struct {
	offset     int64
	dev, inode uint64
	haveID     bool
}

// Store tracks per-file byte offsets in memory, snapshotting to a Persister
// on a cadence and on graceful shutdown.
type Store struct {
	mtx       sync.RWMutex
	files     map[string]fileState
	persister Persister
	log       *logging.Logger
}

func New(persister Persister, log *logging.Logger) *Store {
	if log == nil {
		log = logging.NewDiscard()
	}
	return &Store{
		files:     make(map[string]fileState),
		persister: persister,
		log:       log,
	}
}

// Load restores positions from the persister. Files with no prior entry
// start at offset 0 (full replay), per spec.md §4.2.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	offsets, err := s.persister.LoadOffsets(ctx)
	if err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for path, off := range offsets {
		s.files[path] = fileState{offset: off}
	}
	return nil
}

// Offset returns the stored position for path, or 0 if unknown.
func (s *Store) Offset(path string) int64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.files[path].offset
}

// Advance sets path's position forward. It is a caller bug to advance
// backwards outside of CheckRotation's reset, so callers should always pass
// offset+consumed from the last Offset() read.
func (s *Store) Advance(path string, newOffset int64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	st := s.files[path]
	st.offset = newOffset
	s.files[path] = st
}

// CheckRotation implements spec.md §4.2's rotation detection: if the file's
// current size is strictly less than its stored position, or its
// device/inode pair differs from the one recorded at last read, the
// position resets to 0 and rotated=true is returned so the caller can emit
// a FileRotated event.
func (s *Store) CheckRotation(path string, fi os.FileInfo) (rotated bool) {
	dev, inode, haveID := fileIdentity(fi)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	st, known := s.files[path]
	if !known {
		s.files[path] = fileState{offset: 0, dev: dev, inode: inode, haveID: haveID}
		return false
	}

	sizeShrunk := fi.Size() < st.offset
	identityChanged := haveID && st.haveID && (dev != st.dev || inode != st.inode)

	if sizeShrunk || identityChanged {
		s.files[path] = fileState{offset: 0, dev: dev, inode: inode, haveID: haveID}
		return true
	}

	if haveID && !st.haveID {
		st.dev, st.inode, st.haveID = dev, inode, true
		s.files[path] = st
	}
	return false
}

// Snapshot persists the current position map.
func (s *Store) Snapshot(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.mtx.RLock()
	offsets := make(map[string]int64, len(s.files))
	for path, st := range s.files {
		offsets[path] = st.offset
	}
	s.mtx.RUnlock()
	return s.persister.SaveOffsets(ctx, offsets)
}

// Run snapshots on interval until ctx is cancelled, then takes one final
// snapshot before returning — the graceful-shutdown half of spec.md §4.2's
// "persisted ... at configurable cadence and on graceful shutdown".
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	tck := time.NewTicker(interval)
	defer tck.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.Snapshot(context.Background()); err != nil {
				s.log.Error("failed final position snapshot", logging.KVErr(err))
			}
			return
		case <-tck.C:
			if err := s.Snapshot(ctx); err != nil {
				s.log.Error("failed to flush position snapshot", logging.KVErr(err))
			}
		}
	}
}
