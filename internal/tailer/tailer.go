// Package tailer implements the file tailer (spec.md §4.3, C3): discovery,
// incremental reads, rotation detection, and handing safe byte ranges to
// the frame parser across many files concurrently. It layers fsnotify
// events over a periodic scan, in the manner of the teacher's
// filewatch.WatchManager — position is the single source of truth, so
// either signal converging on the same rescan is safe.
package tailer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/sastik/logserver/internal/frame"
	"github.com/sastik/logserver/internal/logging"
	"github.com/sastik/logserver/internal/position"
	"github.com/sastik/logserver/internal/record"
)

// Sink receives the records recovered from one pass over one file, in
// file-offset order. Implementations (the ingest pipeline) must not block
// indefinitely — it holds up that file's next tick.
type Sink func(ctx context.Context, records []record.Record) error

// Config controls the tailer's scan behavior.
type Config struct {
	Root         string
	Patterns     []string // default: *.log, *.txt
	PollInterval time.Duration
	MaxWorkers   int
}

func (c Config) withDefaults() Config {
	if len(c.Patterns) == 0 {
		c.Patterns = []string{"*.log", "*.txt"}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2500 * time.Millisecond
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	return c
}

// Tailer discovers and incrementally reads files under Config.Root.
type Tailer struct {
	cfg    Config
	parser *frame.Parser
	pos    *position.Store
	sink   Sink
	log    *logging.Logger

	watcher   *fsnotify.Watcher
	rescanNow chan struct{}

	inflight sync.Map // path -> struct{}, guards against overlapping ticks on the same file
}

func New(cfg Config, parser *frame.Parser, pos *position.Store, sink Sink, log *logging.Logger) *Tailer {
	if log == nil {
		log = logging.NewDiscard()
	}
	if parser == nil {
		parser = frame.New()
	}
	return &Tailer{
		cfg:       cfg.withDefaults(),
		parser:    parser,
		pos:       pos,
		sink:      sink,
		log:       log,
		rescanNow: make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled, scanning Config.Root on the configured
// poll interval (nudged earlier by fsnotify events) and handing complete
// byte ranges to the frame parser and then the sink.
func (t *Tailer) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err == nil {
		t.watcher = w
		defer w.Close()
		if err := t.watchTree(t.cfg.Root); err != nil {
			t.log.Warn("failed to establish filesystem watches, continuing on periodic scan only", logging.KVErr(err))
		}
		go t.watchEvents(ctx)
	} else {
		t.log.Warn("fsnotify unavailable, continuing on periodic scan only", logging.KVErr(err))
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	// initial pass so a cold start doesn't wait a full interval
	t.scanOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.scanOnce(ctx)
		case <-t.rescanNow:
			t.scanOnce(ctx)
		}
	}
}

func (t *Tailer) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort: skip unreadable subtrees
		}
		if d.IsDir() {
			if werr := t.watcher.Add(path); werr != nil {
				t.log.Warn("failed to watch directory", logging.KV("path", path), logging.KVErr(werr))
			}
		}
		return nil
	})
}

func (t *Tailer) watchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
		case evt, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(evt.Name); err == nil && fi.IsDir() {
					t.watcher.Add(evt.Name)
				}
			}
			t.nudge()
		}
	}
}

func (t *Tailer) nudge() {
	select {
	case t.rescanNow <- struct{}{}:
	default:
	}
}

type discoveredFile struct {
	path string
	fi   os.FileInfo
}

func (t *Tailer) discover() ([]discoveredFile, error) {
	var out []discoveredFile
	err := filepath.WalkDir(t.cfg.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if d.IsDir() {
			return nil
		}
		if !t.matches(d.Name()) {
			return nil
		}
		fi, ferr := d.Info()
		if ferr != nil {
			return nil //nolint:nilerr
		}
		out = append(out, discoveredFile{path: path, fi: fi})
		return nil
	})
	if err != nil {
		return nil, err
	}
	// stable order is not required by spec.md §5 (no cross-file ordering
	// guarantee), but sorting keeps scans deterministic for tests/debugging.
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

func (t *Tailer) matches(name string) bool {
	for _, pat := range t.cfg.Patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

func (t *Tailer) scanOnce(ctx context.Context) {
	files, err := t.discover()
	if err != nil {
		t.log.Error("failed to discover log files", logging.KVErr(err))
		return
	}

	sem := make(chan struct{}, t.cfg.MaxWorkers)
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		f := f
		if _, busy := t.inflight.LoadOrStore(f.path, struct{}{}); busy {
			continue // previous tick still processing this file; skip, next tick retries
		}
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem; t.inflight.Delete(f.path) }()
			t.processFile(gctx, f)
			return nil
		})
	}
	_ = g.Wait()
}

func (t *Tailer) processFile(ctx context.Context, f discoveredFile) {
	if t.pos.CheckRotation(f.path, f.fi) {
		FileRotated.Inc()
		t.log.Info("file rotated, resetting position", logging.KV("path", f.path))
	}

	offset := t.pos.Offset(f.path)
	if offset >= f.fi.Size() {
		return // nothing new
	}

	data, err := readRange(f.path, offset, f.fi.Size())
	if err != nil {
		t.log.Error("failed to read file range", logging.KV("path", f.path), logging.KVErr(err))
		return
	}
	if len(data) == 0 {
		return
	}

	recs, consumed := t.parser.Parse(data, f.path)
	if consumed > 0 {
		t.pos.Advance(f.path, offset+int64(consumed))
	}
	if len(recs) == 0 {
		return
	}
	if t.sink != nil {
		if err := t.sink(ctx, recs); err != nil {
			t.log.Error("sink rejected records", logging.KV("path", f.path), logging.KVErr(err))
		}
	}
}

func readRange(path string, start, end int64) ([]byte, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()
	if _, err := fin.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	n := end - start
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(fin, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
