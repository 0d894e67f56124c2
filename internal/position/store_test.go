package position

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	offsets map[string]int64
}

func (m *memPersister) SaveOffsets(ctx context.Context, offsets map[string]int64) error {
	m.offsets = make(map[string]int64, len(offsets))
	for k, v := range offsets {
		m.offsets[k] = v
	}
	return nil
}

func (m *memPersister) LoadOffsets(ctx context.Context) (map[string]int64, error) {
	return m.offsets, nil
}

func TestAdvanceAndOffset(t *testing.T) {
	s := New(&memPersister{}, nil)
	assert.Equal(t, int64(0), s.Offset("/var/log/app/a.log"))
	s.Advance("/var/log/app/a.log", 128)
	assert.Equal(t, int64(128), s.Offset("/var/log/app/a.log"))
}

func TestSnapshotAndLoadRoundTrip(t *testing.T) {
	p := &memPersister{}
	s := New(p, nil)
	s.Advance("/var/log/app/a.log", 256)
	require.NoError(t, s.Snapshot(context.Background()))

	s2 := New(p, nil)
	require.NoError(t, s2.Load(context.Background()))
	assert.Equal(t, int64(256), s2.Offset("/var/log/app/a.log"))
}

func TestCheckRotationDetectsShrink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.log")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o600))

	s := New(&memPersister{}, nil)
	fi, err := os.Stat(path)
	require.NoError(t, err)

	assert.False(t, s.CheckRotation(path, fi), "first sighting is never a rotation")
	s.Advance(path, 100)

	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o600))
	fi2, err := os.Stat(path)
	require.NoError(t, err)

	assert.True(t, s.CheckRotation(path, fi2), "a file smaller than its stored offset must be treated as rotated")
	assert.Equal(t, int64(0), s.Offset(path), "rotation resets the stored offset")
}

func TestCheckRotationNoRotationOnGrowth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.log")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o600))

	s := New(&memPersister{}, nil)
	fi, err := os.Stat(path)
	require.NoError(t, err)
	s.CheckRotation(path, fi)
	s.Advance(path, 10)

	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o600))
	fi2, err := os.Stat(path)
	require.NoError(t, err)

	assert.False(t, s.CheckRotation(path, fi2), "growth alone is not rotation")
}
