package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringDefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, "fallback", String("LOGSERVER_TEST_UNSET_VAR", "fallback"))
}

func TestStringReadsEnv(t *testing.T) {
	t.Setenv("LOGSERVER_TEST_VAR", "value")
	assert.Equal(t, "value", String("LOGSERVER_TEST_VAR", "fallback"))
}

func TestStringReadsFileIndirection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	t.Setenv("LOGSERVER_TEST_SECRET_FILE", path)
	assert.Equal(t, "from-file", String("LOGSERVER_TEST_SECRET", "fallback"))
}

func TestIntInvalidFallsBackToDefault(t *testing.T) {
	t.Setenv("LOGSERVER_TEST_INT", "not-a-number")
	assert.Equal(t, 42, Int("LOGSERVER_TEST_INT", 42))
}

func TestBoolParsesAndFallsBack(t *testing.T) {
	t.Setenv("LOGSERVER_TEST_BOOL", "false")
	assert.Equal(t, false, Bool("LOGSERVER_TEST_BOOL", true))
	assert.Equal(t, true, Bool("LOGSERVER_TEST_BOOL_UNSET", true))
}

func TestListSplitsAndTrims(t *testing.T) {
	t.Setenv("LOGSERVER_TEST_LIST", " a, b ,,c")
	assert.Equal(t, []string{"a", "b", "c"}, List("LOGSERVER_TEST_LIST"))
	assert.Nil(t, List("LOGSERVER_TEST_LIST_UNSET"))
}

