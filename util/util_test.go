package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sieve/engine"
)

func TestReadRows(t *testing.T) {

	rows, err := ReadRows(strings.NewReader(`{"a": 1, "b": {"c": "x"}}

{"a": 2}
`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(1), rows[0]["a"])

	val, ok := rows[0].Get("b.c")
	assert.True(t, ok)
	assert.Equal(t, "x", val)

	_, err = ReadRows(strings.NewReader("{\"a\": 1}\nnope\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestLoadRows(t *testing.T) {

	rows, err := LoadRows("../testdata/rows.ndjson")
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	_, err = LoadRows("../testdata/missing.ndjson")
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {

	path := filepath.Join(t.TempDir(), "sieve.yaml")

	require.NoError(t, SampleConfig([]byte("concurrency: 2\nmax_depth: 8\n"), path, 0644))
	require.NoError(t, SampleConfig([]byte("concurrency: 9\n"), path, 0644))

	cfg := engine.Config{}
	require.NoError(t, LoadConfig(&cfg, path))
	assert.Equal(t, engine.Config{Concurrency: 2, MaxDepth: 8}, cfg)

	assert.Error(t, LoadConfig(&cfg, filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestOpenLog(t *testing.T) {

	path := filepath.Join(t.TempDir(), "sieve.log")

	file := OpenLog(path, 0644)
	_, err := file.Write([]byte("hello\n"))
	require.NoError(t, err)
	CloseLog(file)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
