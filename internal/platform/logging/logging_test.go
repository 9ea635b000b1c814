package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontdesk.log")
	logger := New(Options{Level: "info", File: path})
	logger.Info().Str("encounter_id", "e1").Msg("encounter opened")
	logger.Debug().Msg("filtered out")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"encounter_id":"e1"`)
	assert.Contains(t, string(data), `"service":"frontdesk"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestFileWriterDefaults(t *testing.T) {
	w := fileWriter(Options{File: "x.log"})
	assert.Equal(t, 100, w.MaxSize)
	assert.Equal(t, 5, w.MaxBackups)
	assert.Equal(t, 30, w.MaxAge)
}
