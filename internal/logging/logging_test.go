package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modquant-lab/internal/config"
)

func TestNew_StdoutOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(config.Log{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	log.WithField("line", 7).Warn("skipped record")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "skipped record")
	assert.Contains(t, out, "line=7")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "modquant.log")
	var buf bytes.Buffer

	log, closer, err := New(config.Log{Level: "info", File: path, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)

	log.WithField("run_id", "abc").Info("run stored")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "run_id=abc"))
	assert.Contains(t, buf.String(), "run stored")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(config.Log{Level: "chatty"}, nil)
	assert.Error(t, err)
}
