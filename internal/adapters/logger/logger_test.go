package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"go.trai.ch/rbt/internal/adapters/logger"
)

func TestLogger_Levels(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	l := logger.New()
	l.SetOutput(&buf)

	l.Debug("not yet")
	l.Info("building", "jobs", 3)
	l.Warn("remote cache unavailable")
	assert.Equal(t, "building jobs=3\n! remote cache unavailable\n", buf.String())

	buf.Reset()
	l.SetVerbose(true)
	l.Debug("probing cache")
	assert.Equal(t, "○ probing cache\n", buf.String())
}

func TestLogger_Error(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	l := logger.New()
	l.SetOutput(&buf)

	l.Error(nil)
	assert.Empty(t, buf.String())

	l.Error(zerr.Wrap(errors.New("exit status 1"), "build failed"))
	assert.Equal(t, "✗ Error: build failed\n\n  Caused by:\n    → exit status 1\n", buf.String())
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New()
	l.SetOutput(&buf)
	l.SetJSON(true)

	l.Error(errors.New("boom"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "operation failed", record["msg"])
	assert.Equal(t, "boom", record["error"])
}
