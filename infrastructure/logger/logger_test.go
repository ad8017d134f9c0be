package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesErrorFile(t *testing.T) {
	dir := t.TempDir()
	errPath := filepath.Join(dir, "err.log")
	l, err := New(Config{Level: "info", ErrorFile: errPath, Format: "json"})
	require.NoError(t, err)

	l.Info("ignored")
	l.LogError(errors.New("hedge leg failed"), map[string]interface{}{"order_id": "x1"})
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(errPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "hedge leg failed"))
	assert.False(t, strings.Contains(string(raw), "ignored"))
}

func TestEventHelpersAttachEventField(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core))

	l.LogFill("received", "oid-1", map[string]interface{}{"px": 100.1})
	l.LogRisk("inventory_limit", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "fill_event", entries[0].Message)
	assert.Equal(t, "received", entries[0].ContextMap()["event"])
	assert.Equal(t, "oid-1", entries[0].ContextMap()["order_id"])
	assert.Equal(t, "risk_event", entries[1].Message)
}
