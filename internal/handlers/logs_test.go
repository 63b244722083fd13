package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLine(t *testing.T) {
	entry, ok := parseLogLine("INF | Oct  2 16:27:13 | Poller started", 3)
	require.True(t, ok)
	assert.Equal(t, 3, entry.Index)
	assert.Equal(t, "INF", entry.Level)
	assert.Equal(t, "16:27:13", entry.Timestamp)
	assert.Equal(t, "Poller started", entry.Message)
}

func TestParseLogLineLevels(t *testing.T) {
	tests := map[string]string{
		"ERROR": "ERR",
		"WARN":  "WRN",
		"DEBUG": "DBG",
		"INFO":  "INF",
		"WEIRD": "INF",
	}
	for raw, want := range tests {
		entry, ok := parseLogLine(raw+" | Oct  2 16:27:13 | message", 0)
		require.True(t, ok, "level %s", raw)
		assert.Equal(t, want, entry.Level, "level %s", raw)
	}
}

func TestParseLogLineSkipsNoise(t *testing.T) {
	_, ok := parseLogLine("DBG | Oct  2 16:27:13 | WebSocket client connected (total: 1)", 0)
	assert.False(t, ok)

	_, ok = parseLogLine("not a log line", 0)
	assert.False(t, ok)
}
