package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

// Not parallel: New mutates zerolog globals.
func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", JSON: true, Out: &buf})

	l.Info().Str("ticker", "AAPL").Msg("entered")
	l.Debug().Msg("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "AAPL", rec["ticker"])
	assert.Equal(t, "entered", rec["message"])
	assert.NotContains(t, buf.String(), "hidden")

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
