package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"WARN", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONEntryCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Options{}) })

	ctx := WithRequestID(context.Background(), "rid-123")
	Error(ctx, "compensation_failed", errors.New("boom"), Fields{"object_key": "k"})

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "compensation_failed", got["msg"])
	assert.Equal(t, "rid-123", got["request_id"])
	assert.Equal(t, "boom", got["error"])
	assert.Equal(t, "k", got["object_key"])
	assert.Equal(t, "error", got["level"])
}

func TestProductionForcesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Env: "production", Output: &buf})
	t.Cleanup(func() { Init(Options{}) })

	Info(context.Background(), "starting")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(Options{}) })

	Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}
