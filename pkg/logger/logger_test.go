package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "json").Debug("dataset loaded", "kind", "communes")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dataset loaded", line["msg"])
	assert.Equal(t, "communes", line["kind"])
	assert.Equal(t, "geoapi", line["service"])
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "warn", "text").Info("ignored")
	assert.Empty(t, buf.String())
}

func TestFromContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Empty(t, RequestID(context.Background()))
}
