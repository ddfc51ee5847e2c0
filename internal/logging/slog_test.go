package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestNew_LevelsAndAttributes(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "debug")
	require.NoError(t, err)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "credential_id", "c1")
	log.Info(ctx, "inf", "version", 2)
	log.Warn(ctx, "wrn")
	log.Error(ctx, "err")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, "c1", lines[0]["credential_id"])
	assert.Equal(t, "INFO", lines[1]["level"])
	assert.Equal(t, float64(2), lines[1]["version"])
	assert.Equal(t, "WARN", lines[2]["level"])
	assert.Equal(t, "ERROR", lines[3]["level"])
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn")
	require.NoError(t, err)

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestNew_RedactsSensitiveValues(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "info")
	require.NoError(t, err)

	child := log.With("module", "twofactor", "TOTP_Secret", "JBSWY3DPEHPK3PXP")
	child.Info(context.Background(), "enrolled", "password", "hunter2", "code", "123456", "user_id", "u1")

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "123456")
	assert.NotContains(t, out, "JBSWY3DPEHPK3PXP")

	lines := decodeLines(t, bytes.NewBufferString(out))
	require.Len(t, lines, 1)
	assert.Equal(t, Redacted, lines[0]["password"])
	assert.Equal(t, Redacted, lines[0]["TOTP_Secret"])
	assert.Equal(t, "u1", lines[0]["user_id"])
	assert.Equal(t, "twofactor", lines[0]["module"])
}

func TestNew_UnknownLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "chatty")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestSlogLogger_WithKeepsParentClean(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	log.With("module", "ledger").Info(ctx, "child")
	log.Info(ctx, "parent")

	out := buf.String()
	assert.Contains(t, out, "msg=child module=ledger")
	assert.Contains(t, out, "msg=parent\n")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.NotPanics(t, func() {
		log.With("a", 1).Error(context.TODO(), "dropped")
	})
}
