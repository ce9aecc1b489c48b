package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/teamify/internal/domain"
	context_ "github.com/mkrupp/teamify/internal/infra/context"
	"github.com/mkrupp/teamify/internal/infra/logging"
)

// The logging configuration is global, so these tests run sequentially.

//nolint:paralleltest
func TestGetLogger_Console(t *testing.T) {
	var buf bytes.Buffer

	logging.Configure(context.Background(), logging.LoggerConfig{
		OutputHandle: &buf,
		Level:        "debug",
		NoColor:      true,
	}, "teamify.test")

	ctx := context_.WithTraceID(context.Background(), "trace-123")
	logging.GetLogger("repo.kv").InfoContext(ctx, "stored", "key", "teamify_users")

	out := buf.String()
	assert.Contains(t, out, "[INFO] stored")
	assert.Contains(t, out, "app=teamify.test")
	assert.Contains(t, out, "logger=repo.kv")
	assert.Contains(t, out, "key=teamify_users")
	assert.Contains(t, out, "trace.id=trace-123")
	assert.NotContains(t, out, "\033[")
}

//nolint:paralleltest
func TestGetLogger_JSON(t *testing.T) {
	var buf bytes.Buffer

	logging.Configure(context.Background(), logging.LoggerConfig{
		OutputHandle: &buf,
		Level:        "info",
		JSON:         true,
	}, "teamify.test")

	ctx := context_.WithSessionUser(context.Background(), &domain.SessionUser{ID: "1"})
	logging.GetLogger("svc.identitysvc").DebugContext(ctx, "hidden")
	logging.GetLogger("svc.identitysvc").WarnContext(ctx, "login failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "login failed", record["msg"])
	assert.Equal(t, "svc.identitysvc", record["logger"])
	assert.Equal(t, map[string]any{"user": "1"}, record["session"])
}

//nolint:paralleltest
func TestGetLogger_Filter(t *testing.T) {
	var buf bytes.Buffer

	logging.Configure(context.Background(), logging.LoggerConfig{
		OutputHandle: &buf,
		Level:        "debug",
		Filter:       "repo:warn, repo.kv.sqlite:debug",
		NoColor:      true,
	}, "")

	ctx := context.Background()
	logging.GetLogger("repo.kv.memory").InfoContext(ctx, "filtered out")
	logging.GetLogger("repo.kv.sqlite").DebugContext(ctx, "more specific wins")
	logging.GetLogger("svc.identitysvc").DebugContext(ctx, "unfiltered")

	out := buf.String()
	assert.NotContains(t, out, "filtered out")
	assert.Contains(t, out, "more specific wins")
	assert.Contains(t, out, "unfiltered")
}

//nolint:paralleltest
func TestGetLogger_Discard(t *testing.T) {
	logging.Configure(context.Background(), logging.LoggerConfig{Output: "discard"}, "")

	logger := logging.GetLogger("anything")
	assert.False(t, logger.Enabled(context.Background(), logging.LevelError))
}
