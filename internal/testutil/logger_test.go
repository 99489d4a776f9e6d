package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingLogger(t *testing.T) {
	logger, rec := NewRecordingLogger(t)

	logger.With(slog.String("run_id", "r-1")).Warn("failed to drop table",
		slog.String("table", "work.jdoe_02"), slog.Int("attempt", 2))
	logger.Debug("dropped table", slog.String("table", "work.jdoe_03"))

	require.Len(t, rec.Entries(), 2)
	e, ok := rec.Find("failed to drop table")
	require.True(t, ok)
	assert.Equal(t, slog.LevelWarn, e.Level)
	assert.Equal(t, map[string]string{"run_id": "r-1", "table": "work.jdoe_02", "attempt": "2"}, e.Attrs)

	_, ok = rec.Find("keeping generated tables")
	assert.False(t, ok)
}
