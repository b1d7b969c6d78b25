package runlog

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	run := New()
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.WithinDuration(t, time.Now().UTC(), run.StartedAt, time.Second)
	assert.True(t, run.FinishedAt.IsZero())
	assert.False(t, run.Succeeded)
	assert.Empty(t, run.LogLines)
}

func TestLogf(t *testing.T) {
	t.Parallel()

	run := New()
	run.Logf("processed %d/%d records", 50, 150)
	run.Logf("sync finished")

	require.Len(t, run.LogLines, 2)
	assert.True(t, strings.HasSuffix(run.LogLines[0], "processed 50/150 records"))
	assert.True(t, strings.HasSuffix(run.LogLines[1], "sync finished"))

	// Each line starts with an RFC3339 timestamp
	for _, line := range run.LogLines {
		stamp, _, found := strings.Cut(line, " ")
		require.True(t, found)
		_, err := time.Parse(time.RFC3339, stamp)
		assert.NoError(t, err)
	}
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	run := New()
	run.Finalize(true)
	assert.True(t, run.Succeeded)
	assert.WithinDuration(t, time.Now().UTC(), run.FinishedAt, time.Second)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	failed := New()
	failed.Finalize(false)
	assert.False(t, failed.Succeeded)
	assert.False(t, failed.FinishedAt.IsZero())
}
