package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		interval   time.Duration
		anchorTime string
		wantErr    bool
	}{
		{"plain interval", 24 * time.Hour, "", false},
		{"anchored", 24 * time.Hour, "22:30", false},
		{"midnight anchor", time.Hour, "00:00", false},
		{"zero interval", 0, "", true},
		{"negative interval", -time.Hour, "", true},
		{"bad anchor format", 24 * time.Hour, "2230", true},
		{"out of range anchor", 24 * time.Hour, "25:99", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := newSchedule(tt.interval, tt.anchorTime)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.Equal(t, tt.anchorTime != "", s.anchored)
		})
	}
}

func TestScheduleDueInterval(t *testing.T) {
	t.Parallel()

	s, err := newSchedule(24*time.Hour, "")
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, s.due(now, now.Add(-time.Hour)))
	assert.False(t, s.due(now, now.Add(-23*time.Hour)))
	assert.True(t, s.due(now, now.Add(-24*time.Hour)))
	assert.True(t, s.due(now, now.Add(-48*time.Hour)))
}

func TestScheduleDueAnchored(t *testing.T) {
	t.Parallel()

	s, err := newSchedule(24*time.Hour, "22:30")
	require.NoError(t, err)

	day := func(d, hour, min int) time.Time {
		return time.Date(2026, 3, d, hour, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name         string
		now          time.Time
		lastFinished time.Time
		want         bool
	}{
		{
			name:         "same day, anchor not yet reached",
			now:          day(10, 15, 0),
			lastFinished: day(10, 3, 0),
			want:         false,
		},
		{
			name:         "same day, anchor passed since last run",
			now:          day(10, 23, 0),
			lastFinished: day(10, 3, 0),
			want:         true,
		},
		{
			name:         "run finished after the anchor, next day not due yet",
			now:          day(11, 10, 0),
			lastFinished: day(10, 22, 45),
			want:         false,
		},
		{
			name:         "run finished after the anchor, due again next evening",
			now:          day(11, 22, 30),
			lastFinished: day(10, 22, 45),
			want:         true,
		},
		{
			name:         "run finished exactly at the anchor waits a full day",
			now:          day(10, 23, 0),
			lastFinished: day(10, 22, 30),
			want:         false,
		},
		{
			name:         "several days gap is due immediately",
			now:          day(14, 9, 0),
			lastFinished: day(10, 22, 45),
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, s.due(tt.now, tt.lastFinished))
		})
	}
}

func TestNextAnchorAfter(t *testing.T) {
	t.Parallel()

	s, err := newSchedule(24*time.Hour, "22:30")
	require.NoError(t, err)

	before := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC), s.nextAnchorAfter(before))

	at := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 22, 30, 0, 0, time.UTC), s.nextAnchorAfter(at))

	after := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 22, 30, 0, 0, time.UTC), s.nextAnchorAfter(after))
}
