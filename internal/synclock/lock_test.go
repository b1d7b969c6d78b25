package synclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsStale(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := &pgService{
		maxRunDuration: 30 * time.Minute,
		now:            func() time.Time { return now },
	}

	tests := []struct {
		name string
		lock *Lock
		want bool
	}{
		{"nil lock", nil, false},
		{"just acquired", &Lock{AcquiredAt: now}, false},
		{"within ceiling", &Lock{AcquiredAt: now.Add(-29 * time.Minute)}, false},
		{"exactly at ceiling", &Lock{AcquiredAt: now.Add(-30 * time.Minute)}, false},
		{"past ceiling", &Lock{AcquiredAt: now.Add(-31 * time.Minute)}, true},
		{"hours old", &Lock{AcquiredAt: now.Add(-5 * time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, svc.IsStale(tt.lock))
		})
	}
}

func TestNewPGServiceValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPGService(nil, 30*time.Minute)
	assert.Error(t, err)
}
