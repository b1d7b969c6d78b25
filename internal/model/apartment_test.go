package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCoordinates(t *testing.T) {
	t.Parallel()

	ptr := func(f float64) *float64 { return &f }

	tests := []struct {
		name string
		lat  *float64
		lon  *float64
		want bool
	}{
		{"both set", ptr(41.65), ptr(-4.72), true},
		{"both nil", nil, nil, false},
		{"latitude only", ptr(41.65), nil, false},
		{"longitude only", nil, ptr(-4.72), false},
		{"zero zero is the null marker", ptr(0), ptr(0), false},
		{"zero latitude alone is valid", ptr(0), ptr(-4.72), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			apt := &Apartment{Latitude: tt.lat, Longitude: tt.lon}
			assert.Equal(t, tt.want, apt.HasCoordinates())
		})
	}
}
