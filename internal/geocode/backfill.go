// Package geocode assigns approximate coordinates to catalog records
// the registry did not geotag.
//
// This is deliberately not real geocoding. Each record is placed near a
// per-province reference point with a small jitter derived from its
// natural key, so the map-rendering consumer always has a point to plot
// and the same record always lands on the same point.
package geocode

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/turireg/apartment-catalog-server/internal/catalog"
	"github.com/turireg/apartment-catalog-server/internal/logger"
)

// jitterSpan bounds the offset applied around a reference point, in
// degrees (~±17 km N-S)
const jitterSpan = 0.15

type referencePoint struct {
	lat, lon float64
}

// provinceRefs maps lowercased province names to their capital's
// approximate position
var provinceRefs = map[string]referencePoint{
	"ávila":      {40.656, -4.700},
	"avila":      {40.656, -4.700},
	"burgos":     {42.344, -3.697},
	"león":       {42.599, -5.571},
	"leon":       {42.599, -5.571},
	"palencia":   {42.010, -4.532},
	"salamanca":  {40.970, -5.663},
	"segovia":    {40.948, -4.118},
	"soria":      {41.764, -2.465},
	"valladolid": {41.652, -4.724},
	"zamora":     {41.503, -5.744},
}

// fallbackRef is used for unknown provinces: a rough geographic center
// of the covered region
var fallbackRef = referencePoint{41.7, -4.7}

// Backfill repairs missing coordinates through the catalog repository
type Backfill struct {
	repo catalog.Repository
}

// New creates a Backfill over the given repository
func New(repo catalog.Repository) *Backfill {
	return &Backfill{repo: repo}
}

// NeedsBackfill reports whether any active record lacks coordinates.
// It is a single count query, cheap enough to run on every page load.
func (b *Backfill) NeedsBackfill(ctx context.Context) (bool, error) {
	n, err := b.repo.CountMissingCoordinates(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BackfillMissingCoordinates assigns a position to every active record
// without one and returns how many records were updated. Records that
// already carry coordinates are never touched, so repeated calls are
// idempotent: the second call in a row updates nothing.
func (b *Backfill) BackfillMissingCoordinates(ctx context.Context) (int, error) {
	missing, err := b.repo.ListMissingCoordinates(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range missing {
		apt := missing[i]
		lat, lon := PointFor(apt.Province, apt.NaturalKey)
		apt.Latitude = &lat
		apt.Longitude = &lon

		if err := b.repo.Upsert(ctx, &apt); err != nil {
			logger.Warnf("Geocode backfill: failed to update %s: %v", apt.NaturalKey, err)
			continue
		}
		updated++
	}
	return updated, nil
}

// PointFor returns the deterministic approximate position for a record:
// the province reference point plus a bounded jitter derived from the
// natural key.
func PointFor(province, naturalKey string) (float64, float64) {
	ref, ok := provinceRefs[strings.ToLower(strings.TrimSpace(province))]
	if !ok {
		ref = fallbackRef
	}
	latOff, lonOff := jitter(naturalKey)
	return ref.lat + latOff, ref.lon + lonOff
}

// jitter maps a natural key to a pair of offsets in [-jitterSpan, jitterSpan]
func jitter(naturalKey string) (float64, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(naturalKey))
	sum := h.Sum64()

	latUnit := float64(sum&0xffff) / 0xffff
	lonUnit := float64((sum>>16)&0xffff) / 0xffff
	return (latUnit*2 - 1) * jitterSpan, (lonUnit*2 - 1) * jitterSpan
}
