// Package model defines the catalog entities shared across the server.
package model

import "time"

// Apartment is a tourist apartment as stored in the local catalog.
//
// NaturalKey is the registration number assigned by the external
// open-data registry and is the sole durable identity of a record:
// re-synchronizing an already-seen key updates the existing row in
// place. Optional descriptive fields are pointers so that "absent" and
// "empty" stay distinguishable all the way to the database.
type Apartment struct {
	NaturalKey string

	Name         string
	Address      *string
	PostalCode   *string
	Province     string
	Municipality *string
	Locality     *string
	SubLocality  *string

	// Phones holds up to three cleaned contact numbers. Invalid numbers
	// are dropped during normalization, never stored.
	Phones  []string
	Email   *string
	Website *string

	QualityMark bool
	Capacity    int
	Category    *string
	Specialties *string

	// Latitude and Longitude may come from the registry's geo point or
	// from the geocode backfill. Both nil means the record is eligible
	// for backfill.
	Latitude  *float64
	Longitude *float64

	Accessible bool
	Active     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCoordinates reports whether the apartment carries a plottable
// position. A zero/zero pair is treated as missing; the registry uses
// it as a null marker.
func (a *Apartment) HasCoordinates() bool {
	if a.Latitude == nil || a.Longitude == nil {
		return false
	}
	return *a.Latitude != 0 || *a.Longitude != 0
}
