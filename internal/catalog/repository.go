// Package catalog is the persistence gateway for apartment records.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turireg/apartment-catalog-server/internal/model"
)

// ErrNotFound is returned when no apartment matches the given natural key.
var ErrNotFound = errors.New("apartment not found")

// Repository exposes lookup-by-natural-key and upsert over the catalog
// table. Upsert is atomic with respect to the natural key; concurrent
// writers are additionally serialized by the sync lock.
type Repository interface {
	// FindByNaturalKey returns the apartment with the given registration
	// number, or ErrNotFound.
	FindByNaturalKey(ctx context.Context, key string) (*model.Apartment, error)

	// Upsert inserts the apartment or updates all mutable fields of the
	// existing row with the same natural key.
	Upsert(ctx context.Context, apt *model.Apartment) error

	// Count returns the number of catalog rows.
	Count(ctx context.Context) (int64, error)

	// CountMissingCoordinates returns the number of active rows without a
	// plottable position (null or zero/zero coordinates).
	CountMissingCoordinates(ctx context.Context) (int64, error)

	// ListMissingCoordinates returns the active rows without a plottable
	// position, for the geocode backfill.
	ListMissingCoordinates(ctx context.Context) ([]model.Apartment, error)
}

// missingCoordsPredicate matches rows the geocode backfill must repair.
// Zero/zero is the registry's null marker, not a real position.
const missingCoordsPredicate = `active
  AND (latitude IS NULL OR longitude IS NULL OR (latitude = 0 AND longitude = 0))`

const apartmentColumns = `natural_key, name, address, postal_code, province, municipality,
  locality, sub_locality, phones, email, website, quality_mark, capacity,
  category, specialties, latitude, longitude, accessible, active,
  created_at, updated_at`

// pgRepository is the PostgreSQL-backed Repository implementation
type pgRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a Repository backed by the given connection
// pool. The caller is responsible for closing the pool when done.
func NewPGRepository(pool *pgxpool.Pool) (Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &pgRepository{pool: pool}, nil
}

func (r *pgRepository) FindByNaturalKey(ctx context.Context, key string) (*model.Apartment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+apartmentColumns+` FROM apartments WHERE natural_key = $1`, key)

	apt, err := scanApartment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query apartment %s: %w", key, err)
	}
	return apt, nil
}

func (r *pgRepository) Upsert(ctx context.Context, apt *model.Apartment) error {
	if apt == nil || apt.NaturalKey == "" {
		return fmt.Errorf("apartment with a natural key is required")
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO apartments (
			natural_key, name, address, postal_code, province, municipality,
			locality, sub_locality, phones, email, website, quality_mark,
			capacity, category, specialties, latitude, longitude, accessible, active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (natural_key) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			postal_code = EXCLUDED.postal_code,
			province = EXCLUDED.province,
			municipality = EXCLUDED.municipality,
			locality = EXCLUDED.locality,
			sub_locality = EXCLUDED.sub_locality,
			phones = EXCLUDED.phones,
			email = EXCLUDED.email,
			website = EXCLUDED.website,
			quality_mark = EXCLUDED.quality_mark,
			capacity = EXCLUDED.capacity,
			category = EXCLUDED.category,
			specialties = EXCLUDED.specialties,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			accessible = EXCLUDED.accessible,
			active = EXCLUDED.active,
			updated_at = now()`,
		apt.NaturalKey, apt.Name, apt.Address, apt.PostalCode, apt.Province,
		apt.Municipality, apt.Locality, apt.SubLocality, phonesOrEmpty(apt.Phones),
		apt.Email, apt.Website, apt.QualityMark, apt.Capacity, apt.Category,
		apt.Specialties, apt.Latitude, apt.Longitude, apt.Accessible, apt.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert apartment %s: %w", apt.NaturalKey, err)
	}
	return nil
}

func (r *pgRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM apartments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count apartments: %w", err)
	}
	return n, nil
}

func (r *pgRepository) CountMissingCoordinates(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM apartments WHERE `+missingCoordsPredicate).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count apartments missing coordinates: %w", err)
	}
	return n, nil
}

func (r *pgRepository) ListMissingCoordinates(ctx context.Context) ([]model.Apartment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apartmentColumns+` FROM apartments WHERE `+missingCoordsPredicate+
			` ORDER BY natural_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list apartments missing coordinates: %w", err)
	}
	defer rows.Close()

	var apartments []model.Apartment
	for rows.Next() {
		apt, err := scanApartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan apartment row: %w", err)
		}
		apartments = append(apartments, *apt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate apartment rows: %w", err)
	}
	return apartments, nil
}

func scanApartment(row pgx.Row) (*model.Apartment, error) {
	var apt model.Apartment
	err := row.Scan(
		&apt.NaturalKey, &apt.Name, &apt.Address, &apt.PostalCode, &apt.Province,
		&apt.Municipality, &apt.Locality, &apt.SubLocality, &apt.Phones,
		&apt.Email, &apt.Website, &apt.QualityMark, &apt.Capacity, &apt.Category,
		&apt.Specialties, &apt.Latitude, &apt.Longitude, &apt.Accessible,
		&apt.Active, &apt.CreatedAt, &apt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &apt, nil
}

// phonesOrEmpty keeps the phones column NOT NULL friendly
func phonesOrEmpty(phones []string) []string {
	if phones == nil {
		return []string{}
	}
	return phones
}
