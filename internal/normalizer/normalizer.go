// Package normalizer converts raw registry records into typed catalog
// entities. It is the only component that knows the external field
// names, so changes in the source schema are contained here.
package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/turireg/apartment-catalog-server/internal/model"
	"github.com/turireg/apartment-catalog-server/internal/remote"
)

// External field names as published by the open-data registry
const (
	fieldRegistrationNumber = "n_registro"
	fieldName               = "nombre"
	fieldAddress            = "direccion"
	fieldPostalCode         = "codigo_postal"
	fieldProvince           = "provincia"
	fieldMunicipality       = "municipio"
	fieldLocality           = "localidad"
	fieldSubLocality        = "nucleo"
	fieldEmail              = "email"
	fieldWebsite            = "web"
	fieldQualityMark        = "marca_calidad"
	fieldCapacity           = "plazas"
	fieldCategory           = "categoria"
	fieldSpecialties        = "especialidades"
	fieldAccessible         = "accesible"
	fieldPosition           = "posicion"
)

// phoneFields are checked in order; at most maxPhones survive cleaning
var phoneFields = []string{"telefono", "telefono_2", "telefono_3"}

const (
	maxPhones      = 3
	minPhoneDigits = 9
)

// affirmative holds the lowercased source tokens treated as true.
// Anything else, including an absent field, is false.
var affirmative = map[string]bool{
	"sí": true, "si": true, "yes": true, "true": true, "1": true, "s": true,
}

var emailRe = regexp.MustCompile(`^[a-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+$`)

// Normalize converts one raw registry record into an Apartment.
//
// It returns (nil, nil) when the record carries no usable registration
// number: such records are skipped, not counted as errors. Every other
// cleaning rule is applied independently and tolerates missing input;
// an invalid phone or email is dropped to nil rather than failing the
// record. A non-nil error means the record could not be represented at
// all and should be counted by the caller.
func Normalize(raw remote.RawRecord) (*model.Apartment, error) {
	if raw == nil {
		return nil, fmt.Errorf("nil record")
	}

	naturalKey := strings.TrimSpace(stringField(raw, fieldRegistrationNumber))
	if naturalKey == "" {
		return nil, nil
	}

	name := strings.TrimSpace(stringField(raw, fieldName))
	if name == "" {
		return nil, fmt.Errorf("record %s: missing name", naturalKey)
	}

	province := strings.TrimSpace(stringField(raw, fieldProvince))
	if province == "" {
		return nil, fmt.Errorf("record %s: missing province", naturalKey)
	}

	apt := &model.Apartment{
		NaturalKey:   naturalKey,
		Name:         name,
		Province:     province,
		Address:      optionalString(raw, fieldAddress),
		PostalCode:   optionalString(raw, fieldPostalCode),
		Municipality: optionalString(raw, fieldMunicipality),
		Locality:     optionalString(raw, fieldLocality),
		SubLocality:  optionalString(raw, fieldSubLocality),
		Email:        CleanEmail(stringField(raw, fieldEmail)),
		Website:      optionalString(raw, fieldWebsite),
		QualityMark:  parseAffirmative(raw[fieldQualityMark]),
		Capacity:     parseCapacity(raw[fieldCapacity]),
		Category:     optionalString(raw, fieldCategory),
		Specialties:  optionalString(raw, fieldSpecialties),
		Accessible:   parseAffirmative(raw[fieldAccessible]),
		Active:       true,
	}

	for _, field := range phoneFields {
		if len(apt.Phones) == maxPhones {
			break
		}
		if phone := CleanPhone(stringField(raw, field)); phone != nil {
			apt.Phones = append(apt.Phones, *phone)
		}
	}

	apt.Latitude, apt.Longitude = parseGeoPoint(raw[fieldPosition])

	return apt, nil
}

// CleanPhone strips everything except digits and a leading '+'. Numbers
// with fewer than 9 digits are discarded.
func CleanPhone(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var b strings.Builder
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if digits < minPhoneDigits {
		return nil
	}
	cleaned := b.String()
	return &cleaned
}

// CleanEmail lowercases, trims and validates an email address,
// returning nil when it does not pass the syntax check.
func CleanEmail(s string) *string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || !emailRe.MatchString(s) {
		return nil
	}
	return &s
}

// stringField returns the named field as a string, coercing numbers the
// source occasionally emits for text columns (e.g. postal codes).
func stringField(raw remote.RawRecord, field string) string {
	switch v := raw[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func optionalString(raw remote.RawRecord, field string) *string {
	s := strings.TrimSpace(stringField(raw, field))
	if s == "" {
		return nil
	}
	return &s
}

// parseAffirmative interprets the registry's yes-flags, which arrive as
// strings but occasionally as JSON booleans or numbers.
func parseAffirmative(v any) bool {
	switch t := v.(type) {
	case string:
		return affirmative[strings.ToLower(strings.TrimSpace(t))]
	case bool:
		return t
	case float64:
		return t == 1
	default:
		return false
	}
}

func parseCapacity(v any) int {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || i < 0 {
			return 0
		}
		return i
	default:
		return 0
	}
}

// parseGeoPoint reads the nested geo point field. An absent or
// incomplete point yields nil/nil, leaving the record eligible for the
// geocode backfill.
func parseGeoPoint(v any) (*float64, *float64) {
	point, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	lat, latOK := point["lat"].(float64)
	lon, lonOK := point["lon"].(float64)
	if !latOK || !lonOK {
		return nil, nil
	}
	return &lat, &lon
}
