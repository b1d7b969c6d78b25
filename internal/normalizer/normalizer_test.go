package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turireg/apartment-catalog-server/internal/model"
	"github.com/turireg/apartment-catalog-server/internal/remote"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     remote.RawRecord
		check   func(t *testing.T, apt *model.Apartment)
		skipped bool
		wantErr bool
	}{
		{
			name: "complete record",
			raw: remote.RawRecord{
				"n_registro":    "47-000123-AT",
				"nombre":        "Apartamentos El Mirador",
				"direccion":     "Calle Mayor 12",
				"codigo_postal": "47001",
				"provincia":     "Valladolid",
				"municipio":     "Valladolid",
				"localidad":     "Valladolid",
				"telefono":      "983 123 456",
				"email":         "Info@Mirador.ES",
				"web":           "https://mirador.example",
				"marca_calidad": "Sí",
				"plazas":        float64(6),
				"categoria":     "Primera",
				"accesible":     "No",
				"posicion":      map[string]any{"lat": 41.65, "lon": -4.72},
			},
			check: func(t *testing.T, apt *model.Apartment) {
				assert.Equal(t, "47-000123-AT", apt.NaturalKey)
				assert.Equal(t, "Apartamentos El Mirador", apt.Name)
				assert.Equal(t, "Valladolid", apt.Province)
				require.NotNil(t, apt.Address)
				assert.Equal(t, "Calle Mayor 12", *apt.Address)
				assert.Equal(t, []string{"983123456"}, apt.Phones)
				require.NotNil(t, apt.Email)
				assert.Equal(t, "info@mirador.es", *apt.Email)
				assert.True(t, apt.QualityMark)
				assert.Equal(t, 6, apt.Capacity)
				assert.False(t, apt.Accessible)
				require.NotNil(t, apt.Latitude)
				assert.InDelta(t, 41.65, *apt.Latitude, 1e-9)
				require.NotNil(t, apt.Longitude)
				assert.InDelta(t, -4.72, *apt.Longitude, 1e-9)
				assert.True(t, apt.Active)
			},
		},
		{
			name: "string capacity and affirmative accessible",
			raw: remote.RawRecord{
				"n_registro": "A1",
				"nombre":     "Casa",
				"provincia":  "Burgos",
				"plazas":     "4",
				"accesible":  "Sí",
			},
			check: func(t *testing.T, apt *model.Apartment) {
				assert.Equal(t, "A1", apt.NaturalKey)
				assert.Equal(t, 4, apt.Capacity)
				assert.True(t, apt.Accessible)
			},
		},
		{
			name: "boolean and numeric yes-flags",
			raw: remote.RawRecord{
				"n_registro":    "A2",
				"nombre":        "Casa",
				"provincia":     "Burgos",
				"accesible":     true,
				"marca_calidad": float64(1),
			},
			check: func(t *testing.T, apt *model.Apartment) {
				assert.True(t, apt.Accessible)
				assert.True(t, apt.QualityMark)
			},
		},
		{
			name: "falsy boolean and numeric yes-flags",
			raw: remote.RawRecord{
				"n_registro":    "A3",
				"nombre":        "Casa",
				"provincia":     "Burgos",
				"accesible":     false,
				"marca_calidad": float64(0),
			},
			check: func(t *testing.T, apt *model.Apartment) {
				assert.False(t, apt.Accessible)
				assert.False(t, apt.QualityMark)
			},
		},
		{
			name:    "missing registration number is skipped",
			raw:     remote.RawRecord{"nombre": "Casa", "provincia": "Soria"},
			skipped: true,
		},
		{
			name:    "blank registration number is skipped",
			raw:     remote.RawRecord{"n_registro": "   ", "nombre": "Casa", "provincia": "Soria"},
			skipped: true,
		},
		{
			name:    "missing name is an error",
			raw:     remote.RawRecord{"n_registro": "B2", "provincia": "Soria"},
			wantErr: true,
		},
		{
			name:    "missing province is an error",
			raw:     remote.RawRecord{"n_registro": "B2", "nombre": "Casa"},
			wantErr: true,
		},
		{
			name:    "nil record is an error",
			raw:     nil,
			wantErr: true,
		},
		{
			name: "invalid email is dropped, record kept",
			raw: remote.RawRecord{
				"n_registro": "C3",
				"nombre":     "Casa Rural",
				"provincia":  "Segovia",
				"email":      "not-an-email",
			},
			check: func(t *testing.T, apt *model.Apartment) {
				assert.Nil(t, apt.Email)
			},
		},
		{
			name: "short phone is dropped, valid phones kept in order",
			raw: remote.RawRecord{
				"n_registro": "D4",
				"nombre":     "Casa",
				"provincia":  "Palencia",
				"telefono":   "12345",
				"telefono_2": "+34 979 111 222",
				"telefono_3": "979333444",
			},
			check: func(t *testing.T, apt *model.Apartment) {
				assert.Equal(t, []string{"+34979111222", "979333444"}, apt.Phones)
			},
		},
		{
			name: "numeric postal code coerced to string",
			raw: remote.RawRecord{
				"n_registro":    "E5",
				"nombre":        "Casa",
				"provincia":     "Zamora",
				"codigo_postal": float64(49001),
			},
			check: func(t *testing.T, apt *model.Apartment) {
				require.NotNil(t, apt.PostalCode)
				assert.Equal(t, "49001", *apt.PostalCode)
			},
		},
		{
			name: "incomplete geo point yields no coordinates",
			raw: remote.RawRecord{
				"n_registro": "F6",
				"nombre":     "Casa",
				"provincia":  "Salamanca",
				"posicion":   map[string]any{"lat": 40.97},
			},
			check: func(t *testing.T, apt *model.Apartment) {
				assert.Nil(t, apt.Latitude)
				assert.Nil(t, apt.Longitude)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			apt, err := Normalize(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, apt)
				return
			}
			require.NoError(t, err)
			if tt.skipped {
				assert.Nil(t, apt)
				return
			}
			require.NotNil(t, apt)
			tt.check(t, apt)
		})
	}
}

func TestCleanPhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  *string
	}{
		{"spaces stripped", "983 123 456", strPtr("983123456")},
		{"leading plus kept", "+34 983 123 456", strPtr("+34983123456")},
		{"inner plus dropped", "983+123456789", strPtr("983123456789")},
		{"punctuation stripped", "(983) 12-34-56", strPtr("983123456")},
		{"too short", "12345", nil},
		{"empty", "   ", nil},
		{"letters only", "phone", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := CleanPhone(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestCleanEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  *string
	}{
		{"lowercased and trimmed", "  Info@Example.COM ", strPtr("info@example.com")},
		{"plain valid", "a.b+c@example.org", strPtr("a.b+c@example.org")},
		{"no at sign", "info.example.com", nil},
		{"no domain", "info@", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := CleanEmail(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func strPtr(s string) *string { return &s }
