package suggest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProvinceOf(t *testing.T) {
	tests := map[string]string{
		"Rosario, Santa Fe, Argentina":     "Santa Fe",
		"Córdoba":                          "Córdoba",
		"CABA":                             "CABA",
		"Capital Federal":                  "CABA",
		"Palermo, Ciudad de Buenos Aires":  "CABA",
		"Mar del Plata":                    "Buenos Aires",
		"La Plata, Bs. As.":                "Buenos Aires",
		"Hospital Italiano de Rosario":     "Santa Fe",
		"San Miguel de Tucumán":            "Tucumán",
		"Ushuaia":                          "Tierra del Fuego",
		"Neuquen":                          "Neuquén",
		"Madrid, España":                   "",
		"":                                 "",
	}

	for place, expected := range tests {
		require.Equal(t, expected, ProvinceOf(place), place)
	}
}

func TestProvinces(t *testing.T) {
	provinces := Provinces()
	require.Len(t, provinces, 24)
	require.Contains(t, provinces, "CABA")
	require.Contains(t, provinces, "Santiago del Estero")
}
