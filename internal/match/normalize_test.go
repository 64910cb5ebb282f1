package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Moet Magnum 2015", "moet 2015"},
		{"Magnumfest 2015", "magnumfest 2015"},
		{"Krug Grande Cuvée (base 2012) NV", "krug grande cuvée"},
		{"Dom Ruinart (Base 2009) Jeroboam", "dom ruinart"},
		{"Salon 2012 * limited release", "salon 2012"},
		{"Cuvée Magnum*", "cuvée"},
		{"  Blanc   de\tBlancs  ", "blanc de blancs"},
		{"NABUCHODONOSOR Methuselah", ""},
		{"(base nv 2015) Rosé", "rosé"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"Moet Magnum 2015",
		"cuvée magnum*",
		"((base 2015)base 2016)",
		"(base nv 2015) x",
		"Vintage  2008 * (base 2001)",
		"Perrier-Jouët Belle Epoque NV Magnum",
		"*",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizerCustomTokens(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"Half", "rehoboam"})
	assert.Equal(t, "brut magnum", n.Normalize("Brut Half Magnum Rehoboam"))
	assert.Equal(t, "brut", NewNormalizer([]string{}).Normalize("Brut"))
	assert.Equal(t, "brut nv", NewNormalizer([]string{}).Normalize("Brut NV"))
}
