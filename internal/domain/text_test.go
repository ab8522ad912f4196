package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"accented", "Medellín", "medellin"},
		{"upper", "MEDELLIN", "medellin"},
		{"lower accented", "medellín", "medellin"},
		{"padded", "  Medellin  ", "medellin"},
		{"upper accented", "BOGOTÁ, D.C.", "bogota, d.c."},
		{"tilde n", "Cúcuta Señor", "cucuta senor"},
		{"decomposed input", "Medelli\u0301n", "medellin"},
		{"nil", nil, ""},
		{"empty", "", ""},
		{"number", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeText(tt.input))
		})
	}
}

func TestNormalizeText_Idempotent(t *testing.T) {
	inputs := []string{
		"Medellín", "  MEDELLÍN ", "a \u0301", "Ñuñoa", "İstanbul", "\u0301", "Pasto (Nariño)", "",
	}
	for _, s := range inputs {
		once := NormalizeText(s)
		assert.Equal(t, once, NormalizeText(once), "input %q", s)
	}
}

func TestSameText(t *testing.T) {
	for _, v := range []string{"Medellín", "MEDELLIN", "medellín", "  Medellin  "} {
		assert.True(t, SameText(v, "medellin"), v)
	}
	assert.False(t, SameText("Bello", "medellin"))
	assert.True(t, SameText(nil, ""))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "medellin", Slug("Medellín"))
	assert.Equal(t, "bogota_d_c", Slug(" Bogotá, D.C. "))
	assert.Equal(t, "santa_marta", Slug("Santa   Marta"))
	assert.Empty(t, Slug("  "))
}
