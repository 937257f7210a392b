package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Trims surrounding whitespace",
			input:    "  Acme Corp  ",
			expected: "Acme Corp",
		},
		{
			name:     "CRLF becomes LF",
			input:    "first line\r\nsecond line",
			expected: "first line\nsecond line",
		},
		{
			name:     "Newline runs collapse to two",
			input:    "first\n\n\n\n\nsecond",
			expected: "first\n\nsecond",
		},
		{
			name:     "Space and tab runs collapse",
			input:    "Acme \t  Corp",
			expected: "Acme Corp",
		},
		{
			name:     "Lines are trimmed",
			input:    "first line   \n   second line",
			expected: "first line\nsecond line",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, NormalizeText(test.input))
		})
	}
}

func TestContentHash(t *testing.T) {
	t.Run("Whitespace variants hash equal", func(t *testing.T) {
		a := ContentHash("Acme Corp offers a 30-day free trial.\r\n\r\n\r\nContact sales.")
		b := ContentHash("Acme Corp  offers a 30-day free trial.\n\nContact sales.  ")
		assert.Equal(t, a, b, "Expected whitespace-only differences to not change the content hash")
	})

	t.Run("Content change hashes differently", func(t *testing.T) {
		a := ContentHash("Acme Corp offers a 30-day free trial.")
		b := ContentHash("Acme Corp offers a 14-day free trial.")
		assert.NotEqual(t, a, b)
	})
}

func TestStableSectionID(t *testing.T) {
	id := StableSectionID("https://acme.example/pricing", 3)
	assert.Len(t, id, len("sec_")+16)
	assert.Equal(t, id, StableSectionID("https://acme.example/pricing", 3), "Expected the id to be deterministic")
	assert.NotEqual(t, id, StableSectionID("https://acme.example/pricing", 4), "Expected the chunk index to change the id")
	assert.NotEqual(t, id, StableSectionID("https://acme.example/docs", 3), "Expected the URL to change the id")
}

func TestSectionVersionHash(t *testing.T) {
	a := SectionVersionHash("30-day free trial")
	b := SectionVersionHash("14-day free trial")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, SectionVersionHash("30-day free trial"))
}

func TestCorpusVersionOf(t *testing.T) {
	a := CorpusVersionOf([]string{"h1", "h2", "h3"})
	b := CorpusVersionOf([]string{"h3", "h1", "h2"})
	assert.Equal(t, a, b, "Expected the corpus version to be order-independent")
	assert.NotEqual(t, a, CorpusVersionOf([]string{"h1", "h2"}), "Expected a removed constituent to change the version")
}

func TestEntityCorpusVersion(t *testing.T) {
	a := EntityCorpusVersion(map[string]string{"ent_acme": "Acme Corp", "ent_zeta": "Zeta Inc"})
	b := EntityCorpusVersion(map[string]string{"ent_zeta": "Zeta Inc", "ent_acme": "Acme Corp"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, EntityCorpusVersion(map[string]string{"ent_acme": "Acme Corporation", "ent_zeta": "Zeta Inc"}), "Expected a renamed entity to change the version")
}
