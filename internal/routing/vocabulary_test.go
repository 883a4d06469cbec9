package routing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabularyCanonicalizes(t *testing.T) {
	v := DefaultVocabulary()
	assert.Equal(t, "medical aid", v.Canonical("First  Aid"))
	assert.Equal(t, "food & water", v.Canonical("Drinking water"))
	assert.Equal(t, "boats", v.Canonical(" Boats "))
}

func TestVocabularyTokensSplitAndDedupe(t *testing.T) {
	v := DefaultVocabulary()
	got := v.Tokens([]string{"Rescue / SAR; evacuation", "doctors|nurses\nboats"})
	assert.Equal(t, []string{"search and rescue", "medical aid", "boats"}, got)
}

func TestVocabularyPreferredFallsBackToDefault(t *testing.T) {
	v := DefaultVocabulary()
	assert.Equal(t, []string{"medical aid", "ambulance support"}, v.Preferred("Epidemic"))
	assert.Equal(t, v.Preferred("default"), v.Preferred("unknown_kind"))
}

func TestLoadVocabularyCustom(t *testing.T) {
	src := `
capabilities:
  - name: boats
    synonyms: [dinghy, rafts]
preferences:
  flood: [rafts]
  default: [boats]
`
	v, err := LoadVocabulary(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"boats"}, v.Preferred("flood"))
	assert.Equal(t, 1.0, ServiceMatch("flood", []string{"Dinghy"}, v))
}

func TestLoadVocabularyRequiresDefault(t *testing.T) {
	_, err := LoadVocabulary(strings.NewReader("preferences:\n  flood: [boats]\n"))
	require.Error(t, err)
}
