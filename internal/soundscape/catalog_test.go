package soundscape

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/attune/pkg/models"
)

func TestDefaultCatalog(t *testing.T) {
	r := Default()
	require.NotNil(t, r)
	assert.True(t, r.Has("rain"))
	assert.True(t, r.Has("ocean"))
	assert.False(t, r.Has("jackhammer"))
	assert.Len(t, r.Keys(), len(r.All()))
}

func TestLoadMissingFile(t *testing.T) {
	r, err := Load("/nonexistent/path/that/does/not/exist.yml")
	require.NoError(t, err)
	assert.True(t, r.Has("forest"))

	r, err = Load("")
	require.NoError(t, err)
	assert.True(t, r.Has("forest"))
}

func TestLoadValidYAML(t *testing.T) {
	const yamlContent = `
soundscapes:
  - key: cafe
    name: Cafe
    description: Quiet cafe murmur
    stress: [Low]
  - key: storm
    name: Storm
    description: Distant thunder
    stress: [High]
`
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))

	r, err := Load(path)
	require.NoError(t, err)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, models.SoundscapeKey("cafe"), all[0].Key)
	assert.Equal(t, models.SoundscapeKey("storm"), all[1].Key)

	s, ok := r.Get("storm")
	require.True(t, ok)
	assert.Equal(t, "Distant thunder", s.Description)

	_, ok = r.Get("rain")
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "invalid yaml", yaml: ":\tinvalid:\tyaml:\t[unclosed"},
		{name: "empty catalog", yaml: "soundscapes: []"},
		{name: "missing key", yaml: "soundscapes:\n  - name: x\n"},
		{name: "duplicate key", yaml: "soundscapes:\n  - key: a\n  - key: a\n"},
		{name: "bad stress", yaml: "soundscapes:\n  - key: a\n    stress: [Frantic]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
			assert.Nil(t, r)
		})
	}
}

func TestKeysSorted(t *testing.T) {
	r, err := Parse([]byte("soundscapes:\n  - key: zebra\n  - key: alpha\n  - key: mango\n"))
	require.NoError(t, err)
	assert.Equal(t, []models.SoundscapeKey{"alpha", "mango", "zebra"}, r.Keys())
}

func TestForStress(t *testing.T) {
	r, err := Parse([]byte(`
soundscapes:
  - key: a
    stress: [High]
  - key: b
    stress: [Low, High]
  - key: c
`))
	require.NoError(t, err)

	high := r.ForStress(models.StressHigh)
	require.Len(t, high, 2)
	assert.Equal(t, models.SoundscapeKey("a"), high[0].Key)

	// Nothing tagged Medium, so everything is eligible.
	assert.Len(t, r.ForStress(models.StressMedium), 3)
}

func TestPromptList(t *testing.T) {
	r, err := Parse([]byte("soundscapes:\n  - key: rain\n    description: Soft rain\n"))
	require.NoError(t, err)
	assert.Equal(t, "- rain: Soft rain\n", r.PromptList())
}
