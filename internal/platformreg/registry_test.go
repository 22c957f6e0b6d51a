package platformreg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPlatformsYAML = `platforms:
  bitget:
    slug: bitget
    name: Bitget
    api_enabled: true
    color: "#00F0FF"
    schema:
      type: object
      required: [date, equity]
      properties:
        date:
          type: string
        equity:
          type: number
          exclusiveMinimum: 0
  etoro:
    name: eToro
    api_enabled: false
`

func writeTestFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platforms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPlatformsYAML), 0o644))
	return path
}

func TestNewRegistryLoadsDefinitions(t *testing.T) {
	reg, err := NewRegistry(writeTestFile(t))
	require.NoError(t, err)

	snap := reg.Snapshot()
	assert.Len(t, snap.Definitions, 2)
	assert.EqualValues(t, 1, snap.Version)

	def, ok := reg.Definition("bitget")
	require.True(t, ok)
	assert.Equal(t, "Bitget", def.Name)
	assert.True(t, def.APIEnabled)

	// slug falls back to the map key when omitted
	def, ok = reg.Definition("etoro")
	require.True(t, ok)
	assert.Equal(t, "etoro", def.Slug)
	assert.False(t, def.APIEnabled)
}

func TestSeedRecordsSortedBySlug(t *testing.T) {
	reg, err := NewRegistry(writeTestFile(t))
	require.NoError(t, err)

	records := reg.SeedRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "bitget", records[0].Slug)
	assert.Equal(t, "etoro", records[1].Slug)
	assert.Equal(t, "#00F0FF", records[0].Color)
}

func TestValidateObservation(t *testing.T) {
	reg, err := NewRegistry(writeTestFile(t))
	require.NoError(t, err)

	assert.NoError(t, reg.ValidateObservation("bitget", []byte(`{"date":"2024-06-10","equity":350.5}`)))
	assert.Error(t, reg.ValidateObservation("bitget", []byte(`{"date":"2024-06-10"}`)))
	assert.Error(t, reg.ValidateObservation("bitget", []byte(`{"date":"2024-06-10","equity":-1}`)))
	assert.Error(t, reg.ValidateObservation("bitget", []byte(`not json`)))
	assert.Error(t, reg.ValidateObservation("nope", []byte(`{}`)))

	// no schema means anything goes
	assert.NoError(t, reg.ValidateObservation("etoro", []byte(`{"whatever":true}`)))
}

func TestRegistryRequiresPath(t *testing.T) {
	_, err := NewRegistry("")
	assert.Error(t, err)
}
