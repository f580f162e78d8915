package tracked

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEntities(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tracked.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeEntities(t, `
entities:
  - key: "10.0.0.1:27000"
    name: Alpha
    color: "#40c4ff"
    probe: true
  - key: "10.0.0.2:27000"
`)

	entities, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, Entity{Key: "10.0.0.1:27000", Name: "Alpha", Color: "#40c4ff", Probe: true}, entities[0])
	assert.Equal(t, Entity{Key: "10.0.0.2:27000"}, entities[1])
}

func TestLoadMissingKey(t *testing.T) {
	path := writeEntities(t, `
entities:
  - name: Nameless
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "missing key")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeEntities(t, "entities: [")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegistryEntitiesReturnsCopy(t *testing.T) {
	r := NewRegistry([]Entity{{Key: "a:1"}, {Key: "b:2"}})

	got := r.Entities()
	got[0].Key = "mutated"

	assert.Equal(t, "a:1", r.Entities()[0].Key)
}

func TestRegistrySet(t *testing.T) {
	r := NewRegistry([]Entity{{Key: "a:1"}})
	r.Set([]Entity{{Key: "b:2"}, {Key: "c:3"}})

	entities := r.Entities()
	require.Len(t, entities, 2)
	assert.Equal(t, "b:2", entities[0].Key)
}
