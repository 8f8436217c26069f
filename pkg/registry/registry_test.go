// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg := Default()

	assert.Equal(t, GPT4TurboVision, reg.Default)
	assert.True(t, reg.Has(GPT35Turbo))
	assert.True(t, reg.Has(GPT4Turbo))

	m, ok := reg.Get(GPT4TurboVision)
	require.True(t, ok)
	assert.True(t, m.SupportsVision)

	assert.False(t, reg.Has("gpt-2"))
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	t.Run("valid file", func(t *testing.T) {
		p := write("ok.json", `{"version":"2","default":"local-llava","models":[{"id":"local-llava","supportsVision":true}]}`)
		reg, err := LoadRegistry(p)
		require.NoError(t, err)
		assert.Equal(t, "local-llava", reg.Default)
		assert.True(t, reg.Has("local-llava"))
	})

	t.Run("unknown default", func(t *testing.T) {
		p := write("bad-default.json", `{"default":"x","models":[{"id":"y"}]}`)
		_, err := LoadRegistry(p)
		assert.Error(t, err)
	})

	t.Run("empty catalog", func(t *testing.T) {
		p := write("empty.json", `{"models":[]}`)
		_, err := LoadRegistry(p)
		assert.Error(t, err)
	})

	t.Run("empty path falls back", func(t *testing.T) {
		reg, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Len(t, reg.Models, 3)
	})
}
