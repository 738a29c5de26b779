package config

import (
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMemFs(t *testing.T) afero.Fs {
	t.Helper()
	prev := AppFs
	fs := afero.NewMemMapFs()
	AppFs = fs
	t.Cleanup(func() { AppFs = prev })
	return fs
}

func init() {
	homedir.DisableCache = true
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GQLQB_PROVIDER", "")
	t.Setenv("GQLQB_DEBUG", "")

	t.Run("file values and defaults", func(t *testing.T) {
		fs := useMemFs(t)
		require.NoError(t, afero.WriteFile(fs, "/proj/.gqlqb.yaml", []byte(
			"provider: sqlite\nschema_path: app.schema\nregistry_path: registry.yaml\nrequire_version: \">= 0.1\"\n",
		), 0o644))

		cfg, err := LoadConfig("/proj/.gqlqb.yaml")
		require.NoError(t, err)
		assert.Equal(t, &Config{
			SchemaPath:     "app.schema",
			Provider:       "sqlite",
			RootAlias:      "root",
			RegistryPath:   "registry.yaml",
			RequireVersion: ">= 0.1",
		}, cfg)
	})

	t.Run("environment wins over the file", func(t *testing.T) {
		fs := useMemFs(t)
		require.NoError(t, afero.WriteFile(fs, "/proj/.gqlqb.yaml", []byte("provider: sqlite\n"), 0o644))
		t.Setenv("GQLQB_PROVIDER", "mysql")
		t.Setenv("GQLQB_DEBUG", "true")

		cfg, err := LoadConfig("/proj/.gqlqb.yaml")
		require.NoError(t, err)
		assert.Equal(t, "mysql", cfg.Provider)
		assert.True(t, cfg.Debug)
	})

	t.Run("dotenv files supply DATABASE_URL", func(t *testing.T) {
		fs := useMemFs(t)
		require.NoError(t, afero.WriteFile(fs, ".env", []byte("DATABASE_URL=postgres://base\n"), 0o644))
		require.NoError(t, afero.WriteFile(fs, ".env.local", []byte("DATABASE_URL=postgres://local\n"), 0o644))

		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, "postgres://local", cfg.DatabaseURL)
		assert.Equal(t, "schema.gqlqb", cfg.SchemaPath)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		useMemFs(t)
		_, err := LoadConfig("/nope/.gqlqb.yaml")
		assert.Error(t, err)
	})
}

func TestSaveConfig(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	t.Setenv("GQLQB_PROVIDER", "")
	fs := useMemFs(t)

	path, err := SaveConfig(&Config{SchemaPath: "app.schema", Provider: "postgresql", RootAlias: "root"})
	require.NoError(t, err)
	assert.Equal(t, "/home/test/.config/gqlqb/.gqlqb.yaml", path)

	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.True(t, exists)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgresql", cfg.Provider)
	assert.Equal(t, "app.schema", cfg.SchemaPath)
}
