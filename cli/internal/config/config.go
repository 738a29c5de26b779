// Package config loads CLI settings from a config file, .env files and the
// environment.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem config, .env, schema and registry files are read
// from.
var AppFs = afero.NewOsFs()

const (
	configName = ".gqlqb"
	envPrefix  = "GQLQB"
)

// Config holds the application configuration.
type Config struct {
	SchemaPath   string
	Provider     string
	DatabaseURL  string
	RootAlias    string
	RegistryPath string
	// RequireVersion is a version constraint the CLI must satisfy.
	RequireVersion string
	Debug          bool
}

// LoadConfig loads configuration. file overrides the config file search
// when set. Environment variables prefixed with GQLQB_ win over the file;
// .env and then .env.local are loaded into the environment first.
func LoadConfig(file string) (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	if err := loadEnvFile(".env", false); err != nil {
		return nil, err
	}
	if err := loadEnvFile(".env.local", true); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "gqlqb"))
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("schema_path", "schema.gqlqb")
	v.SetDefault("root_alias", "root")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		SchemaPath:     v.GetString("schema_path"),
		Provider:       v.GetString("provider"),
		DatabaseURL:    v.GetString("database_url"),
		RootAlias:      v.GetString("root_alias"),
		RegistryPath:   v.GetString("registry_path"),
		RequireVersion: v.GetString("require_version"),
		Debug:          v.GetBool("debug"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

// SaveConfig writes cfg to $HOME/.config/gqlqb/.gqlqb.yaml and returns the
// path written.
func SaveConfig(cfg *Config) (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.Set("schema_path", cfg.SchemaPath)
	v.Set("provider", cfg.Provider)
	v.Set("root_alias", cfg.RootAlias)
	if cfg.RegistryPath != "" {
		v.Set("registry_path", cfg.RegistryPath)
	}
	if cfg.RequireVersion != "" {
		v.Set("require_version", cfg.RequireVersion)
	}

	dir := filepath.Join(home, ".config", "gqlqb")
	if err := AppFs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, configName+".yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return "", err
	}
	return path, nil
}

// loadEnvFile sets the variables of a dotenv file. Unless override is set,
// variables that already have a value are kept.
func loadEnvFile(name string, override bool) error {
	f, err := AppFs.Open(name)
	if err != nil {
		return nil
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return err
	}
	for k, val := range env {
		if !override && os.Getenv(k) != "" {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}
