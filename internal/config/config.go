// Package config loads registry configuration from the environment,
// prefixed REGISTMILY_, following the conventions of the services this
// registry is modeled on: typed fields, explicit defaults, one
// validation pass at startup.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

const envPrefix = "REGISTMILY_"

// Config is the registry process's full configuration.
type Config struct {
	RepoPath            string
	StoragePath         string
	DatabaseURL         string
	DatabaseConnections int
	ListenAddr          string
	PublicBaseURL       string

	OpenIDAuthEndpoint  string
	OpenIDTokenEndpoint string
	OpenIDClientID      string
	OpenIDClientSecret  string
	OpenIDNonce         string
	JWTKeyConfig        string
}

func getenv(name, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from the environment and validates it. It
// fails fast -- any missing required field is reported together rather
// than one at a time.
func Load() (*Config, error) {
	c := &Config{
		RepoPath:            getenv("REPO_PATH", "./data/index"),
		StoragePath:         getenv("STORAGE_PATH", "./data/storage"),
		DatabaseURL:         getenv("DATABASE_URL", "./data/registry.db"),
		DatabaseConnections: 1,
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		PublicBaseURL:       getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		OpenIDAuthEndpoint:  getenv("OPENID_AUTH_ENDPOINT", ""),
		OpenIDTokenEndpoint: getenv("OPENID_TOKEN_ENDPOINT", ""),
		OpenIDClientID:      getenv("OPENID_CLIENT_ID", ""),
		OpenIDClientSecret:  getenv("OPENID_CLIENT_SECRET", ""),
		OpenIDNonce:         getenv("OPENID_NONCE", ""),
		JWTKeyConfig:        getenv("JWT_KEY_CONFIG", ""),
	}
	if v := getenv("DATABASE_CONNECTIONS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %sDATABASE_CONNECTIONS", envPrefix)
		}
		c.DatabaseConnections = n
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.RepoPath == "" {
		missing = append(missing, "REPO_PATH")
	}
	if c.StoragePath == "" {
		missing = append(missing, "STORAGE_PATH")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return errors.Errorf("config: missing required settings: %v", missing)
	}
	return nil
}
