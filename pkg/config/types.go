package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent vecshard configuration stored as
// config.toml in the .vecshard/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Auth      AuthConfig      `toml:"auth"`
	Events    EventsConfig    `toml:"events"`
}

// StorageConfig selects the shard storage backend.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"driver,omitempty"`

	// DataDir holds one SQLite file per shard. Empty keeps shards in memory.
	DataDir string `toml:"data_dir,omitempty"`

	// PostgresDSN is the connection string used by the postgres driver.
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKeyEnv  string `toml:"api_key_env,omitempty"`

	// APIKey is resolved at startup from the credentials store, never
	// written to config.toml.
	APIKey string `toml:"-"`
}

// ChunkingConfig controls when and how documents are split before
// embedding.
type ChunkingConfig struct {
	TokenLimit   uint    `toml:"token_limit,omitempty"`
	ChunkRatio   float64 `toml:"chunk_ratio,omitempty"`
	OverlapRatio float64 `toml:"overlap_ratio,omitempty"`
	Encoding     string  `toml:"encoding,omitempty"`
}

// AuthConfig selects how callers are identified. With a JWT secret, bearer
// tokens are verified and DefaultUser is used for requests without one.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret,omitempty"`
	DefaultUser string `toml:"default_user,omitempty"`
}

// EventsConfig selects the mutation event publisher.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of Kafka broker addresses.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers into addresses.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func ratioKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if f <= 0 || f > 1 {
				return fmt.Errorf("invalid value for %s: %v is not in (0, 1]", name, f)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver":       stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.data_dir":     stringKey(func(c *Config) *string { return &c.Storage.DataDir }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"embedding.provider":    stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":      stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":       stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":  uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.api_key_env": stringKey(func(c *Config) *string { return &c.Embedding.APIKeyEnv }),

	"chunking.token_limit":   uintKey("chunking.token_limit", func(c *Config) *uint { return &c.Chunking.TokenLimit }),
	"chunking.chunk_ratio":   ratioKey("chunking.chunk_ratio", func(c *Config) *float64 { return &c.Chunking.ChunkRatio }),
	"chunking.overlap_ratio": ratioKey("chunking.overlap_ratio", func(c *Config) *float64 { return &c.Chunking.OverlapRatio }),
	"chunking.encoding":      stringKey(func(c *Config) *string { return &c.Chunking.Encoding }),

	"auth.jwt_secret":   stringKey(func(c *Config) *string { return &c.Auth.JWTSecret }),
	"auth.default_user": stringKey(func(c *Config) *string { return &c.Auth.DefaultUser }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
}
