package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --data-dir
// on both "vecshard serve" and "vecshard exec").
type Flag struct {
	// Name is the long flag name (e.g. "data-dir").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.data_dir").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen         = "listen"
	FlagStorageDriver  = "storage-driver"
	FlagDataDir        = "data-dir"
	FlagPostgresDSN    = "postgres-dsn"
	FlagEmbeddingProv  = "embedding-provider"
	FlagEmbeddingTgt   = "embedding-target"
	FlagEmbeddingModel = "embedding-model"
	FlagEmbeddingDims  = "embedding-dimensions"
	FlagTokenLimit     = "token-limit"
	FlagEncoding       = "encoding"
	FlagJWTSecret      = "jwt-secret"
	FlagDefaultUser    = "user"
	FlagEventsProvider = "events-provider"
	FlagEventsBrokers  = "kafka-brokers"
	FlagEventsTopic    = "kafka-topic"
)

// Flags is the registry of every flag shared between commands.
var Flags = FlagSet{
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagStorageDriver:  {Name: "storage-driver", ViperKey: "storage.driver", Description: "Shard storage backend (sqlite, postgres)"},
	FlagDataDir:        {Name: "data-dir", ViperKey: "storage.data_dir", Description: "Directory holding one SQLite file per shard (default: in-memory)"},
	FlagPostgresDSN:    {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string for the postgres backend"},
	FlagEmbeddingProv:  {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, openai, hash)"},
	FlagEmbeddingTgt:   {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel: {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:  {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensions"},
	FlagTokenLimit:     {Name: "token-limit", ViperKey: "chunking.token_limit", Description: "Largest document, in tokens, embedded without chunking"},
	FlagEncoding:       {Name: "encoding", ViperKey: "chunking.encoding", Description: "Tokenizer encoding (cl100k_base, o200k_base, words)"},
	FlagJWTSecret:      {Name: "jwt-secret", ViperKey: "auth.jwt_secret", Description: "HMAC secret for verifying bearer tokens"},
	FlagDefaultUser:    {Name: "user", Shorthand: "u", ViperKey: "auth.default_user", Description: "User id for requests without a bearer token"},
	FlagEventsProvider: {Name: "events-provider", ViperKey: "events.provider", Description: "Mutation event publisher (none, kafka)"},
	FlagEventsBrokers:  {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka broker addresses"},
	FlagEventsTopic:    {Name: "kafka-topic", ViperKey: "events.topic", Description: "Kafka topic for mutation events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// ServiceFlags are the registry keys shared by every command that opens shards.
var ServiceFlags = []string{
	FlagStorageDriver,
	FlagDataDir,
	FlagPostgresDSN,
	FlagEmbeddingProv,
	FlagEmbeddingTgt,
	FlagEmbeddingModel,
	FlagEmbeddingDims,
	FlagTokenLimit,
	FlagEncoding,
	FlagJWTSecret,
	FlagDefaultUser,
	FlagEventsProvider,
	FlagEventsBrokers,
	FlagEventsTopic,
}

// AddServiceFlags registers every flag in ServiceFlags on cmd. Values are
// read back through viper after BindRegisteredFlags, so the targets are
// only placeholders.
func AddServiceFlags(cmd *cobra.Command) {
	scratch := &Config{}

	AddStringFlag(cmd, Flags, FlagStorageDriver, &scratch.Storage.Driver)
	AddStringFlag(cmd, Flags, FlagDataDir, &scratch.Storage.DataDir)
	AddStringFlag(cmd, Flags, FlagPostgresDSN, &scratch.Storage.PostgresDSN)
	AddStringFlag(cmd, Flags, FlagEmbeddingProv, &scratch.Embedding.Provider)
	AddStringFlag(cmd, Flags, FlagEmbeddingTgt, &scratch.Embedding.Target)
	AddStringFlag(cmd, Flags, FlagEmbeddingModel, &scratch.Embedding.Model)
	AddUintFlag(cmd, Flags, FlagEmbeddingDims, &scratch.Embedding.Dimensions)
	AddUintFlag(cmd, Flags, FlagTokenLimit, &scratch.Chunking.TokenLimit)
	AddStringFlag(cmd, Flags, FlagEncoding, &scratch.Chunking.Encoding)
	AddStringFlag(cmd, Flags, FlagJWTSecret, &scratch.Auth.JWTSecret)
	AddStringFlag(cmd, Flags, FlagDefaultUser, &scratch.Auth.DefaultUser)
	AddStringFlag(cmd, Flags, FlagEventsProvider, &scratch.Events.Provider)
	AddStringFlag(cmd, Flags, FlagEventsBrokers, &scratch.Events.Brokers)
	AddStringFlag(cmd, Flags, FlagEventsTopic, &scratch.Events.Topic)
}
