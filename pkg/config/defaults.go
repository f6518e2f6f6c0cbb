package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8080"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultTokenLimit   = 8000
	defaultChunkRatio   = 0.8
	defaultOverlapRatio = 0.1
	defaultEncoding     = "cl100k_base"

	defaultUser = "local"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "vecshard.mutations"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Chunking: ChunkingConfig{
			TokenLimit:   defaultTokenLimit,
			ChunkRatio:   defaultChunkRatio,
			OverlapRatio: defaultOverlapRatio,
			Encoding:     defaultEncoding,
		},
		Auth: AuthConfig{
			DefaultUser: defaultUser,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
