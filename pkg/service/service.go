// Package service assembles a running vecshard from configuration: the
// embedder, tokenizer, access gateway and event publisher shared by every
// shard, and the registry that opens shards on first use.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/auth"
	"github.com/papercomputeco/vecshard/pkg/chunker"
	"github.com/papercomputeco/vecshard/pkg/config"
	"github.com/papercomputeco/vecshard/pkg/credentials"
	"github.com/papercomputeco/vecshard/pkg/dispatch"
	"github.com/papercomputeco/vecshard/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/vecshard/pkg/embeddings/utils"
	"github.com/papercomputeco/vecshard/pkg/engine"
	"github.com/papercomputeco/vecshard/pkg/eventstream"
	"github.com/papercomputeco/vecshard/pkg/eventstream/kafka"
	"github.com/papercomputeco/vecshard/pkg/eventstream/nop"
	"github.com/papercomputeco/vecshard/pkg/shard"
	"github.com/papercomputeco/vecshard/pkg/storage"
	"github.com/papercomputeco/vecshard/pkg/storage/postgres"
	"github.com/papercomputeco/vecshard/pkg/storage/sqlite"
)

// postgresSchemaPrefix namespaces shard schemas inside a shared database.
const postgresSchemaPrefix = "shard_"

// Service routes operations to per-shard dispatchers.
type Service struct {
	cfg       *config.Config
	embedder  embeddings.Embedder
	tokenizer chunker.Tokenizer
	gateway   auth.Gateway
	publisher eventstream.Publisher
	registry  *shard.Registry
	logger    *zap.Logger
}

// Option overrides a collaborator built from configuration.
type Option func(*Service)

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(s *Service) { s.embedder = e }
}

// WithGateway replaces the configured access gateway.
func WithGateway(g auth.Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithPublisher replaces the configured event publisher.
func WithPublisher(p eventstream.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New builds a Service from cfg. Shards are not opened until first used.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.embedder == nil {
		s.embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: cfg.Embedding.Provider,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			Dimensions:   cfg.Embedding.Dimensions,
			APIKeyEnv:    cfg.Embedding.APIKeyEnv,
			APIKey:       cfg.Embedding.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
	}

	s.tokenizer, err = chunker.NewTokenizer(cfg.Chunking.Encoding)
	if err != nil {
		return nil, fmt.Errorf("creating tokenizer: %w", err)
	}

	if s.gateway == nil {
		s.gateway, err = NewGateway(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("creating gateway: %w", err)
		}
	}

	if s.publisher == nil {
		s.publisher, err = NewPublisher(cfg.Events)
		if err != nil {
			return nil, fmt.Errorf("creating event publisher: %w", err)
		}
	}

	if cfg.Storage.DataDir != "" {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}

	s.registry = shard.NewRegistry(s.openShard, logger)

	logger.Info("service ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("encoding", cfg.Chunking.Encoding),
		zap.String("events", cfg.Events.Provider),
	)

	return s, nil
}

// Execute runs operation on the shard named key.
func (s *Service) Execute(ctx context.Context, key, operation string, payload json.RawMessage) (any, error) {
	return s.registry.Execute(ctx, key, operation, payload)
}

// Gateway returns the access gateway requests are authenticated against.
func (s *Service) Gateway() auth.Gateway {
	return s.gateway
}

// Close drains and closes every shard, then the shared collaborators.
func (s *Service) Close() error {
	s.registry.Close()

	return errors.Join(
		s.publisher.Close(),
		s.embedder.Close(),
	)
}

func (s *Service) openShard(ctx context.Context, key string) (shard.Handler, error) {
	logger := s.logger.With(zap.String("shard", key))

	driver, err := s.openDriver(ctx, key, logger)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(driver, engine.Config{
		Embedder:     s.embedder,
		Tokenizer:    s.tokenizer,
		Gateway:      s.gateway,
		TokenLimit:   int(s.cfg.Chunking.TokenLimit),
		ChunkRatio:   s.cfg.Chunking.ChunkRatio,
		OverlapRatio: s.cfg.Chunking.OverlapRatio,
	}, logger)
	if err != nil {
		_ = driver.Close()
		return nil, err
	}

	logger.Info("shard opened", zap.String("storage", s.cfg.Storage.Driver))
	return dispatch.New(key, eng, s.publisher, s.logger), nil
}

func (s *Service) openDriver(ctx context.Context, key string, logger *zap.Logger) (storage.Driver, error) {
	switch s.cfg.Storage.Driver {
	case "", "sqlite":
		path := sqlite.MemoryPath
		if s.cfg.Storage.DataDir != "" {
			path = filepath.Join(s.cfg.Storage.DataDir, key+".db")
		}

		driver, err := sqlite.NewDriver(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		return driver, nil

	case "postgres":
		if s.cfg.Storage.PostgresDSN == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}

		driver, err := postgres.NewDriver(ctx, s.cfg.Storage.PostgresDSN, postgresSchemaPrefix+key, logger)
		if err != nil {
			return nil, err
		}
		return driver, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", s.cfg.Storage.Driver)
	}
}

// NewGateway builds the access gateway for c. Requests without a bearer
// token resolve to DefaultUser, or to no user when it is empty.
func NewGateway(c config.AuthConfig) (auth.Gateway, error) {
	var fallback auth.Gateway = auth.NewStatic(nil)
	if c.DefaultUser != "" {
		fallback = auth.NewStatic(&auth.User{ID: c.DefaultUser, Username: c.DefaultUser})
	}

	if c.JWTSecret == "" {
		return fallback, nil
	}
	return auth.NewJWTGateway(c.JWTSecret, fallback)
}

// NewPublisher builds the mutation event publisher for c.
func NewPublisher(c config.EventsConfig) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(c.BrokerList(), c.Topic)
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", c.Provider)
	}
}

// LoadSecrets fills secrets missing from cfg with values from the
// credentials store in configDir.
func LoadSecrets(cfg *config.Config, configDir string) error {
	if cfg.Auth.JWTSecret == "" {
		secret, err := credentials.Lookup(configDir, credentials.JWT)
		if err != nil {
			return fmt.Errorf("loading jwt secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
	}

	if cfg.Embedding.APIKey == "" && credentials.IsSupported(cfg.Embedding.Provider) {
		key, err := credentials.Lookup(configDir, cfg.Embedding.Provider)
		if err != nil {
			return fmt.Errorf("loading %s api key: %w", cfg.Embedding.Provider, err)
		}
		cfg.Embedding.APIKey = key
	}

	return nil
}
