package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecshard/pkg/auth"
	"github.com/papercomputeco/vecshard/pkg/config"
	"github.com/papercomputeco/vecshard/pkg/credentials"
	"github.com/papercomputeco/vecshard/pkg/dispatch"
	"github.com/papercomputeco/vecshard/pkg/engine"
	"github.com/papercomputeco/vecshard/pkg/service"
	"github.com/papercomputeco/vecshard/pkg/storage"
	testutils "github.com/papercomputeco/vecshard/pkg/utils/test"
)

func offlineConfig() *config.Config {
	cfg, err := config.PresetConfig("offline")
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

var _ = Describe("Service", func() {
	var (
		ctx context.Context
		cfg *config.Config
		svc *service.Service
	)

	exec := func(key, op, payload string) (any, error) {
		return svc.Execute(ctx, key, op, json.RawMessage(payload))
	}

	BeforeEach(func() {
		ctx = context.Background()
		cfg = offlineConfig()
	})

	JustBeforeEach(func() {
		var err error
		svc, err = service.New(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(svc.Close()).To(Succeed())
	})

	It("puts a vector and finds it first", func() {
		_, err := exec("tenant", dispatch.OpPut, `{"namespace":"ns","vector":[1,0,0],"content":"a"}`)
		Expect(err).NotTo(HaveOccurred())

		resp, err := exec("tenant", dispatch.OpSearch, `{"vector":[1,0,0]}`)
		Expect(err).NotTo(HaveOccurred())

		matches := resp.([]engine.Match)
		Expect(matches).NotTo(BeEmpty())
		Expect(matches[0].Content).To(Equal("a"))
		Expect(matches[0].Namespace).To(Equal("ns"))
		Expect(matches[0].Score).To(BeNumerically("~", 1, 1e-4))
	})

	It("keeps shards isolated", func() {
		_, err := exec("one", dispatch.OpPut, `{"id":"v1","vector":[1]}`)
		Expect(err).NotTo(HaveOccurred())

		_, err = exec("two", dispatch.OpGet, `{"id":"v1"}`)
		var notFound storage.ErrNotFound
		Expect(errors.As(err, &notFound)).To(BeTrue())
	})

	It("rejects invalid shard keys", func() {
		_, err := exec("../etc", dispatch.OpGet, `{"id":"x"}`)
		Expect(err).To(HaveOccurred())
	})

	Context("with a data directory", func() {
		var dataDir string

		BeforeEach(func() {
			dataDir = filepath.Join(GinkgoT().TempDir(), "shards")
			cfg.Storage.DataDir = dataDir
		})

		It("stores each shard in its own file and survives a restart", func() {
			_, err := exec("tenant", dispatch.OpStoreDocument, `{"id":"doc","namespace":"kb","content":"persisted words"}`)
			Expect(err).NotTo(HaveOccurred())

			_, err = os.Stat(filepath.Join(dataDir, "tenant.db"))
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Close()).To(Succeed())
			svc, err = service.New(cfg, nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := exec("tenant", dispatch.OpGetDocument, `{"id":"doc"}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.(*engine.Document).Content).To(Equal("persisted words"))
		})
	})

	Context("without a default user", func() {
		BeforeEach(func() {
			cfg.Auth.DefaultUser = ""
		})

		It("refuses writes but allows reads", func() {
			_, err := exec("tenant", dispatch.OpPut, `{"vector":[1]}`)
			Expect(err).To(MatchError(auth.ErrNoUser))

			_, err = exec("tenant", dispatch.OpSearch, `{"vector":[1]}`)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("with an unsupported storage driver", func() {
		BeforeEach(func() {
			cfg.Storage.Driver = "mongo"
		})

		It("fails when the shard is opened", func() {
			_, err := exec("tenant", dispatch.OpSearch, `{}`)
			Expect(err).To(MatchError(ContainSubstring("unsupported storage driver")))
		})
	})
})

var _ = Describe("New", func() {
	It("rejects an unknown embedding provider", func() {
		cfg := offlineConfig()
		cfg.Embedding.Provider = "nope"
		_, err := service.New(cfg, nil)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown events provider", func() {
		cfg := offlineConfig()
		cfg.Events.Provider = "carrier-pigeon"
		_, err := service.New(cfg, nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewGateway", func() {
	It("resolves the default user without a secret", func() {
		g, err := service.NewGateway(config.AuthConfig{DefaultUser: "local"})
		Expect(err).NotTo(HaveOccurred())

		u, err := g.GetUser(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(u.ID).To(Equal("local"))
	})

	It("verifies bearer tokens with a secret", func() {
		g, err := service.NewGateway(config.AuthConfig{JWTSecret: "s3cret", DefaultUser: "local"})
		Expect(err).NotTo(HaveOccurred())

		jwtGateway, ok := g.(*auth.JWTGateway)
		Expect(ok).To(BeTrue())

		token, err := jwtGateway.IssueToken(auth.User{ID: "alice"}, time.Minute)
		Expect(err).NotTo(HaveOccurred())

		u, err := g.GetUser(auth.WithToken(context.Background(), token))
		Expect(err).NotTo(HaveOccurred())
		Expect(u.ID).To(Equal("alice"))

		u, err = g.GetUser(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(u.ID).To(Equal("local"))
	})
})

var _ = Describe("NewPublisher", func() {
	It("defaults to a no-op publisher", func() {
		p, err := service.NewPublisher(config.EventsConfig{Provider: "none"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("requires brokers for kafka", func() {
		_, err := service.NewPublisher(config.EventsConfig{Provider: "kafka"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Mutation events", func() {
	It("tags every event with the shard it came from", func() {
		publisher := testutils.NewRecordingPublisher()
		svc, err := service.New(offlineConfig(), nil, service.WithPublisher(publisher))
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(svc.Close()).To(Succeed()) }()

		ctx := context.Background()
		_, err = svc.Execute(ctx, "one", dispatch.OpPut, json.RawMessage(`{"id":"a","vector":[1]}`))
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Execute(ctx, "two", dispatch.OpPut, json.RawMessage(`{"id":"b","vector":[1]}`))
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Execute(ctx, "two", dispatch.OpSearch, json.RawMessage(`{"vector":[1]}`))
		Expect(err).NotTo(HaveOccurred())

		events := publisher.Events()
		Expect(events).To(HaveLen(2))
		Expect(events[0].Shard).To(Equal("one"))
		Expect(events[0].IDs).To(ConsistOf("a"))
		Expect(events[1].Shard).To(Equal("two"))
		Expect(events[1].IDs).To(ConsistOf("b"))
	})
})

var _ = Describe("LoadSecrets", func() {
	var configDir string

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()

		mgr, err := credentials.NewManager(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.Set(credentials.JWT, "stored-jwt")).To(Succeed())
		Expect(mgr.Set(credentials.OpenAI, "sk-stored")).To(Succeed())
	})

	It("fills missing secrets from the credentials store", func() {
		cfg := offlineConfig()
		cfg.Embedding.Provider = "openai"

		Expect(service.LoadSecrets(cfg, configDir)).To(Succeed())
		Expect(cfg.Auth.JWTSecret).To(Equal("stored-jwt"))
		Expect(cfg.Embedding.APIKey).To(Equal("sk-stored"))
	})

	It("keeps secrets that are already configured", func() {
		cfg := offlineConfig()
		cfg.Embedding.Provider = "openai"
		cfg.Auth.JWTSecret = "from-config"
		cfg.Embedding.APIKey = "sk-config"

		Expect(service.LoadSecrets(cfg, configDir)).To(Succeed())
		Expect(cfg.Auth.JWTSecret).To(Equal("from-config"))
		Expect(cfg.Embedding.APIKey).To(Equal("sk-config"))
	})

	It("skips api keys for providers without one", func() {
		cfg := offlineConfig()

		Expect(service.LoadSecrets(cfg, configDir)).To(Succeed())
		Expect(cfg.Embedding.APIKey).To(BeEmpty())
	})

	It("tolerates a config dir without credentials", func() {
		cfg := offlineConfig()

		Expect(service.LoadSecrets(cfg, GinkgoT().TempDir())).To(Succeed())
		Expect(cfg.Auth.JWTSecret).To(BeEmpty())
	})
})
