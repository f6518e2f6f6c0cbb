package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/auth"
	"github.com/papercomputeco/vecshard/pkg/config"
	"github.com/papercomputeco/vecshard/pkg/dispatch"
	"github.com/papercomputeco/vecshard/pkg/engine"
	"github.com/papercomputeco/vecshard/pkg/service"
)

const testSecret = "test-secret"

func post(server *Server, path, body string, headers ...string) (*http.Response, []byte) {
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())

	respBody, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, respBody
}

var _ = Describe("Server", func() {
	var (
		server *Server
		svc    *service.Service
	)

	BeforeEach(func() {
		cfg, err := config.PresetConfig("offline")
		Expect(err).NotTo(HaveOccurred())
		cfg.Auth.DefaultUser = ""
		cfg.Auth.JWTSecret = testSecret

		svc, err = service.New(cfg, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{ListenAddr: ":0"}, svc, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(svc.Close()).To(Succeed())
	})

	bearer := func(user string) []string {
		gw, err := auth.NewJWTGateway(testSecret, nil)
		Expect(err).NotTo(HaveOccurred())
		token, err := gw.IssueToken(auth.User{ID: user}, time.Minute)
		Expect(err).NotTo(HaveOccurred())
		return []string{fiber.HeaderAuthorization, "Bearer " + token}
	}

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("POST /v1/shards/:shard/:operation", func() {
		It("stores and finds a vector for an authenticated caller", func() {
			resp, body := post(server, "/v1/shards/tenant/put",
				`{"id":"v1","namespace":"ns","vector":[1,0],"content":"a"}`, bearer("alice")...)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var id dispatch.IDResponse
			Expect(json.Unmarshal(body, &id)).To(Succeed())
			Expect(id.ID).To(Equal("v1"))

			resp, body = post(server, "/v1/shards/tenant/search", `{"vector":[1,0],"topN":1}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var matches []engine.Match
			Expect(json.Unmarshal(body, &matches)).To(Succeed())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].ID).To(Equal("v1"))
		})

		It("returns 401 for writes without a user", func() {
			resp, _ := post(server, "/v1/shards/tenant/put", `{"vector":[1]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))
		})

		It("returns 401 for a bad token", func() {
			resp, _ := post(server, "/v1/shards/tenant/put", `{"vector":[1]}`,
				fiber.HeaderAuthorization, "Bearer not-a-jwt")
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))
		})

		It("returns 404 for a missing vector", func() {
			resp, body := post(server, "/v1/shards/tenant/get", `{"id":"missing"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			var errResp ErrorResponse
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Error).To(ContainSubstring("missing"))
		})

		It("returns 400 for an unknown operation", func() {
			resp, body := post(server, "/v1/shards/tenant/frobnicate", `{}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var invalid dispatch.InvalidOperationResponse
			Expect(json.Unmarshal(body, &invalid)).To(Succeed())
			Expect(invalid.Error).To(Equal(dispatch.InvalidOperationMessage))
		})

		It("returns 400 for malformed payloads", func() {
			resp, _ := post(server, "/v1/shards/tenant/search", `{"vector":`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for an invalid shard key", func() {
			resp, _ := post(server, "/v1/shards/bad.key/search", `{}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("runs the document lifecycle", func() {
			headers := bearer("alice")

			resp, _ := post(server, "/v1/shards/kb/storeDocument",
				`{"id":"doc","namespace":"notes","content":"the quick brown fox"}`, headers...)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			resp, body := post(server, "/v1/shards/kb/getDocument", `{"id":"doc"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var doc engine.Document
			Expect(json.Unmarshal(body, &doc)).To(Succeed())
			Expect(doc.Content).To(Equal("the quick brown fox"))
			Expect(doc.Complete).To(BeTrue())

			resp, body = post(server, "/v1/shards/kb/deleteDocument", `{"ids":["doc"]}`, headers...)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var msg dispatch.MessageResponse
			Expect(json.Unmarshal(body, &msg)).To(Succeed())
			Expect(msg.Message).To(Equal("Documents deleted successfully"))

			resp, _ = post(server, "/v1/shards/kb/getDocument", `{"id":"doc"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})
})

var _ = Describe("bearerToken", func() {
	It("extracts the token", func() {
		Expect(bearerToken("Bearer abc")).To(Equal("abc"))
		Expect(bearerToken("bearer abc")).To(Equal("abc"))
	})

	It("ignores other schemes", func() {
		Expect(bearerToken("Basic abc")).To(BeEmpty())
		Expect(bearerToken("Bearer ")).To(BeEmpty())
		Expect(bearerToken("")).To(BeEmpty())
	})
})
