// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"

	"github.com/driftbox/accountd/internal/auth"
	"github.com/driftbox/accountd/internal/auth/memory"
	"github.com/driftbox/accountd/internal/httpapi"
	"github.com/driftbox/accountd/internal/observability"
)

// fakeClock is a movable time source shared by the repository and the token
// authority so lockout windows and token lifetimes can be crossed instantly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires the full HTTP stack over the in-memory repository.
type harness struct {
	server *httptest.Server
	clock  *fakeClock
}

func newHarness() *harness {
	clock := &fakeClock{now: time.Now()}
	repo := memory.NewAccountRepository().WithClock(clock.Now)

	tokens, err := auth.NewTokenAuthority(
		[]byte("integration-suite-signing-secret-0123456789"), time.Hour)
	Expect(err).NotTo(HaveOccurred())
	tokens.WithClock(clock.Now)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := auth.NewServiceWithLogger(repo, auth.NewBcryptHasher(), tokens, logger)
	Expect(err).NotTo(HaveOccurred())

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	router := httpapi.NewRouter(svc, tokens, repo, metrics, logger)

	h := &harness{server: httptest.NewServer(router), clock: clock}
	DeferCleanup(h.server.Close)
	return h
}

// post sends a JSON body and decodes the JSON response.
func (h *harness) post(path string, body map[string]any) (int, map[string]any) {
	payload, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.Post(h.server.URL+path, "application/json", bytes.NewReader(payload))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var decoded map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
	return resp.StatusCode, decoded
}

// get sends an authenticated GET and decodes the JSON response. An empty
// token omits the Authorization header.
func (h *harness) get(path, token string) (int, map[string]any) {
	req, err := http.NewRequest(http.MethodGet, h.server.URL+path, nil)
	Expect(err).NotTo(HaveOccurred())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var decoded map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
	return resp.StatusCode, decoded
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"full_name":        "Ada Lovelace",
		"email":            email,
		"password":         "Sup3rSecret!x",
		"confirm_password": "Sup3rSecret!x",
	}
}

func loginBody(email, password string) map[string]any {
	return map[string]any{"email": email, "password": password}
}

var _ = Describe("Account API", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
	})

	Describe("Registration", func() {
		It("creates an account and returns a usable session token", func() {
			status, body := h.post("/api/auth/register", registerBody("ada@example.com"))
			Expect(status).To(Equal(http.StatusCreated))
			Expect(body["message"]).To(Equal("account registered successfully"))
			Expect(body["token"]).NotTo(BeEmpty())

			user, ok := body["user"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(user["email"]).To(Equal("ada@example.com"))
			Expect(user["full_name"]).To(Equal("Ada Lovelace"))
			Expect(user["id"]).NotTo(BeEmpty())

			status, body = h.get("/api/auth/profile", body["token"].(string))
			Expect(status).To(Equal(http.StatusOK))
			profile := body["user"].(map[string]any)
			Expect(profile["email"]).To(Equal("ada@example.com"))
			Expect(profile["created_at"]).NotTo(BeEmpty())
		})

		It("normalizes the email before storing it", func() {
			status, body := h.post("/api/auth/register", registerBody("  Ada@Example.COM "))
			Expect(status).To(Equal(http.StatusCreated))
			user := body["user"].(map[string]any)
			Expect(user["email"]).To(Equal("ada@example.com"))
		})

		It("rejects a duplicate email regardless of case", func() {
			status, _ := h.post("/api/auth/register", registerBody("ada@example.com"))
			Expect(status).To(Equal(http.StatusCreated))

			status, body := h.post("/api/auth/register", registerBody("ADA@EXAMPLE.COM"))
			Expect(status).To(Equal(http.StatusConflict))
			Expect(body["message"]).To(Equal("an account with this email already exists"))
		})

		It("rejects a mismatched password confirmation", func() {
			payload := registerBody("ada@example.com")
			payload["confirm_password"] = "Different1!x"
			status, _ := h.post("/api/auth/register", payload)
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Login", func() {
		BeforeEach(func() {
			status, _ := h.post("/api/auth/register", registerBody("ada@example.com"))
			Expect(status).To(Equal(http.StatusCreated))
		})

		It("issues a token for correct credentials", func() {
			status, body := h.post("/api/auth/login", loginBody("ada@example.com", "Sup3rSecret!x"))
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["message"]).To(Equal("login successful"))
			Expect(body["token"]).NotTo(BeEmpty())
		})

		It("matches the email case-insensitively", func() {
			status, _ := h.post("/api/auth/login", loginBody("Ada@Example.com", "Sup3rSecret!x"))
			Expect(status).To(Equal(http.StatusOK))
		})

		It("returns the same generic rejection for a wrong password and an unknown email", func() {
			status, body := h.post("/api/auth/login", loginBody("ada@example.com", "WrongPass1!x"))
			Expect(status).To(Equal(http.StatusUnauthorized))
			wrongPassword := body["message"]

			status, body = h.post("/api/auth/login", loginBody("nobody@example.com", "WrongPass1!x"))
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal(wrongPassword))
			Expect(body["message"]).To(Equal("invalid email or password"))
		})
	})

	Describe("Lockout", func() {
		const lockedMessage = "account is temporarily locked due to too many failed login attempts, please try again later"

		failLogin := func() (int, map[string]any) {
			return h.post("/api/auth/login", loginBody("ada@example.com", "WrongPass1!x"))
		}

		BeforeEach(func() {
			status, _ := h.post("/api/auth/register", registerBody("ada@example.com"))
			Expect(status).To(Equal(http.StatusCreated))
		})

		It("locks the account on the fifth consecutive failure", func() {
			for i := 0; i < 4; i++ {
				status, body := failLogin()
				Expect(status).To(Equal(http.StatusUnauthorized))
				Expect(body["message"]).To(Equal("invalid email or password"))
			}

			status, body := failLogin()
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal(lockedMessage))
		})

		It("rejects even the correct password while locked", func() {
			for i := 0; i < 5; i++ {
				failLogin()
			}

			status, body := h.post("/api/auth/login", loginBody("ada@example.com", "Sup3rSecret!x"))
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal(lockedMessage))
		})

		It("admits the account again after the lockout window passes", func() {
			for i := 0; i < 5; i++ {
				failLogin()
			}

			h.clock.Advance(auth.LockoutDuration + time.Second)

			status, _ := h.post("/api/auth/login", loginBody("ada@example.com", "Sup3rSecret!x"))
			Expect(status).To(Equal(http.StatusOK))
		})

		It("resets the failure counter on a successful login", func() {
			for i := 0; i < 4; i++ {
				failLogin()
			}

			status, _ := h.post("/api/auth/login", loginBody("ada@example.com", "Sup3rSecret!x"))
			Expect(status).To(Equal(http.StatusOK))

			// A fresh counter means four more failures stay generic.
			for i := 0; i < 4; i++ {
				status, body := failLogin()
				Expect(status).To(Equal(http.StatusUnauthorized))
				Expect(body["message"]).To(Equal("invalid email or password"))
			}
		})
	})

	Describe("Profile access", func() {
		var token string

		BeforeEach(func() {
			status, body := h.post("/api/auth/register", registerBody("ada@example.com"))
			Expect(status).To(Equal(http.StatusCreated))
			token = body["token"].(string)
		})

		It("requires a bearer token", func() {
			status, body := h.get("/api/auth/profile", "")
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal("authentication required"))
		})

		It("rejects a malformed token", func() {
			status, body := h.get("/api/auth/profile", "not-a-token")
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal("invalid token"))
		})

		It("rejects an expired token", func() {
			h.clock.Advance(time.Hour + time.Minute)

			status, body := h.get("/api/auth/profile", token)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal("token has expired"))
		})

		It("returns the profile with the creation timestamp", func() {
			status, body := h.get("/api/auth/profile", token)
			Expect(status).To(Equal(http.StatusOK))
			user := body["user"].(map[string]any)
			Expect(user["email"]).To(Equal("ada@example.com"))
			Expect(user["full_name"]).To(Equal("Ada Lovelace"))
			Expect(user["created_at"]).NotTo(BeEmpty())
		})
	})
})
