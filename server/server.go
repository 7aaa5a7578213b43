// Copyright 2025 RelayCore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the HTTP surface: tenant-scoped object CRUD,
// notification dispatch, media signing, payment tokens, AI sessions and
// jobs, and the organization binding routes.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"relaycore/platform/credentials"
	"relaycore/platform/dispatch"
	"relaycore/platform/jobs"
	"relaycore/platform/providers"
	"relaycore/platform/shared/logger"
	"relaycore/platform/store"
	"relaycore/platform/tenancy"
)

// maxBodyBytes is the service-boundary request size ceiling
const maxBodyBytes = 10 << 20

// tenantRoles are the roles accepted on ordinary tenant routes
var tenantRoles = []string{"admin", "editor", "member"}

// Options carries the server's collaborators. Tests inject in-memory
// implementations; production wiring happens in cmd/server.
type Options struct {
	Config      *Config
	Partitions  store.Partitions
	Directory   tenancy.Directory
	Credentials credentials.Resolver
	Backend     providers.AIBackend
	Limiter     RateLimiter
	Email       *providers.EmailAdapter
	SMS         *providers.SMSAdapter
	Checks      map[string]func(context.Context) error
}

// Server is the assembled HTTP application
type Server struct {
	cfg        *Config
	router     *mux.Router
	logger     *logger.Logger
	resolver   *tenancy.OrgConnectionResolver
	gate       *tenancy.RoleGate
	creds      credentials.Resolver
	orch       *jobs.Orchestrator
	pool       *jobs.WorkerPool
	dispatcher *dispatch.Dispatcher
	email      *providers.EmailAdapter
	sms        *providers.SMSAdapter
	signer     *providers.MediaSigner
	payments   *providers.PaymentTokenClient
	limiter    RateLimiter
	checks     map[string]func(context.Context) error
}

// NewServer wires the application and its routes
func NewServer(opts Options) *Server {
	registerMetrics()

	cfg := opts.Config
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewMemoryRateLimiter(cfg.RateLimitPerMinute)
	}
	email := opts.Email
	if email == nil {
		email = providers.NewEmailAdapter()
	}
	sms := opts.SMS
	if sms == nil {
		sms = providers.NewSMSAdapter()
	}

	pool := jobs.NewWorkerPool(cfg.JobWorkers, cfg.JobQueueSize, opts.Backend, opts.Credentials)

	s := &Server{
		cfg:        cfg,
		router:     mux.NewRouter(),
		logger:     logger.New("server"),
		resolver:   tenancy.NewOrgConnectionResolver(opts.Directory, opts.Partitions),
		gate:       tenancy.NewRoleGate(opts.Directory),
		creds:      opts.Credentials,
		orch:       jobs.NewOrchestrator(pool),
		pool:       pool,
		dispatcher: dispatch.NewDispatcher(0),
		email:      email,
		sms:        sms,
		signer:     providers.NewMediaSigner(),
		payments:   providers.NewPaymentTokenClient(cfg.PaymentBaseURL),
		limiter:    limiter,
		checks:     opts.Checks,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// organization binding
	r.HandleFunc("/api/org/bind", s.handleBind).Methods("POST")
	r.HandleFunc("/api/org/binding", s.tenant(s.handleGetBinding, tenantRoles...)).Methods("GET")

	// object CRUD
	r.HandleFunc("/api/objects/{type}", s.tenant(s.handleCreateObject, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/objects/{type}", s.tenant(s.handleListObjects, tenantRoles...)).Methods("GET")
	r.HandleFunc("/api/objects/{type}/{id}", s.tenant(s.handleGetObject, tenantRoles...)).Methods("GET")
	r.HandleFunc("/api/objects/{type}/{id}", s.tenant(s.handleUpdateObject, tenantRoles...)).Methods("PUT", "PATCH")
	r.HandleFunc("/api/objects/{type}/{id}", s.tenant(s.handleDeleteObject, "admin", "editor")).Methods("DELETE")
	r.HandleFunc("/api/objects/{type}/{id}/children", s.tenant(s.handleObjectChildren, tenantRoles...)).Methods("GET")

	// anonymous public reads
	r.HandleFunc("/public/{orgID}/objects/{type}", s.handlePublicList).Methods("GET")
	r.HandleFunc("/public/{orgID}/objects/{type}/{id}", s.handlePublicGet).Methods("GET")

	// notifications
	r.HandleFunc("/api/notify/email", s.tenant(s.handleSendEmail, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/notify/sms", s.tenant(s.handleSendSMS, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/notify/email/batch", s.tenant(s.handleBatchEmail, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/notify/sms/batch", s.tenant(s.handleBatchSMS, tenantRoles...)).Methods("POST")

	// media + payments
	r.HandleFunc("/api/media/signature", s.tenant(s.handleMediaSignature, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/payments/token", s.tenant(s.handlePaymentToken, tenantRoles...)).Methods("POST")

	// AI sessions and jobs
	r.HandleFunc("/api/ai/sessions", s.tenant(s.handleCreateSession, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/ai/sessions/{id}", s.tenant(s.handlePatchSession, tenantRoles...)).Methods("PATCH")
	r.HandleFunc("/api/ai/sessions/{id}/messages", s.tenant(s.handleAppendMessage, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/ai/sessions/{id}/messages", s.tenant(s.handleListMessages, tenantRoles...)).Methods("GET")
	r.HandleFunc("/api/ai/sessions/{id}/messages/{mid}", s.tenant(s.handleGetMessage, tenantRoles...)).Methods("GET")
	r.HandleFunc("/api/ai/sessions/{id}/messages/{mid}", s.tenant(s.handleDeleteMessage, tenantRoles...)).Methods("DELETE")
	r.HandleFunc("/api/ai/sessions/{id}/ask", s.tenant(s.handleAsk, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/ai/sessions/{id}/context", s.tenant(s.handleContext, tenantRoles...)).Methods("POST")
	r.HandleFunc("/api/ai/sessions/{id}/jobs/{jobID}", s.tenant(s.handleJobStatus, tenantRoles...)).Methods("GET")
}

// Handler returns the full middleware-wrapped handler for serving and tests
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(s.withBodyLimit(s.router))
}

// withBodyLimit caps request bodies at the service boundary
func (s *Server) withBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests and the
// job worker pool.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] RelayCore listening on port %s", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("[Server] Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("worker pool drain failed: %w", err)
	}

	log.Printf("[Server] Shutdown complete")
	return nil
}

// handleHealth reports liveness plus per-dependency readiness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	deps := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			deps[name] = err.Error()
		} else {
			deps[name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	sendJSON(w, code, map[string]interface{}{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
