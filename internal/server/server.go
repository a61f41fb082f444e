// Package server is the GitHub App webhook service: it receives
// workflow_run events, pulls evidence artifacts from the completed run, and
// posts one check run per KSI verdict.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/complykit/ksi-evidence/internal/config"
	"github.com/complykit/ksi-evidence/internal/githubapp"
	"github.com/complykit/ksi-evidence/internal/version"
)

// Server wires the router, the GitHub App client, and the webhook secret.
type Server struct {
	settings *config.ServerSettings
	github   *githubapp.Client
	log      *logrus.Logger

	// wg tracks in-flight background event processing so Shutdown can
	// drain it.
	wg sync.WaitGroup
}

// New builds a server from settings. The GitHub App client is constructed
// here so credential problems surface at startup, not on the first webhook.
func New(settings *config.ServerSettings, log *logrus.Logger) (*Server, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client, err := githubapp.NewClient(settings.GitHubAppID, settings.GitHubAppPrivateKey, settings.GitHubAPIURL)
	if err != nil {
		return nil, err
	}
	return &Server{settings: settings, github: client, log: log}, nil
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/webhook/github", s.handleWebhook).Methods(http.MethodPost)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully and drains
// background event processing.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{
			"addr":        s.settings.ListenAddr,
			"environment": s.settings.Environment,
		}).Infof("starting %s", s.settings.AppName)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.wg.Wait()
	return err
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"app":     s.settings.AppName,
		"version": version.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "unreadable body"})
		return
	}

	if !verifySignature(body, r.Header.Get("X-Hub-Signature-256"), s.settings.GitHubWebhookSecret) {
		s.log.Warn("webhook signature verification failed")
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"status":  "error",
			"message": "Signature verification failed",
		})
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")
	s.log.WithFields(logrus.Fields{
		"event":    eventType,
		"delivery": deliveryID,
	}).Info("received webhook")

	switch eventType {
	case "workflow_run":
		var event workflowRunEvent
		if err := json.Unmarshal(body, &event); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "malformed payload"})
			return
		}
		// Respond 202 immediately; artifact download and check-run
		// creation can take longer than GitHub's delivery timeout.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.processWorkflowRun(context.Background(), &event)
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "event": eventType})

	case "ping":
		var ping struct {
			Zen    string `json:"zen"`
			HookID int64  `json:"hook_id"`
		}
		_ = json.Unmarshal(body, &ping)
		s.log.WithField("hook_id", ping.HookID).Infof("webhook ping received: %s", ping.Zen)
		writeJSON(w, http.StatusOK, map[string]any{"status": "pong", "zen": ping.Zen})

	default:
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "event": eventType})
	}
}

// verifySignature checks the X-Hub-Signature-256 HMAC in constant time.
func verifySignature(payload []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
