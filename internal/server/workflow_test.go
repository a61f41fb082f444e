package server

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complykit/ksi-evidence/internal/config"
)

func evidenceArtifactZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("evidence/ksi-cna-01/evaluation_manifest.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"summary":{"status":"PASS"},"criteria":{}}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestProcessWorkflowRunPublishesCheckRun(t *testing.T) {
	var created struct {
		Name       string `json:"name"`
		HeadSHA    string `json:"head_sha"`
		Conclusion string `json:"conclusion"`
	}
	checkRunCreated := false
	zipBytes := evidenceArtifactZip(t)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/app/installations/"):
			fmt.Fprintf(w, `{"token":"ghs_tok","expires_at":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339))
		case r.URL.Path == "/repos/acme/platform/actions/runs/99/artifacts":
			fmt.Fprint(w, `{"artifacts":[
				{"id":5,"name":"evidence_ksi-cna-01_feedfac_20260115T120000Z"},
				{"id":6,"name":"build-logs"}
			]}`)
		case r.URL.Path == "/repos/acme/platform/actions/artifacts/5/zip":
			w.Write(zipBytes)
		case strings.HasPrefix(r.URL.Path, "/repos/acme/platform/commits/deadbeef/check-runs"):
			fmt.Fprint(w, `{"check_runs":[]}`)
		case r.URL.Path == "/repos/acme/platform/check-runs":
			if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
				t.Errorf("decode check run payload: %v", err)
			}
			checkRunCreated = true
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":1}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer api.Close()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	log := logrus.New()
	log.SetOutput(io.Discard)
	srv, err := New(&config.ServerSettings{
		GitHubAppID:         "12345",
		GitHubAppPrivateKey: string(pemKey),
		GitHubWebhookSecret: webhookSecret,
		GitHubAPIURL:        api.URL,
	}, log)
	require.NoError(t, err)

	event := &workflowRunEvent{Action: "completed"}
	event.WorkflowRun.ID = 99
	event.WorkflowRun.HeadSHA = "deadbeef"
	event.WorkflowRun.HTMLURL = "https://github.com/acme/platform/actions/runs/99"
	event.Repository.Name = "platform"
	event.Repository.Owner.Login = "acme"
	event.Installation.ID = 77

	srv.processWorkflowRun(context.Background(), event)

	require.True(t, checkRunCreated)
	assert.Equal(t, "KSI-CNA-01 — Restrict Network Traffic", created.Name)
	assert.Equal(t, "deadbeef", created.HeadSHA)
	assert.Equal(t, "success", created.Conclusion)
}

func TestProcessWorkflowRunIgnoresIncompleteRuns(t *testing.T) {
	srv := testServer(t)
	// No API server behind the client; any request would fail loudly.
	srv.processWorkflowRun(context.Background(), &workflowRunEvent{Action: "requested"})
}

func TestProcessWorkflowRunMissingFields(t *testing.T) {
	srv := testServer(t)
	srv.processWorkflowRun(context.Background(), &workflowRunEvent{Action: "completed"})
}
