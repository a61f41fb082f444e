package githubapp

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/thoas/go-funk"
)

// evidencePattern matches evidence pack artifacts for any KSI, e.g.
// "evidence_ksi-cna-01_ab12cd3_20260101T000000Z".
const evidencePattern = "evidence_ksi-*_*"

// Artifact is the subset of workflow artifact metadata the app uses.
type Artifact struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	SizeB   int64  `json:"size_in_bytes"`
	Expired bool   `json:"expired"`
}

// KSIEvaluation pairs one evidence artifact with its extracted manifest.
type KSIEvaluation struct {
	KSIID        string
	ArtifactName string
	ArtifactID   int64
	Manifest     Manifest
}

// ListArtifacts returns all artifacts produced by a workflow run.
func (c *Client) ListArtifacts(ctx context.Context, installationID int64, owner, repo string, runID int64) ([]Artifact, error) {
	token, err := c.InstallationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Artifacts []Artifact `json:"artifacts"`
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/actions/runs/%d/artifacts", c.APIURL, owner, repo, runID)
	if err := c.doJSON(ctx, "GET", endpoint, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Artifacts, nil
}

// FindEvidenceArtifacts returns every artifact of the run whose name matches
// the evidence pack naming scheme.
func (c *Client) FindEvidenceArtifacts(ctx context.Context, installationID int64, owner, repo string, runID int64) ([]Artifact, error) {
	artifacts, err := c.ListArtifacts(ctx, installationID, owner, repo, runID)
	if err != nil {
		return nil, err
	}
	return funk.Filter(artifacts, func(a Artifact) bool {
		match, _ := path.Match(evidencePattern, a.Name)
		return match
	}).([]Artifact), nil
}

// DownloadArtifact fetches an artifact's zip content.
func (c *Client) DownloadArtifact(ctx context.Context, installationID int64, owner, repo string, artifactID int64) ([]byte, error) {
	token, err := c.InstallationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/actions/artifacts/%d/zip", c.APIURL, owner, repo, artifactID)
	return c.download(ctx, endpoint, token)
}

// ExtractEvaluationManifest pulls evaluation_manifest.json out of an
// artifact zip. Returns nil when the zip has no manifest or cannot be read.
func ExtractEvaluationManifest(content []byte) Manifest {
	return extractJSON(content, "evaluation_manifest.json")
}

// ExtractResultsSummary pulls results.json out of an artifact zip.
func ExtractResultsSummary(content []byte) Manifest {
	return extractJSON(content, "results.json")
}

func extractJSON(content []byte, suffix string) Manifest {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, suffix) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		buf, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil
		}
		var m Manifest
		if json.Unmarshal(buf, &m) != nil {
			return nil
		}
		return m
	}
	return nil
}

// KSIIDFromArtifactName recovers the KSI ID from an evidence artifact name,
// e.g. "evidence_ksi-mla-05_abc1234_..." yields "KSI-MLA-05".
func KSIIDFromArtifactName(name string) string {
	if !strings.HasPrefix(name, "evidence_ksi-") {
		return ""
	}
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToUpper(parts[1])
}

// EvaluationResults downloads every evidence artifact of a run and extracts
// its manifest. Artifacts without a recoverable KSI ID or manifest are
// skipped.
func (c *Client) EvaluationResults(ctx context.Context, installationID int64, owner, repo string, runID int64) ([]KSIEvaluation, error) {
	artifacts, err := c.FindEvidenceArtifacts(ctx, installationID, owner, repo, runID)
	if err != nil {
		return nil, err
	}

	var results []KSIEvaluation
	for _, artifact := range artifacts {
		ksiID := KSIIDFromArtifactName(artifact.Name)
		if ksiID == "" {
			continue
		}
		content, err := c.DownloadArtifact(ctx, installationID, owner, repo, artifact.ID)
		if err != nil {
			return nil, fmt.Errorf("download artifact %s: %w", artifact.Name, err)
		}
		manifest := ExtractEvaluationManifest(content)
		if manifest == nil {
			continue
		}
		results = append(results, KSIEvaluation{
			KSIID:        ksiID,
			ArtifactName: artifact.Name,
			ArtifactID:   artifact.ID,
			Manifest:     manifest,
		})
	}
	return results, nil
}
