package githubapp

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/complykit/ksi-evidence/internal/ksi/cna01"
	"github.com/complykit/ksi-evidence/internal/ksi/mla05"
)

// KSIMeta carries the locked display strings for one KSI's check run.
type KSIMeta struct {
	CheckRunName    string
	CheckRunTitle   string
	RequirementText string
	KSIName         string
}

var ksiMetadata = map[string]KSIMeta{
	mla05.KSIID: {
		CheckRunName:    mla05.CheckRunName,
		CheckRunTitle:   mla05.CheckRunTitle,
		RequirementText: mla05.RequirementText,
		KSIName:         mla05.KSIName,
	},
	cna01.KSIID: {
		CheckRunName:    cna01.CheckRunName,
		CheckRunTitle:   cna01.CheckRunTitle,
		RequirementText: cna01.RequirementText,
		KSIName:         cna01.KSIName,
	},
}

// MetadataFor returns the check-run metadata for a KSI, with a generic
// fallback for IDs this app does not know.
func MetadataFor(ksiID string) KSIMeta {
	if meta, ok := ksiMetadata[ksiID]; ok {
		return meta
	}
	return KSIMeta{
		CheckRunName:    ksiID + " — Evaluation",
		CheckRunTitle:   "FedRAMP 20x KSI Evidence: " + ksiID,
		RequirementText: "FedRAMP 20x Key Security Indicator: " + ksiID,
		KSIName:         "Evaluation",
	}
}

// StatusToConclusion maps a KSI verdict to a GitHub check-run conclusion.
// ERROR maps to neutral: an inconclusive evaluation is not a red X.
func StatusToConclusion(status string) string {
	switch status {
	case "PASS":
		return "success"
	case "FAIL":
		return "failure"
	default:
		return "neutral"
	}
}

func statusEmoji(status string) string {
	switch status {
	case "PASS":
		return "✅"
	case "FAIL":
		return "❌"
	case "ERROR":
		return "⚠️"
	case "SKIP":
		return "⏭️"
	default:
		return "❓"
	}
}

// BuildCheckRunSummary renders the check-run markdown body from an
// evaluation manifest of either layout.
func BuildCheckRunSummary(manifest Manifest, artifactName, runURL, ksiID string) string {
	meta := MetadataFor(ksiID)
	status := manifest.Status()

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("## %s %s: %s", statusEmoji(status), ksiID, meta.KSIName)
	line("")
	line("### Requirement")
	line("> %s", meta.RequirementText)
	line("")
	line("### Status: **%s**", status)
	line("")

	if summary := manifest.sub("summary"); summary != nil {
		if _, ok := summary["security_groups_evaluated"]; ok {
			line("### Summary")
			line("- **Security Groups Evaluated:** %v", summary["security_groups_evaluated"])
			line("- **Compliant:** %v", summary["security_groups_compliant"])
			line("- **Non-Compliant:** %v", summary["security_groups_non_compliant"])
			line("")
		}
	}
	if reasons := manifest.Reasons(); len(reasons) > 0 {
		line("### Summary")
		for _, reason := range reasons {
			line("- %s", reason)
		}
		line("")
	}

	line("### Criteria Evaluation")
	line("")
	line("| Criterion | Name | Status | Details |")
	line("|-----------|------|--------|---------|")

	criteria := manifest.CriteriaList()
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].str("id") < criteria[j].str("id") })
	for _, c := range criteria {
		critStatus := c.str("status")
		details := c.str("reason")
		if findings, _ := c["findings"].([]any); len(findings) > 0 {
			details = fmt.Sprintf("%d finding(s)", len(findings))
		}
		if details == "" {
			details = "N/A"
		}
		line("| %s | %s | %s %s | %s |", c.str("id"), c.str("name"), statusEmoji(critStatus), critStatus, details)
	}
	line("")

	scope := manifest.Scope()
	line("### Scope")
	line("- **Repository:** %s", scope.str("repository"))
	commit := scope.str("commit_sha")
	if len(commit) > 7 {
		commit = commit[:7]
	}
	line("- **Commit:** `%s`", commit)
	if surfaces := stringList(scope["configuration_surfaces"]); len(surfaces) > 0 {
		line("- **Configuration Surfaces:** %s", strings.Join(surfaces, ", "))
	}
	if paths := stringList(scope["terraform_paths"]); len(paths) > 0 {
		line("- **Terraform Paths:** %s", strings.Join(paths, ", "))
	}
	line("")

	process := manifest.Process()
	line("### Process")
	if name := process.str("workflow_name"); name != "" {
		line("- **Workflow:** %s", name)
	}
	line("- **Trigger:** `%s`", process.str("trigger_event"))
	if runID := process.str("workflow_run_id"); runID != "" {
		if runURL != "" {
			line("- **Run:** [%s](%s)", runID, runURL)
		} else {
			line("- **Run ID:** %s", runID)
		}
	}
	if actor := process.str("actor"); actor != "" {
		line("- **Actor:** %s", actor)
	}
	line("")

	if artifactName != "" {
		line("### Evidence Artifact")
		line("- **Name:** `%s`", artifactName)
		line("")
	}

	line("---")
	b.WriteString("*Generated by FedRAMP 20x KSI Evidence Service*")

	return b.String()
}

// CheckRun is the subset of the check-run API response the app uses.
type CheckRun struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HTMLURL    string `json:"html_url"`
}

type checkRunOutput struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type checkRunPayload struct {
	Name       string         `json:"name,omitempty"`
	HeadSHA    string         `json:"head_sha,omitempty"`
	Status     string         `json:"status"`
	Conclusion string         `json:"conclusion"`
	Output     checkRunOutput `json:"output"`
}

// CreateCheckRun posts a completed check run for one KSI verdict.
func (c *Client) CreateCheckRun(ctx context.Context, installationID int64, owner, repo, headSHA string, manifest Manifest, artifactName, runURL, ksiID string) (*CheckRun, error) {
	token, err := c.InstallationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	meta := MetadataFor(ksiID)

	payload := checkRunPayload{
		Name:       meta.CheckRunName,
		HeadSHA:    headSHA,
		Status:     "completed",
		Conclusion: StatusToConclusion(manifest.Status()),
		Output: checkRunOutput{
			Title:   meta.CheckRunTitle,
			Summary: BuildCheckRunSummary(manifest, artifactName, runURL, ksiID),
		},
	}

	var run CheckRun
	endpoint := fmt.Sprintf("%s/repos/%s/%s/check-runs", c.APIURL, owner, repo)
	if err := c.doJSON(ctx, "POST", endpoint, token, payload, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateCheckRun rewrites an existing check run with a fresh verdict.
func (c *Client) UpdateCheckRun(ctx context.Context, installationID int64, owner, repo string, checkRunID int64, manifest Manifest, artifactName, runURL, ksiID string) (*CheckRun, error) {
	token, err := c.InstallationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	meta := MetadataFor(ksiID)

	payload := checkRunPayload{
		Status:     "completed",
		Conclusion: StatusToConclusion(manifest.Status()),
		Output: checkRunOutput{
			Title:   meta.CheckRunTitle,
			Summary: BuildCheckRunSummary(manifest, artifactName, runURL, ksiID),
		},
	}

	var run CheckRun
	endpoint := fmt.Sprintf("%s/repos/%s/%s/check-runs/%d", c.APIURL, owner, repo, checkRunID)
	if err := c.doJSON(ctx, "PATCH", endpoint, token, payload, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// FindCheckRun looks up an existing check run for the commit by the KSI's
// check name. Returns nil when none exists yet.
func (c *Client) FindCheckRun(ctx context.Context, installationID int64, owner, repo, headSHA, ksiID string) (*CheckRun, error) {
	token, err := c.InstallationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	meta := MetadataFor(ksiID)

	var resp struct {
		CheckRuns []CheckRun `json:"check_runs"`
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits/%s/check-runs?check_name=%s",
		c.APIURL, owner, repo, headSHA, url.QueryEscape(meta.CheckRunName))
	if err := c.doJSON(ctx, "GET", endpoint, token, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.CheckRuns) == 0 {
		return nil, nil
	}
	return &resp.CheckRuns[0], nil
}
