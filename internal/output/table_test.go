package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/complykit/ksi-evidence/internal/models"
)

func TestColorStatus(t *testing.T) {
	assert.Equal(t, "PASS", ColorStatus(models.StatusPass, false))
	assert.Equal(t, "\033[0;32mPASS\033[0m", ColorStatus(models.StatusPass, true))
	assert.Equal(t, "\033[0;31mFAIL\033[0m", ColorStatus(models.StatusFail, true))
	assert.Equal(t, "\033[0;33mERROR\033[0m", ColorStatus(models.StatusError, true))
	assert.Equal(t, "\033[0;34mSKIP\033[0m", ColorStatus(models.StatusSkip, true))
}

func TestShortenMessage(t *testing.T) {
	assert.Equal(t, "short", ShortenMessage("short", 10))
	assert.Equal(t, "exactly", ShortenMessage("exactly", 7))
	assert.Equal(t, "trun...", ShortenMessage("truncate me", 7))
	// Rune-safe truncation.
	assert.Equal(t, "héllo...", ShortenMessage("héllo wörld", 8))
	// Tiny limits still leave room for the ellipsis.
	assert.Equal(t, "a...", ShortenMessage("abcdef", 1))
}

func TestRenderCriteria(t *testing.T) {
	criteria := []models.CriterionResult{
		{ID: "CNA01-A", Name: "Ingress Restrictions", Status: models.StatusPass, Reason: "No sensitive ports exposed."},
		{ID: "CNA01-D", Name: "Least-Privilege Egress", Status: models.StatusFail, Reason: "Unrestricted egress found.",
			Findings: []models.Finding{{Resource: "aws_security_group.open"}}},
	}

	var buf bytes.Buffer
	RenderCriteria(&buf, criteria, TableOptions{})
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "CRITERION")
	assert.Contains(t, lines[0], "FINDINGS")
	assert.True(t, strings.HasPrefix(lines[1], "---"))
	assert.Contains(t, lines[2], "CNA01-A")
	assert.Contains(t, lines[2], "PASS")
	assert.Contains(t, lines[3], "FAIL")
	assert.Contains(t, lines[3], "1")
	assert.NotContains(t, out, "\033[")
}

func TestRenderCriteriaColored(t *testing.T) {
	var buf bytes.Buffer
	RenderCriteria(&buf, []models.CriterionResult{
		{ID: "MLA05-A", Name: "Surface", Status: models.StatusPass, Reason: "ok"},
	}, TableOptions{Colored: true})
	assert.Contains(t, buf.String(), "\033[0;32mPASS\033[0m")
}

func TestRenderCriteriaEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderCriteria(&buf, nil, TableOptions{})
	assert.Equal(t, "No criteria evaluated.\n", buf.String())
}

func TestRenderFindings(t *testing.T) {
	findings := []models.Finding{
		{Resource: "aws_security_group.web ingress", Severity: models.SeverityHigh,
			SourceFile: "network.tf", Issue: "Sensitive port 22 (SSH) exposed to 0.0.0.0/0"},
	}

	var buf bytes.Buffer
	RenderFindings(&buf, findings, TableOptions{})
	out := buf.String()

	assert.Contains(t, out, "RESOURCE")
	assert.Contains(t, out, "SOURCE FILE")
	assert.Contains(t, out, "aws_security_group.web ingress")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "network.tf")
	assert.Contains(t, out, "Sensitive port 22 (SSH) exposed to 0.0.0.0/0")
}

func TestRenderFindingsEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderFindings(&buf, nil, TableOptions{})
	assert.Equal(t, "No findings.\n", buf.String())
}
