package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/complykit/ksi-evidence/internal/evidence"
	"github.com/complykit/ksi-evidence/internal/ksi"
	"github.com/complykit/ksi-evidence/internal/ksi/cna01"
	"github.com/complykit/ksi-evidence/internal/ksi/mla05"
	"github.com/complykit/ksi-evidence/internal/models"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const sampleSecurityGroup = `
resource "aws_security_group" "web" {
  name = "web"

  ingress {
    from_port   = 443
    to_port     = 443
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
  }
}
`

// ── selectKSIs ───────────────────────────────────────────────────────────────

func TestSelectKSIs_Default(t *testing.T) {
	reg := newRegistry()
	selected, err := selectKSIs(reg, nil)
	if err != nil {
		t.Fatalf("selectKSIs returned error: %v", err)
	}
	if !selected[mla05.KSIID] || !selected[cna01.KSIID] {
		t.Errorf("empty --ksi should select every evaluator; got %v", selected)
	}
}

func TestSelectKSIs_Explicit(t *testing.T) {
	reg := newRegistry()
	selected, err := selectKSIs(reg, []string{" ksi-cna-01 "})
	if err != nil {
		t.Fatalf("selectKSIs returned error: %v", err)
	}
	if !selected[cna01.KSIID] {
		t.Errorf("lowercase padded ID should resolve; got %v", selected)
	}
	if selected[mla05.KSIID] {
		t.Errorf("unselected KSI should be absent; got %v", selected)
	}
}

func TestSelectKSIs_Unknown(t *testing.T) {
	reg := newRegistry()
	if _, err := selectKSIs(reg, []string{"KSI-NOPE-99"}); err == nil {
		t.Fatal("unknown KSI ID should error")
	}
}

// ── env fallbacks ────────────────────────────────────────────────────────────

func TestEnvDefault(t *testing.T) {
	t.Setenv("KSI_TEST_VAR", "from-env")
	if got := envDefault("from-flag", "KSI_TEST_VAR"); got != "from-flag" {
		t.Errorf("flag value should win; got %q", got)
	}
	if got := envDefault("", "KSI_TEST_VAR"); got != "from-env" {
		t.Errorf("empty flag should fall back to env; got %q", got)
	}
}

func TestWorkflowRunURL(t *testing.T) {
	got := workflowRunURL("https://github.com", "acme/platform", "42")
	want := "https://github.com/acme/platform/actions/runs/42"
	if got != want {
		t.Errorf("workflowRunURL = %q, want %q", got, want)
	}
	if got := workflowRunURL("", "acme/platform", "42"); got != "" {
		t.Errorf("partial context should yield empty URL; got %q", got)
	}
}

// ── scan command ─────────────────────────────────────────────────────────────

func TestScanCmd_TableOutput(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tf", sampleSecurityGroup)

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"scan", "--path", dir})

	if err := root.Execute(); err != nil {
		t.Fatalf("scan returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Terraform detected:  true", "Terraform files:     1", "Security groups:     1"} {
		if !strings.Contains(out, want) {
			t.Errorf("scan output missing %q; got:\n%s", want, out)
		}
	}
}

func TestScanCmd_WritesReportFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "infra/network.tf", sampleSecurityGroup)
	outFile := filepath.Join(t.TempDir(), "report.json")

	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{"scan", "--path", dir, "--output", outFile})

	if err := root.Execute(); err != nil {
		t.Fatalf("scan returned error: %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("reading report file: %v", err)
	}
	var report scanReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report file is not valid JSON: %v", err)
	}
	if !report.Detection.Detected {
		t.Error("report should mark terraform as detected")
	}
	if len(report.Network.SecurityGroups) != 1 {
		t.Errorf("expected 1 security group, got %d", len(report.Network.SecurityGroups))
	}
	if report.Network.SecurityGroups[0].SourceFile != "infra/network.tf" {
		t.Errorf("source file should be root-relative; got %q", report.Network.SecurityGroups[0].SourceFile)
	}
}

// ── evaluate command ─────────────────────────────────────────────────────────

func TestEvaluateCmd_BuildsEvidencePacks(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tf", sampleSecurityGroup)
	outDir := t.TempDir()

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{
		"evaluate",
		"--path", dir,
		"--output-dir", outDir,
		"--skip-terraform",
		"--trigger", "schedule",
		"--repository", "acme/platform",
		"--commit", "0123456789abcdef0123456789abcdef01234567",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("evaluate returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "results.json"))
	if err != nil {
		t.Fatalf("results.json not written: %v", err)
	}
	var run models.RunResults
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("results.json is not valid JSON: %v", err)
	}
	if run.SchemaVersion != evidence.SchemaVersion {
		t.Errorf("schema version = %q", run.SchemaVersion)
	}
	if len(run.KSIResults) != 2 {
		t.Fatalf("expected 2 KSI results, got %d", len(run.KSIResults))
	}
	if run.KSIResults[0].KSIID != mla05.KSIID {
		t.Errorf("first result should be %s, got %s", mla05.KSIID, run.KSIResults[0].KSIID)
	}

	zips, err := filepath.Glob(filepath.Join(outDir, "evidence_ksi-*.zip"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(zips) != 2 {
		t.Errorf("expected 2 evidence zips, got %d: %v", len(zips), zips)
	}

	out := buf.String()
	if !strings.Contains(out, "KSI-CNA-01 (Restrict Network Traffic):") {
		t.Errorf("table output missing CNA-01 section; got:\n%s", out)
	}
}

func TestEvaluateCmd_KSIFilter(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tf", sampleSecurityGroup)
	outDir := t.TempDir()

	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{
		"evaluate",
		"--path", dir,
		"--output-dir", outDir,
		"--skip-terraform",
		"--ksi", "KSI-CNA-01",
		"--trigger", "schedule",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("evaluate returned error: %v", err)
	}

	var run models.RunResults
	data, err := os.ReadFile(filepath.Join(outDir, "results.json"))
	if err != nil {
		t.Fatalf("results.json not written: %v", err)
	}
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if len(run.KSIResults) != 1 || run.KSIResults[0].KSIID != cna01.KSIID {
		t.Errorf("only CNA-01 should be evaluated; got %+v", run.KSIResults)
	}
}

// ── printEvaluation ──────────────────────────────────────────────────────────

func TestPrintEvaluation_RegistrationOrder(t *testing.T) {
	reg := newRegistry()
	packs := map[string]*evidence.Pack{
		cna01.KSIID: {
			ZipPath: "out/cna.zip",
			Status:  models.StatusPass,
			Outcome: &ksi.Outcome{Status: models.StatusPass, Criteria: []models.CriterionResult{
				{ID: "CNA01-A", Name: "Ingress Restrictions", Status: models.StatusPass, Reason: "ok"},
			}},
		},
		mla05.KSIID: {
			ZipPath: "out/mla.zip",
			Status:  models.StatusFail,
			Outcome: &ksi.Outcome{Status: models.StatusFail, Criteria: []models.CriterionResult{
				{ID: "MLA05-B", Name: "Machine-Based Evaluation Performed", Status: models.StatusFail, Reason: "no"},
			}},
		},
	}

	var buf bytes.Buffer
	printEvaluation(&buf, reg, packs, false)
	out := buf.String()

	mlaIdx := strings.Index(out, "KSI-MLA-05")
	cnaIdx := strings.Index(out, "KSI-CNA-01")
	if mlaIdx < 0 || cnaIdx < 0 {
		t.Fatalf("both KSI sections expected; got:\n%s", out)
	}
	if mlaIdx > cnaIdx {
		t.Error("MLA-05 registers first and should render first")
	}
	if !strings.Contains(out, "Evidence: out/mla.zip") {
		t.Errorf("evidence path missing; got:\n%s", out)
	}
}
