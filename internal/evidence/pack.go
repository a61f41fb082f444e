package evidence

import (
	"fmt"
	"time"

	"github.com/complykit/ksi-evidence/internal/ksi"
	"github.com/complykit/ksi-evidence/internal/ksi/cna01"
	"github.com/complykit/ksi-evidence/internal/ksi/mla05"
	"github.com/complykit/ksi-evidence/internal/models"
	"github.com/complykit/ksi-evidence/internal/tfexec"
)

// Pack is the finished evidence artifact for one KSI.
type Pack struct {
	ZipPath      string
	ArtifactName string
	Status       models.Status
	Outcome      *ksi.Outcome
}

// SummaryText is the one-line verdict wording for results.json.
func SummaryText(ksiID string, status models.Status) string {
	switch status {
	case models.StatusPass:
		return fmt.Sprintf("All %s criteria passed.", ksiID)
	case models.StatusFail:
		return fmt.Sprintf("%s evaluation failed. Review criteria results for details.", ksiID)
	default:
		return fmt.Sprintf("%s evaluation encountered errors. Unable to determine compliance status.", ksiID)
	}
}

// ConfigEvalInput is everything the configuration-evaluation pack needs.
type ConfigEvalInput struct {
	OutputDir string

	Detection *models.TerraformDetection
	Inventory *models.TerraformInventory
	EvalRes   *tfexec.EvalResult

	Process models.ProcessInfo
}

// BuildConfigEvalPack builds the KSI-MLA-05 evidence pack: detection and
// inventory artifacts, the evaluation manifest, the pack index, hashes, and
// the zip. The returned status is the rolled-up KSI verdict.
func BuildConfigEvalPack(in ConfigEvalInput) (*Pack, error) {
	b := NewBuilder(in.OutputDir, mla05.KSIID, "ksi-mla-05", mla05.ArtifactPrefix)

	scope := models.ScopeInfo{
		SchemaVersion:         SchemaVersion,
		Repository:            in.Process.Repository,
		CommitSHA:             in.Process.CommitSHA,
		ConfigurationSurfaces: []string{"TERRAFORM"},
		TerraformPaths:        in.Detection.TFPaths,
	}

	if err := b.WriteCollectedAt(); err != nil {
		return nil, err
	}
	if err := b.WriteScope(scope); err != nil {
		return nil, err
	}
	tfVersion := ""
	if in.EvalRes != nil {
		tfVersion = in.EvalRes.TerraformVersion
	}
	if err := b.WriteTools(tfVersion); err != nil {
		return nil, err
	}

	if err := b.WriteDeclared("terraform_detection.json", in.Detection, "Terraform detection results"); err != nil {
		return nil, err
	}
	if in.Inventory != nil {
		if err := b.WriteDeclared("terraform_inventory.json", in.Inventory, "Terraform configuration inventory"); err != nil {
			return nil, err
		}
	}

	// Criteria are computed while the pack is being written, so the
	// evidence-generated criterion reflects this very pack.
	outcome := mla05.New().Evaluate(&ksi.Input{
		Detection:         in.Detection,
		TerraformEval:     in.EvalRes,
		TriggerEvent:      in.Process.TriggerEvent,
		EvidenceGenerated: true,
	})

	manifest := models.EvaluationManifest{
		SchemaVersion:   SchemaVersion,
		KSIID:           mla05.KSIID,
		RequirementText: mla05.RequirementText,
		Status:          outcome.Status,
		Reasons:         outcome.Reasons,
		EvaluatedAt:     b.Timestamp.Format(time.RFC3339),
		Scope:           scope,
		Process:         in.Process,
		Criteria:        outcome.Criteria,
	}
	if err := b.WriteJSON("evaluation_manifest.json", "", manifest,
		"Primary evaluation manifest with PASS/FAIL/ERROR status"); err != nil {
		return nil, err
	}

	if err := b.WriteManifest(in.Process.Repository, in.Process.CommitSHA); err != nil {
		return nil, err
	}
	if err := b.WriteHashes(); err != nil {
		return nil, err
	}
	zipPath, artifactName, err := b.CreateZip(in.Process.CommitSHA)
	if err != nil {
		return nil, err
	}
	if err := b.WriteResults(outcome.Status, artifactName, SummaryText(mla05.KSIID, outcome.Status)); err != nil {
		return nil, err
	}

	return &Pack{ZipPath: zipPath, ArtifactName: artifactName, Status: outcome.Status, Outcome: outcome}, nil
}

// NetworkEvalInput is everything the network-policy pack needs.
type NetworkEvalInput struct {
	OutputDir string

	Inventory *models.NetworkInventory
	Outcome   *ksi.Outcome

	Repository       string
	CommitSHA        string
	TriggerEvent     string
	TFPaths          []string
	TerraformVersion string
}

// BuildNetworkEvalPack builds the KSI-CNA-01 evidence pack around an
// already-computed evaluation outcome.
func BuildNetworkEvalPack(in NetworkEvalInput) (*Pack, error) {
	b := NewBuilder(in.OutputDir, cna01.KSIID, "ksi-cna-01", cna01.ArtifactPrefix)

	if err := b.WriteCollectedAt(); err != nil {
		return nil, err
	}
	if err := b.WriteScope(models.ScopeInfo{
		SchemaVersion:         SchemaVersion,
		Repository:            in.Repository,
		CommitSHA:             in.CommitSHA,
		ConfigurationSurfaces: []string{"TERRAFORM"},
		TerraformPaths:        in.TFPaths,
		KSIID:                 cna01.KSIID,
		KSIName:               cna01.KSIName,
	}); err != nil {
		return nil, err
	}
	if err := b.WriteTools(in.TerraformVersion); err != nil {
		return nil, err
	}

	if err := b.WriteDeclared("network_inventory.json", in.Inventory,
		"Network inventory extracted from Terraform configuration"); err != nil {
		return nil, err
	}

	summary := models.EvaluationSummary{}
	if in.Outcome.Summary != nil {
		summary = *in.Outcome.Summary
	}
	manifest := models.NetworkEvaluationManifest{
		SchemaVersion:   SchemaVersion,
		KSIID:           cna01.KSIID,
		KSIName:         cna01.KSIName,
		KSIDescription:  cna01.RequirementText,
		AppliesTo:       cna01.AppliesTo,
		RelatedControls: cna01.RelatedControls,
		EvaluatedAt:     b.Timestamp.Format(time.RFC3339),
		TriggerEvent:    in.TriggerEvent,
		Repository:      in.Repository,
		CommitSHA:       in.CommitSHA,
		Criteria:        in.Outcome.CriteriaByID(),
		Summary:         summary,
	}
	if err := b.WriteJSON("evaluation_manifest.json", "", manifest,
		"Primary evaluation manifest with PASS/FAIL/ERROR status"); err != nil {
		return nil, err
	}

	if err := b.WriteManifest(in.Repository, in.CommitSHA); err != nil {
		return nil, err
	}
	if err := b.WriteHashes(); err != nil {
		return nil, err
	}
	zipPath, artifactName, err := b.CreateZip(in.CommitSHA)
	if err != nil {
		return nil, err
	}

	return &Pack{ZipPath: zipPath, ArtifactName: artifactName, Status: in.Outcome.Status, Outcome: in.Outcome}, nil
}
