package models

// ProcessInfo captures the CI workflow run that produced an evaluation.
type ProcessInfo struct {
	WorkflowName   string `json:"workflow_name"`
	WorkflowRunID  string `json:"workflow_run_id"`
	WorkflowRunURL string `json:"workflow_run_url"`
	TriggerEvent   string `json:"trigger_event"`
	CommitSHA      string `json:"commit_sha"`
	Repository     string `json:"repository"`
	Actor          string `json:"actor"`
}

// ScopeInfo describes what was in scope for an evaluation. KSIID and
// KSIName are set on packs scoped to a single KSI.
type ScopeInfo struct {
	SchemaVersion         string   `json:"schema_version,omitempty"`
	Repository            string   `json:"repository"`
	CommitSHA             string   `json:"commit_sha"`
	ConfigurationSurfaces []string `json:"configuration_surfaces"`
	TerraformPaths        []string `json:"terraform_paths"`
	KSIID                 string   `json:"ksi_id,omitempty"`
	KSIName               string   `json:"ksi_name,omitempty"`
}

// EvaluationManifest is the primary output file for a configuration-surface
// KSI (evaluation_manifest.json); its Status field is the verdict.
type EvaluationManifest struct {
	SchemaVersion   string            `json:"schema_version"`
	KSIID           string            `json:"ksi_id"`
	RequirementText string            `json:"requirement_text"`
	Status          Status            `json:"status"`
	Reasons         []string          `json:"reasons"`
	EvaluatedAt     string            `json:"evaluated_at"`
	Scope           ScopeInfo         `json:"scope"`
	Process         ProcessInfo       `json:"process"`
	Criteria        []CriterionResult `json:"criteria"`
}

// NetworkEvaluationManifest is the evaluation_manifest.json for the
// network-policy KSI. Criteria are keyed by criterion ID.
type NetworkEvaluationManifest struct {
	SchemaVersion   string                     `json:"schema_version"`
	KSIID           string                     `json:"ksi_id"`
	KSIName         string                     `json:"ksi_name"`
	KSIDescription  string                     `json:"ksi_description"`
	AppliesTo       []string                   `json:"applies_to"`
	RelatedControls []string                   `json:"related_controls"`
	EvaluatedAt     string                     `json:"evaluated_at"`
	TriggerEvent    string                     `json:"trigger_event"`
	Repository      string                     `json:"repository"`
	CommitSHA       string                     `json:"commit_sha"`
	Criteria        map[string]CriterionResult `json:"criteria"`
	Summary         EvaluationSummary          `json:"summary"`
}

// FileEntry indexes one file inside the evidence pack manifest.
type FileEntry struct {
	Path          string `json:"path"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Description   string `json:"description"`
}

// EvidenceManifest is manifest.json, the index of every file in a pack.
// RunID ties the pack to one evaluation run.
type EvidenceManifest struct {
	SchemaVersion string      `json:"schema_version"`
	KSIID         string      `json:"ksi_id"`
	RunID         string      `json:"run_id"`
	GeneratedAt   string      `json:"generated_at"`
	CommitSHA     string      `json:"commit_sha"`
	Repository    string      `json:"repository"`
	Files         []FileEntry `json:"files"`
}

// CollectedAt is collected_at.json.
type CollectedAt struct {
	SchemaVersion string `json:"schema_version"`
	Timestamp     string `json:"timestamp"`
	Timezone      string `json:"timezone"`
}

// ToolsInfo is tools.json, recording the tool versions used for a run.
type ToolsInfo struct {
	SchemaVersion    string `json:"schema_version"`
	TerraformVersion string `json:"terraform_version,omitempty"`
	ActionVersion    string `json:"action_version"`
	GoVersion        string `json:"go_version,omitempty"`
}
