package models

// Severity represents the impact level of a finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Status is the outcome of one criterion or of a whole KSI evaluation.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	// StatusError means the evaluation corpus was insufficient or tooling
	// failed; it is distinct from "checked and non-compliant".
	StatusError Status = "ERROR"
	StatusSkip  Status = "SKIP"
)

// Finding is a single detected compliance issue. It is the atomic output
// unit of the criteria evaluators and is never mutated after creation.
type Finding struct {
	Resource   string         `json:"resource"`
	Issue      string         `json:"issue"`
	SourceFile string         `json:"source_file"`
	SourceLine int            `json:"source_line,omitempty"`
	Severity   Severity       `json:"severity"`
	Details    map[string]any `json:"details,omitempty"`
}

// CriterionResult is the outcome of one named, independently evaluated
// compliance criterion. For threshold criteria, Status is PASS iff Findings
// is empty; the only exception is the empty-inventory ERROR sentinel.
type CriterionResult struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Requirement string         `json:"requirement,omitempty"`
	Status      Status         `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Findings    []Finding      `json:"findings,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// EvaluationSummary aggregates a network-policy evaluation run.
type EvaluationSummary struct {
	Status                     Status `json:"status"`
	PassedCriteria             int    `json:"passed_criteria"`
	FailedCriteria             int    `json:"failed_criteria"`
	TotalCriteria              int    `json:"total_criteria"`
	SecurityGroupsEvaluated    int    `json:"security_groups_evaluated"`
	SecurityGroupsCompliant    int    `json:"security_groups_compliant"`
	SecurityGroupsNonCompliant int    `json:"security_groups_non_compliant"`
}

// KSIResult is one KSI's outcome inside the combined results roll-up.
type KSIResult struct {
	KSIID        string `json:"ksi_id"`
	KSIName      string `json:"ksi_name"`
	Status       Status `json:"status"`
	EvidencePath string `json:"evidence_path"`
}

// ResultsSummary is the per-KSI results.json quick reference consumed by the
// webhook app without unpacking the evidence zip.
type ResultsSummary struct {
	SchemaVersion string `json:"schema_version"`
	KSIID         string `json:"ksi_id"`
	Status        Status `json:"status"`
	ArtifactName  string `json:"artifact_name"`
	Summary       string `json:"summary"`
}

// RunResults is the combined results.json roll-up for a run that evaluated
// several KSIs.
type RunResults struct {
	SchemaVersion string      `json:"schema_version"`
	RunID         string      `json:"run_id"`
	EvaluatedAt   string      `json:"evaluated_at"`
	TriggerEvent  string      `json:"trigger_event"`
	Repository    string      `json:"repository"`
	CommitSHA     string      `json:"commit_sha"`
	KSIResults    []KSIResult `json:"ksi_results"`
}
