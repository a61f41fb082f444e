package models

// TerraformDetection is the result of scanning a repository for Terraform
// configuration files.
type TerraformDetection struct {
	SchemaVersion string `json:"schema_version"`
	Detected      bool   `json:"detected"`
	TFFileCount   int    `json:"tf_file_count"`
	// TFPaths lists the unique directories containing .tf files, sorted.
	// "." denotes the repository root.
	TFPaths         []string `json:"tf_paths"`
	LockfilePresent bool     `json:"lockfile_present"`
	ScannedAt       string   `json:"scanned_at"`
}

// ResourceTypeSummary counts declared instances of one resource type.
type ResourceTypeSummary struct {
	Count int      `json:"count"`
	Files []string `json:"files"`
}

// ResourceSummary aggregates declared resources across the configuration.
type ResourceSummary struct {
	TotalCount int                            `json:"total_count"`
	ByType     map[string]ResourceTypeSummary `json:"by_type"`
}

// Provider is a provider declaration found in Terraform configuration.
type Provider struct {
	Name              string `json:"name"`
	Source            string `json:"source,omitempty"`
	VersionConstraint string `json:"version_constraint,omitempty"`
}

// Module is a module call found in Terraform configuration.
type Module struct {
	Name       string `json:"name"`
	Source     string `json:"source"`
	Version    string `json:"version,omitempty"`
	DeclaredIn string `json:"declared_in"`
}

// TerraformInventory summarizes resources, providers, and modules declared
// across the scanned configuration.
type TerraformInventory struct {
	SchemaVersion  string          `json:"schema_version"`
	GeneratedAt    string          `json:"generated_at"`
	TerraformPaths []string        `json:"terraform_paths"`
	Resources      ResourceSummary `json:"resources"`
	Providers      []Provider      `json:"providers"`
	Modules        []Module        `json:"modules"`
	FilesAnalyzed  []string        `json:"files_analyzed"`
}
