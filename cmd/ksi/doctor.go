package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/complykit/ksi-evidence/internal/config"
	"github.com/complykit/ksi-evidence/internal/tfexec"
)

// DoctorResult is the structured output of ksi doctor. It can be serialised
// to JSON via --format=json or rendered as a human-readable table (default).
type DoctorResult struct {
	Terraform struct {
		Found   bool   `json:"found"`
		Version string `json:"version,omitempty"`
		Error   string `json:"error,omitempty"`
	} `json:"terraform"`

	ScanConfig struct {
		Present bool   `json:"present"`
		Path    string `json:"path,omitempty"`
		Valid   bool   `json:"valid"`
		Error   string `json:"error,omitempty"`
	} `json:"scan_config"`

	GitHubApp struct {
		AppIDSet         bool `json:"app_id_set"`
		PrivateKeySet    bool `json:"private_key_set"`
		WebhookSecretSet bool `json:"webhook_secret_set"`
		Configured       bool `json:"configured"`
	} `json:"github_app"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			binary, _ := cmd.Flags().GetString("terraform-binary")
			result, err := runDoctor(cmd.Context(), binary, cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				// Exit directly so no error text reaches main's stderr path.
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().String("terraform-binary", "", "Terraform executable to probe (default: terraform)")
	return cmd
}

// runDoctor collects diagnostics, renders them to w in the requested format,
// and returns the result. The returned error covers only rendering failures;
// callers inspect result.OverallHealthy for the environment verdict.
func runDoctor(ctx context.Context, terraformBinary string, w io.Writer, format string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, terraformBinary)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}

	return result, nil
}

func collectDoctorResult(ctx context.Context, terraformBinary string) DoctorResult {
	var result DoctorResult

	// Terraform: probe the executable and read its version.
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	runner := &tfexec.Runner{Binary: terraformBinary}
	ver, err := runner.Version(probeCtx)
	if err != nil {
		result.Terraform.Error = err.Error()
	} else {
		result.Terraform.Found = true
		result.Terraform.Version = ver
	}

	// Scan config: stat, then load and validate (file is optional).
	if _, statErr := os.Stat(config.DefaultConfigFile); statErr == nil {
		result.ScanConfig.Present = true
		result.ScanConfig.Path = config.DefaultConfigFile
		if _, loadErr := config.LoadScanConfig(config.DefaultConfigFile); loadErr != nil {
			result.ScanConfig.Error = loadErr.Error()
		} else {
			result.ScanConfig.Valid = true
		}
	}

	// GitHub App credentials matter only for serve; partial configuration
	// is the failure mode worth flagging.
	result.GitHubApp.AppIDSet = os.Getenv("GITHUB_APP_ID") != ""
	result.GitHubApp.PrivateKeySet = os.Getenv("GITHUB_APP_PRIVATE_KEY") != ""
	result.GitHubApp.WebhookSecretSet = os.Getenv("GITHUB_WEBHOOK_SECRET") != ""
	result.GitHubApp.Configured = result.GitHubApp.AppIDSet &&
		result.GitHubApp.PrivateKeySet &&
		result.GitHubApp.WebhookSecretSet
	appConsistent := result.GitHubApp.Configured ||
		(!result.GitHubApp.AppIDSet && !result.GitHubApp.PrivateKeySet && !result.GitHubApp.WebhookSecretSet)

	result.OverallHealthy = result.Terraform.Found &&
		(!result.ScanConfig.Present || result.ScanConfig.Valid) &&
		appConsistent

	return result
}

func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	fmt.Fprintln(w, "\nTerraform:")
	if result.Terraform.Found {
		doctorPrint(w, "Executable", "OK", "Version: "+result.Terraform.Version)
	} else {
		doctorPrint(w, "Executable", "FAIL", result.Terraform.Error)
	}

	fmt.Fprintln(w, "\nScan Config:")
	if !result.ScanConfig.Present {
		doctorPrint(w, "ksi.yaml present", "Not found (optional)", "")
	} else {
		doctorPrint(w, "ksi.yaml present", "YES", "")
		if result.ScanConfig.Valid {
			doctorPrint(w, "Config valid", "OK", "")
		} else {
			doctorPrint(w, "Config valid", "FAIL", result.ScanConfig.Error)
		}
	}

	fmt.Fprintln(w, "\nGitHub App:")
	if result.GitHubApp.Configured {
		doctorPrint(w, "Credentials", "OK", "")
	} else if !result.GitHubApp.AppIDSet && !result.GitHubApp.PrivateKeySet && !result.GitHubApp.WebhookSecretSet {
		doctorPrint(w, "Credentials", "Not configured (optional)", "")
	} else {
		doctorPrint(w, "GITHUB_APP_ID", envStatus(result.GitHubApp.AppIDSet), "")
		doctorPrint(w, "GITHUB_APP_PRIVATE_KEY", envStatus(result.GitHubApp.PrivateKeySet), "")
		doctorPrint(w, "GITHUB_WEBHOOK_SECRET", envStatus(result.GitHubApp.WebhookSecretSet), "")
	}
}

func envStatus(set bool) string {
	if set {
		return "SET"
	}
	return "MISSING"
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
