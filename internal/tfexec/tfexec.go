// Package tfexec wraps the terraform binary for machine-based evaluation.
// Only read-only commands are run; init always disables the backend so no
// remote state is touched.
package tfexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTerraformNotFound is returned when no terraform binary is on PATH.
var ErrTerraformNotFound = errors.New("terraform executable not found")

const (
	versionTimeout  = 30 * time.Second
	initTimeout     = 5 * time.Minute
	validateTimeout = 2 * time.Minute
)

// EvalResult is the outcome of a full init+validate evaluation.
type EvalResult struct {
	Success          bool   `json:"success"`
	TerraformVersion string `json:"terraform_version,omitempty"`
	InitSuccess      bool   `json:"init_success"`
	InitOutput       string `json:"init_output"`
	InitError        string `json:"init_error"`
	ValidateSuccess  bool   `json:"validate_success"`
	ValidateOutput   string `json:"validate_output"`
	ValidateError    string `json:"validate_error"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// Runner executes terraform commands. Binary defaults to "terraform".
type Runner struct {
	Binary string
}

func (r *Runner) binary() string {
	if r == nil || r.Binary == "" {
		return "terraform"
	}
	return r.Binary
}

func (r *Runner) run(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary(), args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return stdout.String(), stderr.String(), fmt.Errorf("terraform %s timed out after %s", args[0], timeout)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return stdout.String(), stderr.String(), ErrTerraformNotFound
		}
	}
	return stdout.String(), stderr.String(), err
}

// Version reports the installed terraform version. It prefers the JSON
// output and falls back to parsing the "Terraform vX.Y.Z" banner.
func (r *Runner) Version(ctx context.Context) (string, error) {
	stdout, _, err := r.run(ctx, "", versionTimeout, "version", "-json")
	if errors.Is(err, ErrTerraformNotFound) {
		return "", err
	}
	if err == nil {
		var info struct {
			TerraformVersion string `json:"terraform_version"`
		}
		if jsonErr := json.Unmarshal([]byte(stdout), &info); jsonErr == nil && info.TerraformVersion != "" {
			return info.TerraformVersion, nil
		}
	}

	stdout, _, err = r.run(ctx, "", versionTimeout, "version")
	if err != nil {
		return "", err
	}
	firstLine, _, _ := strings.Cut(strings.TrimSpace(stdout), "\n")
	if v, ok := strings.CutPrefix(firstLine, "Terraform v"); ok {
		return strings.TrimSpace(v), nil
	}
	return "", fmt.Errorf("unrecognized terraform version output: %q", firstLine)
}

// Init runs terraform init with the backend disabled.
func (r *Runner) Init(ctx context.Context, dir string) (bool, string, string) {
	stdout, stderr, err := r.run(ctx, dir, initTimeout, "init", "-backend=false", "-no-color")
	if err != nil {
		if stderr == "" {
			stderr = err.Error()
		}
		return false, stdout, stderr
	}
	return true, stdout, stderr
}

// Validate runs terraform validate.
func (r *Runner) Validate(ctx context.Context, dir string) (bool, string, string) {
	stdout, stderr, err := r.run(ctx, dir, validateTimeout, "validate", "-no-color")
	if err != nil {
		if stderr == "" {
			stderr = err.Error()
		}
		return false, stdout, stderr
	}
	return true, stdout, stderr
}

// Evaluate runs the full version+init+validate sequence against dir. The
// returned result always carries the per-step outputs; Success is true only
// when validate passed.
func (r *Runner) Evaluate(ctx context.Context, dir string) *EvalResult {
	res := &EvalResult{}

	version, err := r.Version(ctx)
	if err != nil {
		res.InitError = "Terraform not installed or not in PATH"
		res.ErrorMessage = "Terraform executable not found. Ensure Terraform is installed."
		return res
	}
	res.TerraformVersion = version

	res.InitSuccess, res.InitOutput, res.InitError = r.Init(ctx, dir)
	if !res.InitSuccess {
		res.ValidateError = "Skipped due to init failure"
		msg := res.InitError
		if msg == "" {
			msg = "Unknown error"
		}
		res.ErrorMessage = "Terraform init failed: " + msg
		return res
	}

	res.ValidateSuccess, res.ValidateOutput, res.ValidateError = r.Validate(ctx, dir)
	res.Success = res.ValidateSuccess
	if !res.ValidateSuccess {
		res.ErrorMessage = "Terraform validate failed: " + res.ValidateError
	}
	return res
}
