package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/complykit/ksi-evidence/internal/config"
	"github.com/complykit/ksi-evidence/internal/detect"
	"github.com/complykit/ksi-evidence/internal/evidence"
	"github.com/complykit/ksi-evidence/internal/ksi"
	"github.com/complykit/ksi-evidence/internal/ksi/cna01"
	"github.com/complykit/ksi-evidence/internal/ksi/mla05"
	"github.com/complykit/ksi-evidence/internal/models"
	"github.com/complykit/ksi-evidence/internal/network"
	"github.com/complykit/ksi-evidence/internal/output"
	"github.com/complykit/ksi-evidence/internal/server"
	"github.com/complykit/ksi-evidence/internal/tfexec"
	"github.com/complykit/ksi-evidence/internal/tfinventory"
	"github.com/complykit/ksi-evidence/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ksi",
		Short: "FedRAMP 20x KSI evidence generation and evaluation",
	}
	root.AddCommand(newScanCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// newRegistry wires up every evaluator the CLI knows about. Registration
// order fixes the rendering order of results.
func newRegistry() *ksi.Registry {
	reg := ksi.NewRegistry()
	reg.Register(mla05.New())
	reg.Register(cna01.New())
	return reg
}

// scanReport is the JSON output of ksi scan.
type scanReport struct {
	Detection *models.TerraformDetection `json:"terraform_detection"`
	Network   *models.NetworkInventory   `json:"network_inventory"`
}

func newScanCmd() *cobra.Command {
	var (
		rootPath   string
		configFile string
		paths      []string
		reportFmt  string
		outFile    string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Detect Terraform configuration and extract the network inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(logLevel)

			cfg, err := loadScanConfig(configFile)
			if err != nil {
				return err
			}
			if len(paths) > 0 {
				cfg.Paths = paths
			}

			det, err := detect.Scan(rootPath)
			if err != nil {
				return fmt.Errorf("terraform detection failed: %w", err)
			}
			inv, err := network.BuildInventory(rootPath, cfg.Paths, log)
			if err != nil {
				return fmt.Errorf("building network inventory: %w", err)
			}

			report := scanReport{Detection: det, Network: inv}
			if outFile != "" {
				if err := writeJSONFile(outFile, report); err != nil {
					return err
				}
			}
			if reportFmt == "json" {
				return printJSON(report)
			}
			printScanSummary(cmd.OutOrStdout(), det, inv)
			return nil
		},
	}

	cmd.Flags().StringVar(&rootPath, "path", ".", "Repository root to scan")
	cmd.Flags().StringVar(&configFile, "config", "", "Scan config file (default: ksi.yaml if present)")
	cmd.Flags().StringSliceVar(&paths, "paths", nil, "Restrict scanning to these root-relative paths")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().StringVar(&outFile, "output", "", "Write the JSON report to this file path as well")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

func newEvaluateCmd() *cobra.Command {
	var (
		rootPath      string
		configFile    string
		outputDir     string
		paths         []string
		ksiIDs        []string
		reportFmt     string
		colored       bool
		skipTerraform bool
		logLevel      string

		trigger      string
		repository   string
		commit       string
		workflowName string
		runID        string
		serverURL    string
		actor        string
	)

	cmd := &cobra.Command{
		Use:          "evaluate",
		Short:        "Evaluate KSIs against the repository and build evidence packs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(logLevel)

			cfg, err := loadScanConfig(configFile)
			if err != nil {
				return err
			}
			if len(paths) > 0 {
				cfg.Paths = paths
			}
			if outputDir == "" {
				outputDir = cfg.OutputDir
			}

			// Inside GitHub Actions the workflow context arrives via
			// environment variables; flags override them.
			trigger = envDefault(trigger, "GITHUB_EVENT_NAME")
			repository = envDefault(repository, "GITHUB_REPOSITORY")
			commit = envDefault(commit, "GITHUB_SHA")
			workflowName = envDefault(workflowName, "GITHUB_WORKFLOW")
			runID = envDefault(runID, "GITHUB_RUN_ID")
			serverURL = envDefault(serverURL, "GITHUB_SERVER_URL")
			actor = envDefault(actor, "GITHUB_ACTOR")

			proc := models.ProcessInfo{
				WorkflowName:   workflowName,
				WorkflowRunID:  runID,
				WorkflowRunURL: workflowRunURL(serverURL, repository, runID),
				TriggerEvent:   trigger,
				CommitSHA:      commit,
				Repository:     repository,
				Actor:          actor,
			}

			reg := newRegistry()
			selected, err := selectKSIs(reg, ksiIDs)
			if err != nil {
				return err
			}

			det, err := detect.Scan(rootPath)
			if err != nil {
				return fmt.Errorf("terraform detection failed: %w", err)
			}
			log.WithFields(logrus.Fields{
				"detected": det.Detected,
				"tf_files": det.TFFileCount,
			}).Info("terraform detection complete")

			var evalRes *tfexec.EvalResult
			if det.Detected && !skipTerraform {
				runner := &tfexec.Runner{Binary: cfg.TerraformBinary}
				dir := filepath.Join(rootPath, detect.RootPaths(det)[0])
				evalRes = runner.Evaluate(cmd.Context(), dir)
			}

			var tfInv *models.TerraformInventory
			if det.Detected {
				tfInv, err = tfinventory.Generate(rootPath, det.TFPaths)
				if err != nil {
					log.WithError(err).Warn("terraform inventory generation failed")
					tfInv = nil
				}
			}

			netInv, err := network.BuildInventory(rootPath, cfg.Paths, log)
			if err != nil {
				return fmt.Errorf("building network inventory: %w", err)
			}

			run := models.RunResults{
				SchemaVersion: evidence.SchemaVersion,
				RunID:         uuid.NewString(),
				EvaluatedAt:   time.Now().UTC().Format(time.RFC3339),
				TriggerEvent:  trigger,
				Repository:    repository,
				CommitSHA:     commit,
			}
			packs := map[string]*evidence.Pack{}

			if selected[mla05.KSIID] {
				pack, err := evidence.BuildConfigEvalPack(evidence.ConfigEvalInput{
					OutputDir: outputDir,
					Detection: det,
					Inventory: tfInv,
					EvalRes:   evalRes,
					Process:   proc,
				})
				if err != nil {
					return fmt.Errorf("building %s evidence pack: %w", mla05.KSIID, err)
				}
				packs[mla05.KSIID] = pack
				run.KSIResults = append(run.KSIResults, models.KSIResult{
					KSIID:        mla05.KSIID,
					KSIName:      mla05.KSIName,
					Status:       pack.Status,
					EvidencePath: pack.ZipPath,
				})
			}

			if selected[cna01.KSIID] {
				outcome := reg.Get(cna01.KSIID).Evaluate(&ksi.Input{
					Network:       netInv,
					Detection:     det,
					TerraformEval: evalRes,
					TriggerEvent:  trigger,
				})
				tfVersion := ""
				if evalRes != nil {
					tfVersion = evalRes.TerraformVersion
				}
				pack, err := evidence.BuildNetworkEvalPack(evidence.NetworkEvalInput{
					OutputDir:        outputDir,
					Inventory:        netInv,
					Outcome:          outcome,
					Repository:       repository,
					CommitSHA:        commit,
					TriggerEvent:     trigger,
					TFPaths:          det.TFPaths,
					TerraformVersion: tfVersion,
				})
				if err != nil {
					return fmt.Errorf("building %s evidence pack: %w", cna01.KSIID, err)
				}
				packs[cna01.KSIID] = pack
				run.KSIResults = append(run.KSIResults, models.KSIResult{
					KSIID:        cna01.KSIID,
					KSIName:      cna01.KSIName,
					Status:       pack.Status,
					EvidencePath: pack.ZipPath,
				})
			}

			// The combined roll-up replaces any per-KSI results.json the
			// pack builders left at the output root.
			if err := writeJSONFile(filepath.Join(outputDir, "results.json"), run); err != nil {
				return err
			}

			if reportFmt == "json" {
				return printJSON(run)
			}
			printEvaluation(cmd.OutOrStdout(), reg, packs, colored)
			return nil
		},
	}

	cmd.Flags().StringVar(&rootPath, "path", ".", "Repository root to evaluate")
	cmd.Flags().StringVar(&configFile, "config", "", "Scan config file (default: ksi.yaml if present)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for evidence packs (default: scan config output_dir)")
	cmd.Flags().StringSliceVar(&paths, "paths", nil, "Restrict scanning to these root-relative paths")
	cmd.Flags().StringSliceVar(&ksiIDs, "ksi", nil, "Evaluate only these KSI IDs (default: all)")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().BoolVar(&colored, "color", false, "Colorize status labels in table output")
	cmd.Flags().BoolVar(&skipTerraform, "skip-terraform", false, "Skip terraform init/validate even when terraform is installed")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	cmd.Flags().StringVar(&trigger, "trigger", "", "CI trigger event (default: $GITHUB_EVENT_NAME)")
	cmd.Flags().StringVar(&repository, "repository", "", "owner/repo under evaluation (default: $GITHUB_REPOSITORY)")
	cmd.Flags().StringVar(&commit, "commit", "", "Commit SHA under evaluation (default: $GITHUB_SHA)")
	cmd.Flags().StringVar(&workflowName, "workflow-name", "", "Workflow name (default: $GITHUB_WORKFLOW)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Workflow run ID (default: $GITHUB_RUN_ID)")
	cmd.Flags().StringVar(&serverURL, "server-url", "", "GitHub server URL (default: $GITHUB_SERVER_URL)")
	cmd.Flags().StringVar(&actor, "actor", "", "Actor that triggered the run (default: $GITHUB_ACTOR)")

	return cmd
}

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the GitHub App webhook service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadServerSettings(configFile)
			if err != nil {
				return err
			}
			log := newLogger(settings.LogLevel)

			srv, err := server.New(settings, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Settings file; environment variables take precedence")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// loadScanConfig reads the named scan config, or ksi.yaml when present,
// falling back to defaults when neither exists.
func loadScanConfig(configFile string) (*config.ScanConfig, error) {
	if configFile == "" {
		if _, err := os.Stat(config.DefaultConfigFile); err != nil {
			return config.DefaultScanConfig(), nil
		}
		configFile = config.DefaultConfigFile
	}
	cfg, err := config.LoadScanConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading scan config %s: %w", configFile, err)
	}
	return cfg, nil
}

// selectKSIs resolves the --ksi flag against the registry. Empty input
// selects everything.
func selectKSIs(reg *ksi.Registry, ids []string) (map[string]bool, error) {
	selected := map[string]bool{}
	if len(ids) == 0 {
		for _, e := range reg.All() {
			selected[e.ID()] = true
		}
		return selected, nil
	}
	for _, id := range ids {
		canonical := strings.ToUpper(strings.TrimSpace(id))
		if reg.Get(canonical) == nil {
			return nil, fmt.Errorf("unknown KSI %q", id)
		}
		selected[canonical] = true
	}
	return selected, nil
}

func envDefault(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

// workflowRunURL reconstructs the Actions run URL when the full context is
// available, otherwise returns "".
func workflowRunURL(serverURL, repository, runID string) string {
	if serverURL == "" || repository == "" || runID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", serverURL, repository, runID)
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func printScanSummary(w io.Writer, det *models.TerraformDetection, inv *models.NetworkInventory) {
	fmt.Fprintf(w, "Terraform detected:  %v\n", det.Detected)
	fmt.Fprintf(w, "Terraform files:     %d\n", det.TFFileCount)
	if len(det.TFPaths) > 0 {
		fmt.Fprintf(w, "Terraform paths:     %s\n", strings.Join(det.TFPaths, ", "))
	}
	fmt.Fprintf(w, "Security groups:     %d\n", len(inv.SecurityGroups))
	fmt.Fprintf(w, "VPCs / networks:     %d\n", len(inv.VPCs))
	fmt.Fprintf(w, "Subnets:             %d\n", len(inv.Subnets))
	fmt.Fprintf(w, "Route tables:        %d\n", len(inv.RouteTables))
	fmt.Fprintf(w, "Internet gateways:   %d\n", len(inv.InternetGateways))
	fmt.Fprintf(w, "NAT gateways:        %d\n", len(inv.NATGateways))
	fmt.Fprintf(w, "Load balancers:      %d\n", len(inv.LoadBalancers))
}

// printEvaluation renders one section per evaluated KSI in registration
// order: verdict line, criteria table, then any findings.
func printEvaluation(w io.Writer, reg *ksi.Registry, packs map[string]*evidence.Pack, colored bool) {
	opts := output.TableOptions{Colored: colored}
	for _, e := range reg.All() {
		pack, ok := packs[e.ID()]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n%s (%s): %s\n", e.ID(), e.Name(), output.ColorStatus(pack.Status, colored))
		fmt.Fprintf(w, "Evidence: %s\n\n", pack.ZipPath)
		output.RenderCriteria(w, pack.Outcome.Criteria, opts)

		var findings []models.Finding
		for _, c := range pack.Outcome.Criteria {
			findings = append(findings, c.Findings...)
		}
		if len(findings) > 0 {
			fmt.Fprintln(w)
			output.RenderFindings(w, findings, opts)
		}
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONFile writes v as indented JSON to path.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
