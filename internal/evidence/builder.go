// Package evidence builds the on-disk evidence pack for a KSI evaluation:
// a directory of JSON artifacts, a manifest index, a SHA-256 hash list, and
// a deflated zip named after the commit and timestamp.
package evidence

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/complykit/ksi-evidence/internal/models"
	"github.com/complykit/ksi-evidence/internal/version"
)

// SchemaVersion identifies the evidence document layouts.
const SchemaVersion = "1.0"

type fileRecord struct {
	relPath     string
	description string
}

// Builder accumulates evidence files for one KSI and finalizes them into a
// hash list and zip. Files live under {outputDir}/evidence/{slug}/ with
// pack-relative paths recorded for the manifest.
type Builder struct {
	outputDir string
	slug      string
	ksiID     string
	prefix    string

	// Timestamp is taken once so every artifact in the pack carries the
	// same collection time.
	Timestamp time.Time
	RunID     string

	files []fileRecord
}

// NewBuilder prepares a pack builder for one KSI. slug is the directory
// name, e.g. "ksi-cna-01"; prefix names the final zip artifact.
func NewBuilder(outputDir, ksiID, slug, prefix string) *Builder {
	return &Builder{
		outputDir: outputDir,
		slug:      slug,
		ksiID:     ksiID,
		prefix:    prefix,
		Timestamp: time.Now().UTC(),
		RunID:     uuid.NewString(),
	}
}

func (b *Builder) evidenceDir() string {
	return filepath.Join(b.outputDir, "evidence", b.slug)
}

// WriteJSON writes one JSON artifact into the pack and records it for the
// manifest and hash list. subdir may be empty.
func (b *Builder) WriteJSON(filename, subdir string, data any, description string) error {
	targetDir := b.evidenceDir()
	relPath := "evidence/" + b.slug + "/" + filename
	if subdir != "" {
		targetDir = filepath.Join(targetDir, subdir)
		relPath = "evidence/" + b.slug + "/" + subdir + "/" + filename
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filename, err)
	}
	if err := os.WriteFile(filepath.Join(targetDir, filename), append(buf, '\n'), 0o644); err != nil {
		return err
	}

	b.files = append(b.files, fileRecord{relPath: relPath, description: description})
	return nil
}

// WriteCollectedAt writes collected_at.json.
func (b *Builder) WriteCollectedAt() error {
	return b.WriteJSON("collected_at.json", "", models.CollectedAt{
		SchemaVersion: SchemaVersion,
		Timestamp:     b.Timestamp.Format(time.RFC3339),
		Timezone:      "UTC",
	}, "Timestamp of evidence collection")
}

// WriteScope writes scope.json.
func (b *Builder) WriteScope(scope models.ScopeInfo) error {
	return b.WriteJSON("scope.json", "", scope, "Scope of the evaluation")
}

// WriteTools writes tools.json.
func (b *Builder) WriteTools(terraformVersion string) error {
	return b.WriteJSON("tools.json", "", models.ToolsInfo{
		SchemaVersion:    SchemaVersion,
		TerraformVersion: terraformVersion,
		ActionVersion:    version.Version,
		GoVersion:        strings.TrimPrefix(runtime.Version(), "go"),
	}, "Tools and versions used for evaluation")
}

// WriteDeclared writes one artifact into the declared/ subdirectory.
func (b *Builder) WriteDeclared(filename string, data any, description string) error {
	return b.WriteJSON(filename, "declared", data, description)
}

// WriteManifest writes manifest.json, the index of everything written so
// far. Call after the last content file and before WriteHashes.
func (b *Builder) WriteManifest(repository, commitSHA string) error {
	files := make([]models.FileEntry, 0, len(b.files))
	for _, f := range b.files {
		files = append(files, models.FileEntry{
			Path:          f.relPath,
			SchemaVersion: SchemaVersion,
			Description:   f.description,
		})
	}
	return b.WriteJSON("manifest.json", "", models.EvidenceManifest{
		SchemaVersion: SchemaVersion,
		KSIID:         b.ksiID,
		RunID:         b.RunID,
		GeneratedAt:   b.Timestamp.Format(time.RFC3339),
		CommitSHA:     commitSHA,
		Repository:    repository,
		Files:         files,
	}, "Index of all evidence files")
}

// WriteHashes writes hashes.sha256 covering every file written so far, then
// records the hash file itself so it lands in the zip. Must be the last
// write; the hash file cannot cover itself.
func (b *Builder) WriteHashes() error {
	var errs *multierror.Error
	var lines []string

	for _, f := range b.files {
		digest, err := hashFile(filepath.Join(b.outputDir, filepath.FromSlash(f.relPath)))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("hash %s: %w", f.relPath, err))
			continue
		}
		lines = append(lines, digest+"  "+f.relPath)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	hashesPath := filepath.Join(b.evidenceDir(), "hashes.sha256")
	if err := os.WriteFile(hashesPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return err
	}
	b.files = append(b.files, fileRecord{
		relPath:     "evidence/" + b.slug + "/hashes.sha256",
		description: "SHA-256 hashes of all evidence files",
	})
	return nil
}

// CreateZip packs every recorded file into
// {prefix}_{shortSHA}_{YYYYMMDDTHHMMSSZ}.zip under the output directory and
// returns the zip path and artifact name.
func (b *Builder) CreateZip(commitSHA string) (string, string, error) {
	shortSHA := commitSHA
	if len(shortSHA) > 7 {
		shortSHA = shortSHA[:7]
	}
	artifactName := fmt.Sprintf("%s_%s_%s.zip", b.prefix, shortSHA, b.Timestamp.Format("20060102T150405Z"))
	zipPath := filepath.Join(b.outputDir, artifactName)

	f, err := os.Create(zipPath)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	var errs *multierror.Error
	for _, rec := range b.files {
		if err := addToZip(zw, filepath.Join(b.outputDir, filepath.FromSlash(rec.relPath)), rec.relPath); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("zip %s: %w", rec.relPath, err))
		}
	}
	if err := zw.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return "", "", err
	}
	return zipPath, artifactName, nil
}

// WriteResults writes results.json at the output root, outside the zip, so
// downstream automation can read the verdict without unpacking.
func (b *Builder) WriteResults(status models.Status, artifactName, summary string) error {
	buf, err := json.MarshalIndent(models.ResultsSummary{
		SchemaVersion: SchemaVersion,
		KSIID:         b.ksiID,
		Status:        status,
		ArtifactName:  artifactName,
		Summary:       summary,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.outputDir, "results.json"), append(buf, '\n'), 0o644)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func addToZip(zw *zip.Writer, absPath, relPath string) error {
	src, err := os.Open(absPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.Create(relPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
