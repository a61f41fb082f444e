// Package detect scans a repository tree for Terraform configuration and
// reports where it lives, before any parsing happens.
package detect

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/complykit/ksi-evidence/internal/models"
)

// SchemaVersion identifies the detection document layout.
const SchemaVersion = "1.0"

// LockfileName is the dependency lockfile Terraform writes next to its
// configuration.
const LockfileName = ".terraform.lock.hcl"

// excludedDirs are directory names the scan never descends into. Dot-prefixed
// directories are skipped unconditionally.
var excludedDirs = map[string]struct{}{
	".terraform":   {},
	".git":         {},
	"node_modules": {},
	"__pycache__":  {},
	".venv":        {},
	"venv":         {},
}

func skipDir(name string) bool {
	if _, ok := excludedDirs[name]; ok {
		return true
	}
	return strings.HasPrefix(name, ".")
}

// Scan walks root and reports whether Terraform configuration is present,
// how many .tf files exist, and which directories hold them. The repository
// root is reported as ".".
func Scan(root string) (*models.TerraformDetection, error) {
	det := &models.TerraformDetection{
		SchemaVersion: SchemaVersion,
		ScannedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	dirs := make(map[string]struct{})

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == LockfileName {
			det.LockfilePresent = true
		}
		if !strings.HasSuffix(d.Name(), ".tf") {
			return nil
		}
		det.TFFileCount++
		rel, relErr := filepath.Rel(root, filepath.Dir(path))
		if relErr != nil {
			return relErr
		}
		dirs[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	det.Detected = det.TFFileCount > 0
	for dir := range dirs {
		det.TFPaths = append(det.TFPaths, dir)
	}
	sort.Strings(det.TFPaths)
	return det, nil
}

// RootPaths returns the directories terraform init and validate should run
// in. A single root is supported for now; monorepos with several roots fall
// back to the first detected path.
func RootPaths(det *models.TerraformDetection) []string {
	if det == nil || !det.Detected {
		return nil
	}
	if len(det.TFPaths) == 0 {
		return []string{"."}
	}
	return det.TFPaths[:1]
}
