// Package tfinventory summarizes the resources, providers, and modules a
// Terraform configuration declares, without initializing or planning it.
package tfinventory

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/complykit/ksi-evidence/internal/hclread"
	"github.com/complykit/ksi-evidence/internal/models"
)

// SchemaVersion identifies the inventory document layout.
const SchemaVersion = "1.0"

var excludedDirs = map[string]struct{}{
	".terraform":   {},
	".git":         {},
	"node_modules": {},
	"__pycache__":  {},
	".venv":        {},
	"venv":         {},
}

// Generate parses every .tf file under root (or under the given
// root-relative tfPaths when non-empty) and aggregates what the
// configuration declares. Unparseable files count as analyzed but contribute
// nothing; terraform validate reports the actual syntax errors.
func Generate(root string, tfPaths []string) (*models.TerraformInventory, error) {
	inv := &models.TerraformInventory{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		Resources: models.ResourceSummary{
			ByType: make(map[string]models.ResourceTypeSummary),
		},
	}

	scanRoots := []string{root}
	if len(tfPaths) > 0 {
		scanRoots = scanRoots[:0]
		for _, p := range tfPaths {
			scanRoots = append(scanRoots, filepath.Join(root, p))
		}
	}

	seenProviders := make(map[string]struct{})
	dirs := make(map[string]struct{})

	for _, scanRoot := range scanRoots {
		if _, err := os.Stat(scanRoot); err != nil {
			continue
		}
		err := filepath.WalkDir(scanRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != scanRoot {
					if _, skip := excludedDirs[name]; skip || strings.HasPrefix(name, ".") {
						return filepath.SkipDir
					}
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".tf") {
				return nil
			}

			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)
			inv.FilesAnalyzed = append(inv.FilesAnalyzed, rel)

			relDir := filepath.ToSlash(filepath.Dir(rel))
			dirs[relDir] = struct{}{}

			parsed, parseErr := hclread.ParseFile(path)
			if parseErr != nil {
				return nil
			}

			for _, p := range extractProviders(parsed) {
				if _, seen := seenProviders[p.Name]; seen {
					continue
				}
				seenProviders[p.Name] = struct{}{}
				inv.Providers = append(inv.Providers, p)
			}
			inv.Modules = append(inv.Modules, extractModules(parsed, rel)...)
			recordResources(parsed, rel, inv.Resources.ByType)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for dir := range dirs {
		inv.TerraformPaths = append(inv.TerraformPaths, dir)
	}
	sort.Strings(inv.TerraformPaths)
	sort.Strings(inv.FilesAnalyzed)

	for resourceType, summary := range inv.Resources.ByType {
		sort.Strings(summary.Files)
		inv.Resources.ByType[resourceType] = summary
		inv.Resources.TotalCount += summary.Count
	}

	return inv, nil
}

// extractProviders reads terraform.required_providers entries first, then
// top-level provider blocks for anything not already declared.
func extractProviders(parsed map[string]any) []models.Provider {
	var providers []models.Provider
	declared := make(map[string]struct{})

	tfBlocks, _ := parsed["terraform"].([]any)
	for _, entry := range tfBlocks {
		block, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for _, rp := range blockMaps(block["required_providers"]) {
			for name, cfg := range rp {
				if _, seen := declared[name]; seen {
					continue
				}
				declared[name] = struct{}{}
				p := models.Provider{Name: name}
				switch v := cfg.(type) {
				case map[string]any:
					p.Source, _ = v["source"].(string)
					p.VersionConstraint, _ = v["version"].(string)
				case string:
					p.VersionConstraint = v
				}
				providers = append(providers, p)
			}
		}
	}

	providerBlocks, _ := parsed["provider"].([]any)
	for _, entry := range providerBlocks {
		block, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for name, cfg := range block {
			if _, seen := declared[name]; seen {
				continue
			}
			declared[name] = struct{}{}
			p := models.Provider{Name: name}
			if m, ok := cfg.(map[string]any); ok {
				p.VersionConstraint, _ = m["version"].(string)
			}
			providers = append(providers, p)
		}
	}

	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })
	return providers
}

func extractModules(parsed map[string]any, sourceFile string) []models.Module {
	var modules []models.Module
	moduleBlocks, _ := parsed["module"].([]any)
	for _, entry := range moduleBlocks {
		block, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for name, cfg := range block {
			m, ok := cfg.(map[string]any)
			if !ok {
				continue
			}
			mod := models.Module{Name: name, DeclaredIn: sourceFile}
			mod.Source, _ = m["source"].(string)
			mod.Version, _ = m["version"].(string)
			modules = append(modules, mod)
		}
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules
}

// recordResources counts declared instances per resource type and records
// which files declare them.
func recordResources(parsed map[string]any, sourceFile string, byType map[string]models.ResourceTypeSummary) {
	resourceBlocks, _ := parsed["resource"].([]any)
	for _, entry := range resourceBlocks {
		block, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for resourceType, instances := range block {
			summary := byType[resourceType]
			if m, ok := instances.(map[string]any); ok {
				summary.Count += len(m)
			} else {
				summary.Count++
			}
			if !containsString(summary.Files, sourceFile) {
				summary.Files = append(summary.Files, sourceFile)
			}
			byType[resourceType] = summary
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// blockMaps normalizes a value that may be a single mapping or a list of
// mappings into a slice of mappings.
func blockMaps(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		var out []map[string]any
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
