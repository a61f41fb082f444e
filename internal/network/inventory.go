package network

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/complykit/ksi-evidence/internal/hclread"
	"github.com/complykit/ksi-evidence/internal/models"
)

// SchemaVersion identifies the inventory document layout.
const SchemaVersion = "1.0"

// excludedDirs are directory names the scanner never descends into. Any
// directory whose name starts with a dot is skipped as well.
var excludedDirs = map[string]struct{}{
	".terraform":   {},
	".git":         {},
	"node_modules": {},
	"__pycache__":  {},
	".venv":        {},
	"venv":         {},
}

// fileExtraction holds everything extracted from one Terraform file. Files
// are processed independently and merged afterwards, so a parse failure in
// one file never poisons the rest.
type fileExtraction struct {
	sourceFile       string
	securityGroups   []models.SecurityGroup
	vpcs             []models.VPC
	subnets          []models.Subnet
	routeTables      []models.RouteTable
	internetGateways []models.InternetGateway
	natGateways      []models.NATGateway
	loadBalancers    []models.LoadBalancer
}

// findTerraformFiles walks root and returns every .tf file, in sorted order,
// skipping vendored and hidden directories.
func findTerraformFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root {
				if _, skip := excludedDirs[name]; skip || strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tf") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// BuildInventory scans root for Terraform files and returns the aggregate
// declared-state snapshot. When paths is non-empty only files whose
// root-relative path matches an entry (file or directory prefix) are
// considered. Unparseable files are logged and skipped, never fatal.
func BuildInventory(root string, paths []string, log *logrus.Logger) (*models.NetworkInventory, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	files, err := findTerraformFiles(root)
	if err != nil {
		return nil, err
	}
	files = filterPaths(root, files, paths)

	log.WithFields(logrus.Fields{
		"root":  root,
		"files": len(files),
	}).Debug("scanning terraform files")

	extractions := extractAll(root, files, log)

	inv := &models.NetworkInventory{
		SchemaVersion: SchemaVersion,
		ExtractedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, ex := range extractions {
		inv.SourceFiles = append(inv.SourceFiles, ex.sourceFile)
		inv.SecurityGroups = append(inv.SecurityGroups, ex.securityGroups...)
		inv.VPCs = append(inv.VPCs, ex.vpcs...)
		inv.Subnets = append(inv.Subnets, ex.subnets...)
		inv.RouteTables = append(inv.RouteTables, ex.routeTables...)
		inv.InternetGateways = append(inv.InternetGateways, ex.internetGateways...)
		inv.NATGateways = append(inv.NATGateways, ex.natGateways...)
		inv.LoadBalancers = append(inv.LoadBalancers, ex.loadBalancers...)
	}
	sortInventory(inv)

	log.WithFields(logrus.Fields{
		"security_groups": len(inv.SecurityGroups),
		"vpcs":            len(inv.VPCs),
		"subnets":         len(inv.Subnets),
	}).Info("network inventory built")

	return inv, nil
}

// filterPaths keeps only files under one of the requested root-relative
// paths. An empty paths list keeps everything.
func filterPaths(root string, files, paths []string) []string {
	if len(paths) == 0 {
		return files
	}
	var kept []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		for _, p := range paths {
			p = strings.TrimSuffix(filepath.ToSlash(p), "/")
			if rel == p || strings.HasPrefix(rel, p+"/") {
				kept = append(kept, f)
				break
			}
		}
	}
	return kept
}

// extractAll parses and extracts files concurrently, bounded by CPU count.
// Results keep the input (sorted) file order so the merge is deterministic.
func extractAll(root string, files []string, log *logrus.Logger) []fileExtraction {
	results := make([]fileExtraction, len(files))
	ok := make([]bool, len(files))

	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ex, err := extractFile(root, path)
			if err != nil {
				log.WithError(err).WithField("file", path).Warn("skipping unparseable terraform file")
				return
			}
			results[i] = ex
			ok[i] = true
		}(i, path)
	}
	wg.Wait()

	var out []fileExtraction
	for i := range results {
		if ok[i] {
			out = append(out, results[i])
		}
	}
	return out
}

// extractFile parses path and runs every extractor over it. Resources are
// labelled with the root-relative path so inventories stay identical across
// checkout locations.
func extractFile(root, path string) (fileExtraction, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return fileExtraction{}, err
	}
	parsed, err := hclread.Parse(src, path)
	if err != nil {
		return fileExtraction{}, err
	}
	sourceFile := path
	if rel, err := filepath.Rel(root, path); err == nil {
		sourceFile = rel
	}
	sourceFile = filepath.ToSlash(sourceFile)
	return fileExtraction{
		sourceFile:       sourceFile,
		securityGroups:   ExtractSecurityGroups(parsed, sourceFile),
		vpcs:             ExtractVPCs(parsed, sourceFile),
		subnets:          ExtractSubnets(parsed, sourceFile),
		routeTables:      ExtractRouteTables(parsed, sourceFile),
		internetGateways: ExtractInternetGateways(parsed, sourceFile),
		natGateways:      ExtractNATGateways(parsed, sourceFile),
		loadBalancers:    ExtractLoadBalancers(parsed, sourceFile),
	}, nil
}

func sortInventory(inv *models.NetworkInventory) {
	sort.Strings(inv.SourceFiles)
	sort.Slice(inv.SecurityGroups, func(i, j int) bool {
		return byAddressThenFile(inv.SecurityGroups[i].ResourceAddress, inv.SecurityGroups[i].SourceFile,
			inv.SecurityGroups[j].ResourceAddress, inv.SecurityGroups[j].SourceFile)
	})
	sort.Slice(inv.VPCs, func(i, j int) bool {
		return byAddressThenFile(inv.VPCs[i].ResourceAddress, inv.VPCs[i].SourceFile,
			inv.VPCs[j].ResourceAddress, inv.VPCs[j].SourceFile)
	})
	sort.Slice(inv.Subnets, func(i, j int) bool {
		return byAddressThenFile(inv.Subnets[i].ResourceAddress, inv.Subnets[i].SourceFile,
			inv.Subnets[j].ResourceAddress, inv.Subnets[j].SourceFile)
	})
	sort.Slice(inv.RouteTables, func(i, j int) bool {
		return byAddressThenFile(inv.RouteTables[i].ResourceAddress, inv.RouteTables[i].SourceFile,
			inv.RouteTables[j].ResourceAddress, inv.RouteTables[j].SourceFile)
	})
	sort.Slice(inv.InternetGateways, func(i, j int) bool {
		return byAddressThenFile(inv.InternetGateways[i].ResourceAddress, inv.InternetGateways[i].SourceFile,
			inv.InternetGateways[j].ResourceAddress, inv.InternetGateways[j].SourceFile)
	})
	sort.Slice(inv.NATGateways, func(i, j int) bool {
		return byAddressThenFile(inv.NATGateways[i].ResourceAddress, inv.NATGateways[i].SourceFile,
			inv.NATGateways[j].ResourceAddress, inv.NATGateways[j].SourceFile)
	})
	sort.Slice(inv.LoadBalancers, func(i, j int) bool {
		return byAddressThenFile(inv.LoadBalancers[i].ResourceAddress, inv.LoadBalancers[i].SourceFile,
			inv.LoadBalancers[j].ResourceAddress, inv.LoadBalancers[j].SourceFile)
	})
}

// byAddressThenFile orders by resource address first, then source file, so
// name collisions across files still sort deterministically.
func byAddressThenFile(addrA, fileA, addrB, fileB string) bool {
	if addrA != addrB {
		return addrA < addrB
	}
	return fileA < fileB
}
