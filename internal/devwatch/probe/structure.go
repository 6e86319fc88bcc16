package probe

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/dimasma0305/devwatch/internal/devwatch/cache"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// Monorepo tools
const (
	ToolTurbo         = "turbo"
	ToolPnpm          = "pnpm"
	ToolNpmWorkspaces = "npm-workspaces"
)

// frameworkRule detects a framework by config file prefix or dependency name
type frameworkRule struct {
	Name         string
	ConfigPrefix string
	ConfigDir    string
	Dependency   string
}

var frameworkRules = []frameworkRule{
	{Name: "astro", ConfigPrefix: "astro.config.", Dependency: "astro"},
	{Name: "next", ConfigPrefix: "next.config.", Dependency: "next"},
	{Name: "vite", ConfigPrefix: "vite.config.", Dependency: "vite"},
	{Name: "convex", ConfigDir: "convex", Dependency: "convex"},
	{Name: "react", Dependency: "react"},
	{Name: "vue", Dependency: "vue"},
	{Name: "svelte", ConfigPrefix: "svelte.config.", Dependency: "svelte"},
	{Name: "tailwind", ConfigPrefix: "tailwind.config.", Dependency: "tailwindcss"},
}

// packageJSON is the subset of package.json the probes read
type packageJSON struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Workspaces      json.RawMessage   `json:"workspaces"`
}

// workspacePatterns accepts both the array and the {packages: [...]} forms
func (p packageJSON) workspacePatterns() []string {
	if len(p.Workspaces) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(p.Workspaces, &list); err == nil {
		return list
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(p.Workspaces, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

type pnpmWorkspace struct {
	Packages []string `yaml:"packages"`
}

// StructureProbe detects monorepo layout and frameworks
type StructureProbe struct {
	Root string
	// Cache holds the result under cache.KeyStructure when set
	Cache *cache.Cache
}

// NewStructureProbe creates a structure probe for the project at root
func NewStructureProbe(root string, c *cache.Cache) *StructureProbe {
	return &StructureProbe{Root: root, Cache: c}
}

// Probe returns the cached structure or inspects the file tree
func (s *StructureProbe) Probe(_ context.Context) types.Structure {
	if s.Cache != nil {
		if cached, ok := cache.GetAs[types.Structure](s.Cache, cache.KeyStructure); ok {
			return cached
		}
	}
	st := DetectStructure(s.Root)
	if s.Cache != nil {
		s.Cache.SetWithTTL(cache.KeyStructure, st, cache.StructureTTL)
	}
	return st
}

// DetectStructure inspects the project at root
func DetectStructure(root string) types.Structure {
	st := types.Structure{}
	rootPkg, _ := readPackageJSON(root)

	var patterns []string
	if ws, err := readPnpmWorkspace(root); err == nil {
		st.Monorepo = true
		st.Tool = ToolPnpm
		patterns = ws.Packages
	}
	if rootPkg != nil {
		if p := rootPkg.workspacePatterns(); len(p) > 0 {
			st.Monorepo = true
			if st.Tool == "" {
				st.Tool = ToolNpmWorkspaces
			}
			if len(patterns) == 0 {
				patterns = p
			}
		}
	}
	if fileExists(filepath.Join(root, "turbo.json")) {
		st.Monorepo = true
		st.Tool = ToolTurbo
	}

	st.Frameworks = detectFrameworks(root, rootPkg)
	if st.Monorepo {
		st.Workspaces = enumerateWorkspaces(root, patterns)
	}
	return st
}

// ManifestFiles lists the files whose changes alter the detected structure
func ManifestFiles(root string, st types.Structure) []string {
	files := []string{
		filepath.Join(root, "package.json"),
		filepath.Join(root, "turbo.json"),
		filepath.Join(root, "pnpm-workspace.yaml"),
	}
	for _, ws := range st.Workspaces {
		files = append(files, filepath.Join(root, ws.Path, "package.json"))
	}
	return files
}

func enumerateWorkspaces(root string, patterns []string) []types.Workspace {
	seen := make(map[string]bool)
	var out []types.Workspace

	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, "!") {
			continue
		}
		// Only one directory level is enumerated for recursive globs
		pattern = strings.ReplaceAll(pattern, "**", "*")
		matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
		if err != nil {
			log.DebugH3("bad workspace pattern %q: %v", pattern, err)
			continue
		}
		for _, dir := range matches {
			if seen[dir] {
				continue
			}
			pkg, err := readPackageJSON(dir)
			if err != nil {
				continue
			}
			seen[dir] = true

			rel, _ := filepath.Rel(root, dir)
			name := pkg.Name
			if name == "" {
				name = filepath.Base(dir)
			}
			out = append(out, types.Workspace{
				Name:       name,
				Path:       filepath.ToSlash(rel),
				Frameworks: detectFrameworks(dir, pkg),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func detectFrameworks(dir string, pkg *packageJSON) []string {
	entries, _ := os.ReadDir(dir)
	var found []string
	for _, rule := range frameworkRules {
		if matchesFramework(rule, entries, pkg) {
			found = append(found, rule.Name)
		}
	}
	return found
}

func matchesFramework(rule frameworkRule, entries []os.DirEntry, pkg *packageJSON) bool {
	for _, e := range entries {
		if rule.ConfigPrefix != "" && !e.IsDir() && strings.HasPrefix(e.Name(), rule.ConfigPrefix) {
			return true
		}
		if rule.ConfigDir != "" && e.IsDir() && e.Name() == rule.ConfigDir {
			return true
		}
	}
	if pkg == nil || rule.Dependency == "" {
		return false
	}
	if _, ok := pkg.Dependencies[rule.Dependency]; ok {
		return true
	}
	_, ok := pkg.DevDependencies[rule.Dependency]
	return ok
}

func readPackageJSON(dir string) (*packageJSON, error) {
	//nolint:gosec // G304: manifest path inside the watched project
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func readPnpmWorkspace(root string) (*pnpmWorkspace, error) {
	//nolint:gosec // G304: manifest path inside the watched project
	data, err := os.ReadFile(filepath.Join(root, "pnpm-workspace.yaml"))
	if err != nil {
		return nil, err
	}
	var ws pnpmWorkspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
