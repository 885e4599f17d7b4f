// Package pm detects which package manager governs a project directory,
// decides whether dependencies need installing, and runs the install.
package pm

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Manager names a JavaScript package manager.
type Manager string

const (
	Npm  Manager = "npm"
	Yarn Manager = "yarn"
	Pnpm Manager = "pnpm"
	Bun  Manager = "bun"
)

// lockfileEntry maps a lockfile name to its manager. Order matters:
// presence is checked top to bottom.
type lockfileEntry struct {
	name    string
	manager Manager
}

var lockfileOrder = []lockfileEntry{
	{"bun.lockb", Bun},
	{"bun.lock", Bun},
	{"pnpm-lock.yaml", Pnpm},
	{"yarn.lock", Yarn},
	{"package-lock.json", Npm},
}

// Resolution is the outcome of manager detection.
type Resolution struct {
	Manager Manager
	// Lockfile is the lockfile name this manager is expected to use.
	// Empty only for the default-manager case, where no lockfile is
	// expected at all.
	Lockfile string
}

// packageManifest is the slice of package.json this package cares about.
type packageManifest struct {
	PackageManager string            `json:"packageManager"`
	Scripts        map[string]string `json:"scripts"`
}

// readManifest parses dir/package.json. A missing file is not an error;
// it returns an empty manifest.
func readManifest(dir string) (packageManifest, error) {
	var m packageManifest
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

// Resolve detects the manager for a directory. Detection order:
// explicit override, the manifest's packageManager field (prefix
// match), lockfile presence, then npm with no lockfile.
func Resolve(dir, override string) Resolution {
	if m, ok := knownManager(override); ok {
		return Resolution{Manager: m, Lockfile: expectedLockfile(dir, m)}
	}

	if manifest, err := readManifest(dir); err == nil && manifest.PackageManager != "" {
		for _, m := range []Manager{Npm, Yarn, Pnpm, Bun} {
			if strings.HasPrefix(manifest.PackageManager, string(m)) {
				return Resolution{Manager: m, Lockfile: expectedLockfile(dir, m)}
			}
		}
	}

	for _, entry := range lockfileOrder {
		if _, err := os.Stat(filepath.Join(dir, entry.name)); err == nil {
			return Resolution{Manager: entry.manager, Lockfile: entry.name}
		}
	}

	return Resolution{Manager: Npm}
}

// knownManager reports whether name is a manager this package supports.
func knownManager(name string) (Manager, bool) {
	switch Manager(strings.TrimSpace(name)) {
	case Npm, Yarn, Pnpm, Bun:
		return Manager(strings.TrimSpace(name)), true
	}
	return "", false
}

// expectedLockfile returns the lockfile name a manager is expected to
// use in dir: a present one wins, otherwise the manager's canonical
// name.
func expectedLockfile(dir string, m Manager) string {
	canonical := ""
	for _, entry := range lockfileOrder {
		if entry.manager != m {
			continue
		}
		if canonical == "" {
			canonical = entry.name
		}
		if _, err := os.Stat(filepath.Join(dir, entry.name)); err == nil {
			return entry.name
		}
	}
	return canonical
}

// installCommands returns the ordered install attempts for a manager:
// the reproducible install first, then two universal fallbacks.
func installCommands(m Manager) [][]string {
	var reproducible []string
	switch m {
	case Yarn:
		reproducible = []string{"yarn", "install", "--frozen-lockfile"}
	case Pnpm:
		reproducible = []string{"pnpm", "install", "--frozen-lockfile"}
	case Bun:
		reproducible = []string{"bun", "install", "--frozen-lockfile"}
	default:
		reproducible = []string{"npm", "ci"}
	}
	return [][]string{
		reproducible,
		{string(m), "install"},
		{"npm", "install"},
	}
}

// RunScript returns the shell command that runs a manifest script
// through the manager's run syntax.
func RunScript(m Manager, script string) string {
	switch m {
	case Yarn:
		return "yarn " + script
	case Pnpm:
		return "pnpm run " + script
	case Bun:
		return "bun run " + script
	default:
		return "npm run " + script
	}
}

// ExecTool returns the shell command that runs a locally installed tool
// through the manager's exec syntax.
func ExecTool(m Manager, tool string, args ...string) string {
	var prefix string
	switch m {
	case Yarn:
		prefix = "yarn"
	case Pnpm:
		prefix = "pnpm exec"
	case Bun:
		prefix = "bunx"
	default:
		prefix = "npx"
	}
	parts := append([]string{prefix, tool}, args...)
	return strings.Join(parts, " ")
}

// DevScript returns the manifest's dev script command, if declared.
func DevScript(dir string) (string, bool) {
	manifest, err := readManifest(dir)
	if err != nil {
		return "", false
	}
	script, ok := manifest.Scripts["dev"]
	return script, ok && script != ""
}

var (
	versionMu    sync.Mutex
	versionCache = make(map[string]string)
)

// runtimeVersion returns the version string recorded in install stamps.
// It prefers the node runtime and falls back to the manager binary.
// Results are cached for the process lifetime.
func runtimeVersion(ctx context.Context, m Manager) string {
	versionMu.Lock()
	defer versionMu.Unlock()

	key := string(m)
	if v, ok := versionCache[key]; ok {
		return v
	}

	version := binaryVersion(ctx, "node")
	if version == "" {
		version = binaryVersion(ctx, string(m))
	}
	versionCache[key] = version
	return version
}

func binaryVersion(ctx context.Context, binary string) string {
	if _, err := exec.LookPath(binary); err != nil {
		return ""
	}
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
