// Package config loads the layered devserve configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/devserve-run/devserve/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.devserve/)
// 2. Global config (~/.config/devserve/ - XDG compatible)
// 3. Project config (devserve.json[c], devserve.yaml, .devserve/)
// 4. DEVSERVE_CONFIG file
// 5. DEVSERVE_CONFIG_CONTENT inline JSON
// 6. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Dotdir global config (~/.devserve/)
	home := os.Getenv("HOME")
	if home != "" {
		dotDir := filepath.Join(home, ".devserve")
		loadOnce(filepath.Join(dotDir, "devserve.json"), dotDir)
		loadOnce(filepath.Join(dotDir, "devserve.jsonc"), dotDir)
	}

	// 2. XDG-compatible global config (~/.config/devserve/)
	if xdg := globalConfigDir(); xdg != "" {
		loadOnce(filepath.Join(xdg, "devserve.json"), xdg)
		loadOnce(filepath.Join(xdg, "devserve.jsonc"), xdg)
		loadOnce(filepath.Join(xdg, "devserve.yaml"), xdg)
	}

	// 3. Project config
	if directory != "" {
		projectDir := filepath.Join(directory, ".devserve")
		loadOnce(filepath.Join(directory, "devserve.json"), directory)
		loadOnce(filepath.Join(directory, "devserve.jsonc"), directory)
		loadOnce(filepath.Join(directory, "devserve.yaml"), directory)
		loadOnce(filepath.Join(projectDir, "devserve.json"), projectDir)
		loadOnce(filepath.Join(projectDir, "devserve.jsonc"), projectDir)
	}

	// 4. DEVSERVE_CONFIG file override
	if configPath := os.Getenv("DEVSERVE_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 5. DEVSERVE_CONFIG_CONTENT inline JSON
	if content := os.Getenv("DEVSERVE_CONFIG_CONTENT"); content != "" {
		var inline types.Config
		if err := json.Unmarshal([]byte(content), &inline); err == nil {
			types.Merge(config, &inline)
		}
	}

	// 6. Environment variables (highest priority)
	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
// YAML files are detected by extension; everything else is parsed as JSONC.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	var fileConfig types.Config
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	} else {
		// Strip JSONC comments using tidwall/jsonc
		data = jsonc.ToJSON(data)
		data = interpolate(data, baseDir)
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	}

	types.Merge(config, &fileConfig)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if manager := os.Getenv("DEVSERVE_MANAGER"); manager != "" {
		config.Manager = manager
	}

	// Comma-separated port catalogue override
	if ports := os.Getenv("DEVSERVE_PORTS"); ports != "" {
		var parsed []int
		for _, p := range strings.Split(ports, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil && n > 0 {
				parsed = append(parsed, n)
			}
		}
		if len(parsed) > 0 {
			config.Ports = parsed
		}
	}

	if timeout := os.Getenv("DEVSERVE_DISCOVERY_TIMEOUT"); timeout != "" {
		if n, err := strconv.Atoi(timeout); err == nil && n > 0 {
			if config.Discovery == nil {
				config.Discovery = &types.DiscoveryConfig{}
			}
			config.Discovery.TimeoutMs = n
		}
	}
}

// globalConfigDir returns the XDG-style global config directory.
func globalConfigDir() string {
	if dir := os.Getenv("DEVSERVE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "devserve")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", "devserve")
	}
	return ""
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
