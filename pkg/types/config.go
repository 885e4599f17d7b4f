// Package types defines the shared configuration and result types for devserve.
package types

// Config represents the devserve configuration.
// All duration fields are expressed in milliseconds so the JSON/YAML
// representation stays flat and editor-friendly.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" yaml:"-"`

	// Manager forces a package manager (npm|yarn|pnpm|bun) instead of
	// detecting one from the project directory.
	Manager string `json:"manager,omitempty" yaml:"manager,omitempty"`

	// Ports replaces the built-in dev-server port catalogue when set.
	Ports []int `json:"ports,omitempty" yaml:"ports,omitempty"`

	// ReadyPatterns are additional regular expressions tested against
	// child output before the built-in table. Each must capture the URL
	// in its first submatch.
	ReadyPatterns []string `json:"readyPatterns,omitempty" yaml:"readyPatterns,omitempty"`

	Discovery *DiscoveryConfig `json:"discovery,omitempty" yaml:"discovery,omitempty"`
	Reach     *ReachConfig     `json:"reach,omitempty" yaml:"reach,omitempty"`
	Install   *InstallConfig   `json:"install,omitempty" yaml:"install,omitempty"`
	Daemon    *DaemonConfig    `json:"daemon,omitempty" yaml:"daemon,omitempty"`
}

// DiscoveryConfig tunes the URL discovery race.
type DiscoveryConfig struct {
	// TimeoutMs bounds the whole race (log match, port scan, deadline).
	TimeoutMs int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// ScanWindowMs bounds repeated port-scanning passes.
	ScanWindowMs int `json:"scanWindow,omitempty" yaml:"scanWindow,omitempty"`
	// ProbeTimeoutMs bounds a single HEAD/GET probe.
	ProbeTimeoutMs int `json:"probeTimeout,omitempty" yaml:"probeTimeout,omitempty"`
}

// ReachConfig tunes the reachability confirmation step.
type ReachConfig struct {
	// TimeoutMs bounds the whole reachability wait.
	TimeoutMs int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// RequestTimeoutMs bounds a single HEAD/GET request.
	RequestTimeoutMs int `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"`
}

// InstallConfig tunes dependency installation.
type InstallConfig struct {
	// TimeoutMs bounds a single install command.
	TimeoutMs int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Skip disables dependency installation entirely.
	Skip bool `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// DaemonConfig holds the HTTP daemon settings.
type DaemonConfig struct {
	Port       int  `json:"port,omitempty" yaml:"port,omitempty"`
	EnableCORS bool `json:"cors,omitempty" yaml:"cors,omitempty"`
}

// Merge overlays non-zero fields from source onto target.
func Merge(target, source *Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Manager != "" {
		target.Manager = source.Manager
	}
	if len(source.Ports) > 0 {
		target.Ports = append([]int(nil), source.Ports...)
	}
	if len(source.ReadyPatterns) > 0 {
		target.ReadyPatterns = append(target.ReadyPatterns, source.ReadyPatterns...)
	}
	if source.Discovery != nil {
		if target.Discovery == nil {
			target.Discovery = &DiscoveryConfig{}
		}
		if source.Discovery.TimeoutMs > 0 {
			target.Discovery.TimeoutMs = source.Discovery.TimeoutMs
		}
		if source.Discovery.ScanWindowMs > 0 {
			target.Discovery.ScanWindowMs = source.Discovery.ScanWindowMs
		}
		if source.Discovery.ProbeTimeoutMs > 0 {
			target.Discovery.ProbeTimeoutMs = source.Discovery.ProbeTimeoutMs
		}
	}
	if source.Reach != nil {
		if target.Reach == nil {
			target.Reach = &ReachConfig{}
		}
		if source.Reach.TimeoutMs > 0 {
			target.Reach.TimeoutMs = source.Reach.TimeoutMs
		}
		if source.Reach.RequestTimeoutMs > 0 {
			target.Reach.RequestTimeoutMs = source.Reach.RequestTimeoutMs
		}
	}
	if source.Install != nil {
		if target.Install == nil {
			target.Install = &InstallConfig{}
		}
		if source.Install.TimeoutMs > 0 {
			target.Install.TimeoutMs = source.Install.TimeoutMs
		}
		if source.Install.Skip {
			target.Install.Skip = true
		}
	}
	if source.Daemon != nil {
		if target.Daemon == nil {
			target.Daemon = &DaemonConfig{}
		}
		if source.Daemon.Port > 0 {
			target.Daemon.Port = source.Daemon.Port
		}
		if source.Daemon.EnableCORS {
			target.Daemon.EnableCORS = true
		}
	}
}
