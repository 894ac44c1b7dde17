package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/adocbuilder/internal/errors"
)

// Config represents the application configuration
type Config struct {
	Sources    SourcesConfig   `yaml:"sources"`
	Backends   []BackendConfig `yaml:"backends"`
	Attributes map[string]any  `yaml:"attributes,omitempty"`
	Options    map[string]any  `yaml:"options,omitempty"`
	Execution  ExecutionConfig `yaml:"execution"`
	Output     OutputConfig    `yaml:"output"`
	Resources  ResourcesConfig `yaml:"resources"`
	WorkDir    WorkDirConfig   `yaml:"working_dir"`
	Engine     EngineConfig    `yaml:"engine"`
	Logging    LoggingConfig   `yaml:"logging"`
	History    HistoryConfig   `yaml:"history"`
}

// SourcesConfig describes where AsciiDoc sources live and which files convert.
type SourcesConfig struct {
	Directory string   `yaml:"directory"`
	BaseDir   string   `yaml:"base_dir,omitempty"`
	Patterns  []string `yaml:"patterns,omitempty"` // glob patterns relative to Directory, defaults to **/*.adoc top-level walk
}

// BackendConfig declares one output format target.
type BackendConfig struct {
	Name            string            `yaml:"name"`
	Attributes      map[string]any    `yaml:"attributes,omitempty"`
	Options         map[string]any    `yaml:"options,omitempty"`
	RequiredModules []string          `yaml:"required_modules,omitempty"`
	Extensions      []ExtensionConfig `yaml:"extensions,omitempty"`
	OutputSubdir    string            `yaml:"output_subdir,omitempty"`
}

// ExtensionConfig declares a conversion-time extension loadable from configuration.
// Callback extensions exist only at the API level and cannot appear in YAML.
type ExtensionConfig struct {
	Require string `yaml:"require,omitempty"` // runtime module name, loaded with -r
	Script  string `yaml:"script,omitempty"`  // path to an extension script file
}

// ExecutionConfig controls the isolation strategy.
type ExecutionConfig struct {
	Mode        string `yaml:"mode,omitempty"`     // in_process, sandboxed_worker, forked_process
	Parallel    bool   `yaml:"parallel,omitempty"` // dispatch one worker per backend in sandboxed_worker mode
	HostVersion string `yaml:"host_version,omitempty"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Directory    string `yaml:"directory"`
	SeparateDirs *bool  `yaml:"separate_dirs,omitempty"` // per-backend subdirectories, default true
	Clean        bool   `yaml:"clean,omitempty"`
}

// ResourcesConfig controls the post-conversion reconciliation step.
//
// CopyBackends is tri-state: absent/null means no backend receives resource
// copies, an explicit empty list means every backend does, and a non-empty
// list restricts copying to the named backends.
type ResourcesConfig struct {
	CopyBackends     *[]string `yaml:"copy_backends,omitempty"`
	Patterns         []string  `yaml:"patterns,omitempty"`          // resource globs relative to the source dir
	ArtifactPatterns []string  `yaml:"artifact_patterns,omitempty"` // intermediate artifacts emitted by conversion side effects
}

// WorkDirConfig controls optional staging of sources into an intermediate tree.
type WorkDirConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// EngineConfig configures invocation of the external conversion engine.
type EngineConfig struct {
	Command       string            `yaml:"command,omitempty"`  // override for all backends
	Commands      map[string]string `yaml:"commands,omitempty"` // per-backend binary override
	SafeMode      string            `yaml:"safe_mode,omitempty"`
	LogLevel      string            `yaml:"log_level,omitempty"`
	FatalPatterns []string          `yaml:"fatal_patterns,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// HistoryConfig controls the sqlite invocation ledger.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env if present; process environment always wins.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment variables from .env")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SeparateOutputDirs reports whether each backend gets its own output subdirectory.
func (c *Config) SeparateOutputDirs() bool {
	if c.Output.SeparateDirs == nil {
		return len(c.Backends) > 1
	}
	return *c.Output.SeparateDirs
}

// HistoryEnabled reports whether the invocation ledger should be written.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}
