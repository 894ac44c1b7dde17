package config

import "path/filepath"

const (
	// DefaultWorkDirName is the intermediate staging directory used when
	// working_dir.enabled is set without an explicit path.
	DefaultWorkDirName = ".adocbuilder-work"

	// DefaultHistoryFile is the sqlite invocation ledger location.
	DefaultHistoryFile = ".adocbuilder-history.db"
)

// applyDefaults fills unset fields with canonical values. It runs before
// Validate so validation only ever sees normalized configuration.
func applyDefaults(c *Config) {
	if c.Sources.Directory == "" {
		c.Sources.Directory = "."
	}
	if c.Sources.BaseDir == "" {
		c.Sources.BaseDir = c.Sources.Directory
	}
	if len(c.Backends) == 0 {
		c.Backends = []BackendConfig{{Name: "html5"}}
	}
	if c.Execution.Mode == "" {
		c.Execution.Mode = "in_process"
	}
	if c.Engine.SafeMode == "" {
		c.Engine.SafeMode = "unsafe"
	}
	if c.Engine.LogLevel == "" {
		c.Engine.LogLevel = "warn"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.WorkDir.Enabled && c.WorkDir.Path == "" {
		c.WorkDir.Path = filepath.Join(c.Sources.Directory, "..", DefaultWorkDirName)
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryFile
	}
	for i := range c.Backends {
		if c.Backends[i].OutputSubdir == "" {
			c.Backends[i].OutputSubdir = c.Backends[i].Name
		}
	}
}
