package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# adocbuilder configuration
sources:
  directory: ./docs
  # base_dir: ./docs          # root for relative include:: resolution

backends:
  - name: html5
  - name: pdf
    attributes:
      pdf-theme: default

# Attributes applied to every backend. Values may reference environment
# variables, e.g. ${PROJECT_VERSION}.
attributes:
  toc: left

output:
  directory: ./build/docs
  # separate_dirs: true       # default when more than one backend is active

execution:
  mode: in_process            # in_process, sandboxed_worker or forked_process
  parallel: false

resources:
  copy_backends: [html5]      # omit for none, [] for all backends
  patterns:
    - images/**

# working_dir:
#   enabled: true             # stage sources so conversion side effects
#   path: ./.adocbuilder-work # never touch the original tree

engine:
  safe_mode: unsafe
  log_level: warn
`

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
