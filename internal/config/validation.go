package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/util/sets"
)

var validModes = sets.New("in_process", "sandboxed_worker", "forked_process")

var validSafeModes = sets.New("unsafe", "safe", "server", "secure")

// Validate checks normalized configuration for user errors. Filesystem-level
// invariants (shared roots, underscore sources) belong to job construction,
// not here, because they depend on resolved paths.
func (c *Config) Validate() error {
	if c.Output.Directory == "" {
		return errors.ConfigRequired("output.directory")
	}

	if !validModes.Has(c.Execution.Mode) {
		return errors.ValidationFailed("execution.mode",
			fmt.Sprintf("unknown mode %q, expected one of %s", c.Execution.Mode, strings.Join(sets.SortedStrings(validModes), ", ")))
	}

	if !validSafeModes.Has(c.Engine.SafeMode) {
		return errors.ValidationFailed("engine.safe_mode",
			fmt.Sprintf("unknown safe mode %q", c.Engine.SafeMode))
	}

	seen := sets.New[string]()
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.ValidationFailed("backends", "backend name must not be empty")
		}
		if seen.Has(b.Name) {
			return errors.ValidationFailed("backends",
				fmt.Sprintf("backend %q declared more than once", b.Name))
		}
		seen.Add(b.Name)
		for _, ext := range b.Extensions {
			if ext.Require == "" && ext.Script == "" {
				return errors.ValidationFailed("backends."+b.Name+".extensions",
					"extension must declare either require or script")
			}
			if ext.Require != "" && ext.Script != "" {
				return errors.ValidationFailed("backends."+b.Name+".extensions",
					"extension cannot declare both require and script")
			}
		}
	}

	if c.Resources.CopyBackends != nil {
		for _, name := range *c.Resources.CopyBackends {
			if !seen.Has(name) {
				return errors.ValidationFailed("resources.copy_backends",
					fmt.Sprintf("unknown backend %q in allow-list", name))
			}
		}
	}

	return nil
}
