package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Snapshot computes a stable hash of conversion-affecting normalized configuration
// fields. It is intentionally narrower than full serialization so unrelated config
// edits (logging, history) do not register as conversion changes. Slice and map
// fields are order-insensitive. Callers SHOULD load via Load (which applies
// defaults) before computing a snapshot to ensure canonical field values.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }

	w("sources.directory", c.Sources.Directory)
	w("sources.base_dir", c.Sources.BaseDir)
	if len(c.Sources.Patterns) > 0 {
		p := append([]string{}, c.Sources.Patterns...)
		sort.Strings(p)
		w("sources.patterns", strings.Join(p, ","))
	}

	w("output.directory", c.Output.Directory)
	w("output.separate_dirs", fmt.Sprintf("%t", c.SeparateOutputDirs()))

	w("engine.safe_mode", c.Engine.SafeMode)
	w("engine.log_level", c.Engine.LogLevel)
	w("engine.command", c.Engine.Command)

	w("attributes", hashMap(c.Attributes))
	w("options", hashMap(c.Options))

	names := make([]string, 0, len(c.Backends))
	byName := make(map[string]BackendConfig, len(c.Backends))
	for _, b := range c.Backends {
		names = append(names, b.Name)
		byName[b.Name] = b
	}
	sort.Strings(names)
	for _, name := range names {
		b := byName[name]
		w("backend."+name+".attributes", hashMap(b.Attributes))
		w("backend."+name+".options", hashMap(b.Options))
		mods := append([]string{}, b.RequiredModules...)
		sort.Strings(mods)
		w("backend."+name+".required_modules", strings.Join(mods, ","))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func hashMap(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, ";")
}
