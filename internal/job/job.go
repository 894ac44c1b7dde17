// Package job holds the frozen per-backend conversion configuration and the
// ordered batch consumed by exactly one execution backend. Jobs are built once
// per invocation, are immutable after construction, and contain only plain
// serializable values so they can cross a process boundary unchanged.
package job

import (
	"encoding/json"
	"fmt"
)

// DefaultSuffix marks attribute keys whose values came from tool defaults
// rather than user configuration. The conversion engine treats a suffixed key
// as soft-set: a user attribute with the plain name always wins.
const DefaultSuffix = "@"

// SafeMode is the engine safety level ordinal.
type SafeMode int

const (
	SafeModeUnsafe SafeMode = 0
	SafeModeSafe   SafeMode = 1
	SafeModeServer SafeMode = 10
	SafeModeSecure SafeMode = 20
)

var safeModeNames = map[SafeMode]string{
	SafeModeUnsafe: "unsafe",
	SafeModeSafe:   "safe",
	SafeModeServer: "server",
	SafeModeSecure: "secure",
}

func (m SafeMode) String() string {
	if n, ok := safeModeNames[m]; ok {
		return n
	}
	return "unsafe"
}

// ParseSafeMode maps a configuration string to its ordinal.
func ParseSafeMode(s string) (SafeMode, error) {
	for mode, name := range safeModeNames {
		if name == s {
			return mode, nil
		}
	}
	return SafeModeUnsafe, fmt.Errorf("unknown safe mode %q", s)
}

// ExtensionKind discriminates the ExtensionRef tagged union.
type ExtensionKind string

const (
	// ExtensionRequire names a runtime module loaded by the engine.
	ExtensionRequire ExtensionKind = "require"
	// ExtensionScript points at an extension script file on disk.
	ExtensionScript ExtensionKind = "script"
	// ExtensionCallback is a live in-process hook. It cannot be serialized
	// and is rejected at job construction when a fork boundary is selected.
	ExtensionCallback ExtensionKind = "callback"
)

// ExtensionRef is a serializable handle to a conversion-time extension.
// Callback holds the live hook for in-process execution only.
type ExtensionRef struct {
	Kind     ExtensionKind `json:"kind"`
	Value    string        `json:"value,omitempty"`
	Callback func() error  `json:"-"`
}

// Serializable reports whether the reference survives a process boundary.
func (r ExtensionRef) Serializable() bool {
	return r.Kind != ExtensionCallback
}

// Job is the immutable configuration snapshot for one backend's conversion.
type Job struct {
	Backend         string         `json:"backend"`
	SourceDir       string         `json:"source_dir"`
	BaseDir         string         `json:"base_dir"`
	OutputDir       string         `json:"output_dir"`
	ProjectDir      string         `json:"project_dir"`
	RootProjectDir  string         `json:"root_project_dir"`
	SourceFiles     []string       `json:"source_files"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	Options         map[string]any `json:"options,omitempty"`
	SafeMode        SafeMode       `json:"safe_mode"`
	LogLevel        string         `json:"log_level,omitempty"`
	FatalPatterns   []string       `json:"fatal_patterns,omitempty"`
	Extensions      []ExtensionRef `json:"extensions,omitempty"`
	CopyResources   bool           `json:"copy_resources"`
	RequiredModules []string       `json:"required_modules,omitempty"`
	EngineCommand   string         `json:"engine_command,omitempty"`
}

// Batch is an ordered backend-name → Job mapping, built once per invocation
// and never mutated after construction.
type Batch struct {
	order []string
	jobs  map[string]*Job
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{jobs: make(map[string]*Job)}
}

// Add appends a job, failing on a duplicate backend identifier.
func (b *Batch) Add(j *Job) error {
	if _, exists := b.jobs[j.Backend]; exists {
		return fmt.Errorf("backend %q already present in batch", j.Backend)
	}
	b.order = append(b.order, j.Backend)
	b.jobs[j.Backend] = j
	return nil
}

// Get returns the job for a backend, or nil.
func (b *Batch) Get(backend string) *Job {
	return b.jobs[backend]
}

// Len returns the number of jobs.
func (b *Batch) Len() int { return len(b.order) }

// Backends returns backend names in declaration order.
func (b *Batch) Backends() []string {
	return append([]string(nil), b.order...)
}

// Jobs returns the jobs in declaration order.
func (b *Batch) Jobs() []*Job {
	out := make([]*Job, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.jobs[name])
	}
	return out
}

// Serializable reports whether every job in the batch can cross a process
// boundary (no live callback extensions).
func (b *Batch) Serializable() bool {
	for _, j := range b.Jobs() {
		for _, ext := range j.Extensions {
			if !ext.Serializable() {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the batch as a job array, preserving declaration order.
func (b *Batch) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Jobs())
}

// UnmarshalJSON decodes a job array back into an ordered batch.
func (b *Batch) UnmarshalJSON(data []byte) error {
	var jobs []*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return err
	}
	b.order = nil
	b.jobs = make(map[string]*Job, len(jobs))
	for _, j := range jobs {
		if err := b.Add(j); err != nil {
			return err
		}
	}
	return nil
}
