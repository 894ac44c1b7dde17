// Package executor provides the three interchangeable isolation strategies for
// running conversion batches, plus the pure selector that maps a declared
// preference onto the mode actually used.
package executor

import (
	"fmt"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/adocbuilder/internal/version"
)

// Mode is the isolation strategy for one invocation. It is resolved fresh each
// run and never persisted.
type Mode string

const (
	ModeInProcess       Mode = "in_process"
	ModeSandboxedWorker Mode = "sandboxed_worker"
	ModeForkedProcess   Mode = "forked_process"
)

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeInProcess:
		return ModeInProcess, nil
	case ModeSandboxedWorker:
		return ModeSandboxedWorker, nil
	case ModeForkedProcess:
		return ModeForkedProcess, nil
	}
	return "", fmt.Errorf("unknown execution mode %q", s)
}

func (m Mode) String() string { return string(m) }

// CrossesProcessBoundary reports whether jobs must be serializable under m.
func (m Mode) CrossesProcessBoundary() bool { return m == ModeForkedProcess }

// Selection is the outcome of mode resolution.
type Selection struct {
	Mode Mode
	// Warning is non-empty when the declared preference was overridden.
	Warning string
}

// Select maps the declared preference and the host runtime version to the mode
// actually used. Hosts older than the classpath-isolation fix cannot safely
// share engine state inside the process, so any preference other than
// forked-process is overridden with a warning. Select is a pure function:
// same inputs, same selection, no hidden state.
func Select(preference Mode, hostVersion string) Selection {
	if preference == ModeForkedProcess {
		return Selection{Mode: ModeForkedProcess}
	}
	if hostVersion != "" && compareVersions(hostVersion, version.MinWorkerIsolationHost) < 0 {
		return Selection{
			Mode: ModeForkedProcess,
			Warning: fmt.Sprintf(
				"host version %s predates the isolation fix in %s; forcing forked_process execution",
				hostVersion, version.MinWorkerIsolationHost),
		}
	}
	return Selection{Mode: preference}
}

// compareVersions compares dotted numeric versions, returning -1, 0 or 1.
// Non-numeric segments compare as zero; missing segments compare as zero.
func compareVersions(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
