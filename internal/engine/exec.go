package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/util/sets"
)

// defaultCommands maps backends to their canonical converter binaries.
// Backends without an entry run through the base asciidoctor binary with -b.
var defaultCommands = map[string]string{
	"pdf":   "asciidoctor-pdf",
	"epub3": "asciidoctor-epub3",
}

// outputExtensions maps backends to the file extension the engine emits.
var outputExtensions = map[string]string{
	"html5":   ".html",
	"pdf":     ".pdf",
	"epub3":   ".epub",
	"docbook": ".xml",
}

// ExecEngine runs the external asciidoctor binary per job.
//
// The instance accumulates required runtime modules across Convert calls:
// a module loaded for one job stays loaded for every later job on the same
// instance. Sharing an ExecEngine across a batch therefore leaks extension
// state between jobs, which is the documented in-process trade-off.
type ExecEngine struct {
	mu            sync.Mutex
	loadedModules sets.Set[string]
}

// NewExec returns a fresh engine with no loaded modules.
func NewExec() *ExecEngine {
	return &ExecEngine{loadedModules: sets.New[string]()}
}

// Convert invokes the converter binary for j and scans its diagnostics
// against the job's fatal-message patterns.
func (e *ExecEngine) Convert(ctx context.Context, j *job.Job) (*Result, error) {
	start := time.Now()

	fatal, err := compilePatterns(j.FatalPatterns)
	if err != nil {
		return nil, errors.ValidationFailed("engine.fatal_patterns", err.Error())
	}

	// Live callback extensions run before the engine; they exist only for
	// in-process execution.
	for _, ext := range j.Extensions {
		if ext.Kind == job.ExtensionCallback && ext.Callback != nil {
			if err := ext.Callback(); err != nil {
				return nil, errors.ConversionFailed(j.Backend, fmt.Errorf("callback extension: %w", err))
			}
		}
	}

	command, args := e.commandLine(j)
	slog.Debug("Invoking conversion engine",
		logfields.Backend(j.Backend),
		slog.String("command", command),
		logfields.Count(len(j.SourceFiles)))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = j.BaseDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	diagnostics := stderr.String()

	if line, matched := firstFatalLine(diagnostics, fatal); matched {
		return nil, errors.ConversionFailed(j.Backend,
			fmt.Errorf("engine reported fatal message: %s", line))
	}
	if runErr != nil {
		detail := lastNonEmptyLine(diagnostics)
		if detail != "" {
			runErr = fmt.Errorf("%w: %s", runErr, detail)
		}
		return nil, errors.ConversionFailed(j.Backend, runErr)
	}

	return &Result{
		Backend:     j.Backend,
		OutputFiles: expectedOutputs(j),
		Duration:    time.Since(start),
	}, nil
}

// commandLine assembles the converter invocation. Module loading is merged
// with the instance's already-loaded set so repeat requires are stable and
// shared instances expose accumulated state.
func (e *ExecEngine) commandLine(j *job.Job) (string, []string) {
	command := j.EngineCommand
	if command == "" {
		if c, ok := defaultCommands[j.Backend]; ok {
			command = c
		} else {
			command = "asciidoctor"
		}
	}

	e.mu.Lock()
	for _, m := range j.RequiredModules {
		e.loadedModules.Add(m)
	}
	for _, ext := range j.Extensions {
		if ext.Kind == job.ExtensionRequire {
			e.loadedModules.Add(ext.Value)
		}
	}
	modules := sets.SortedStrings(e.loadedModules)
	e.mu.Unlock()

	args := []string{
		"-b", j.Backend,
		"-S", j.SafeMode.String(),
		"-D", j.OutputDir,
		"--base-dir", j.BaseDir,
	}
	for _, m := range modules {
		args = append(args, "-r", m)
	}
	for _, ext := range j.Extensions {
		if ext.Kind == job.ExtensionScript {
			args = append(args, "-r", ext.Value)
		}
	}
	for _, k := range sortedKeys(j.Attributes) {
		if strings.HasSuffix(k, job.DefaultSuffix) {
			// Applied tool defaults pass as soft-set attributes (value@ form)
			// so document-level declarations can still override them.
			name := strings.TrimSuffix(k, job.DefaultSuffix)
			args = append(args, "-a", fmt.Sprintf("%s=%v%s", name, j.Attributes[k], job.DefaultSuffix))
			continue
		}
		if _, soft := j.Attributes[k+job.DefaultSuffix]; soft {
			// Plain twin of a soft-set key is tool bookkeeping, not engine input.
			continue
		}
		args = append(args, "-a", formatAttribute(k, j.Attributes[k]))
	}
	switch j.LogLevel {
	case "debug":
		args = append(args, "--verbose")
	case "error":
		args = append(args, "--quiet")
	}
	args = append(args, j.SourceFiles...)
	return command, args
}

func formatAttribute(key string, value any) string {
	switch v := value.(type) {
	case nil:
		return key + "!"
	case bool:
		if v {
			return key
		}
		return key + "!"
	default:
		return fmt.Sprintf("%s=%v", key, v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func firstFatalLine(diagnostics string, patterns []*regexp.Regexp) (string, bool) {
	if len(patterns) == 0 {
		return "", false
	}
	for _, line := range strings.Split(diagnostics, "\n") {
		for _, re := range patterns {
			if re.MatchString(line) {
				return strings.TrimSpace(line), true
			}
		}
	}
	return "", false
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// expectedOutputs derives the artifact paths the engine writes for j.
func expectedOutputs(j *job.Job) []string {
	ext, ok := outputExtensions[j.Backend]
	if !ok {
		ext = ".html"
	}
	out := make([]string, 0, len(j.SourceFiles))
	for _, src := range j.SourceFiles {
		stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		out = append(out, filepath.Join(j.OutputDir, stem+ext))
	}
	return out
}
