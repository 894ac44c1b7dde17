package job

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/util/sets"
	"git.home.luguber.info/inful/adocbuilder/internal/version"
)

// Deferred is a value not yet computed at configuration time. Builders resolve
// every Deferred during the freeze phase; a Job never carries one.
type Deferred func() any

// AttributeProvider supplies lazily computed attributes (e.g. build timestamp).
// Provider values sit between tool defaults and user attributes in precedence.
type AttributeProvider func() map[string]any

// BuildOptions modifies batch construction.
type BuildOptions struct {
	// ForkBoundary indicates the selected execution mode will cross a process
	// boundary, so every extension reference must be serializable.
	ForkBoundary bool

	// Providers supply lazily computed attributes.
	Providers []AttributeProvider

	// ProjectDir and RootProjectDir identify the hosting project; they default
	// to the source directory when unset.
	ProjectDir     string
	RootProjectDir string

	// Extra callback extensions registered through the API, keyed by backend.
	CallbackExtensions map[string][]func() error
}

// BuildBatch assembles one frozen Job per configured backend from normalized
// configuration and the resolved source file set.
func BuildBatch(cfg *config.Config, sources []string, opts BuildOptions) (*Batch, error) {
	if cfg.Output.Directory == "" {
		return nil, errors.ConfigRequired("output.directory")
	}

	for _, src := range sources {
		if strings.HasPrefix(filepath.Base(src), "_") {
			return nil, errors.UnderscoreSource(src)
		}
	}

	if err := checkSharedRoot(cfg.Sources.Directory, cfg.Sources.BaseDir, cfg.Output.Directory); err != nil {
		return nil, err
	}

	sourceDir, err := filepath.Abs(cfg.Sources.Directory)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "cannot resolve source directory")
	}
	baseDir, err := filepath.Abs(cfg.Sources.BaseDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "cannot resolve base directory")
	}
	outputDir, err := filepath.Abs(cfg.Output.Directory)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "cannot resolve output directory")
	}

	safeMode, err := ParseSafeMode(cfg.Engine.SafeMode)
	if err != nil {
		return nil, errors.ValidationFailed("engine.safe_mode", err.Error())
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = sourceDir
	}
	rootProjectDir := opts.RootProjectDir
	if rootProjectDir == "" {
		rootProjectDir = projectDir
	}

	provided := map[string]any{}
	for _, p := range opts.Providers {
		for k, v := range p() {
			provided[k] = v
		}
	}

	batch := NewBatch()
	for _, bc := range cfg.Backends {
		j, err := buildJob(cfg, bc, sources, jobInputs{
			sourceDir:      sourceDir,
			baseDir:        baseDir,
			outputDir:      outputDir,
			projectDir:     projectDir,
			rootProjectDir: rootProjectDir,
			safeMode:       safeMode,
			provided:       provided,
			forkBoundary:   opts.ForkBoundary,
			callbacks:      opts.CallbackExtensions[bc.Name],
		})
		if err != nil {
			return nil, err
		}
		if err := batch.Add(j); err != nil {
			return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "duplicate backend")
		}
	}
	return batch, nil
}

type jobInputs struct {
	sourceDir      string
	baseDir        string
	outputDir      string
	projectDir     string
	rootProjectDir string
	safeMode       SafeMode
	provided       map[string]any
	forkBoundary   bool
	callbacks      []func() error
}

func buildJob(cfg *config.Config, bc config.BackendConfig, sources []string, in jobInputs) (*Job, error) {
	if len(sources) == 0 {
		return nil, errors.EmptySourceSet(bc.Name)
	}

	extensions := make([]ExtensionRef, 0, len(bc.Extensions)+len(in.callbacks))
	for _, ec := range bc.Extensions {
		if ec.Require != "" {
			extensions = append(extensions, ExtensionRef{Kind: ExtensionRequire, Value: ec.Require})
		} else {
			extensions = append(extensions, ExtensionRef{Kind: ExtensionScript, Value: ec.Script})
		}
	}
	for _, cb := range in.callbacks {
		if in.forkBoundary {
			return nil, errors.CallbackNotForkable(bc.Name)
		}
		extensions = append(extensions, ExtensionRef{Kind: ExtensionCallback, Callback: cb})
	}

	outputDir := in.outputDir
	if cfg.SeparateOutputDirs() {
		outputDir = filepath.Join(in.outputDir, bc.OutputSubdir)
	}

	attrs, err := mergeAttributes(cfg, bc, in)
	if err != nil {
		return nil, err
	}

	options, err := freezeMap(mergeMaps(cfg.Options, bc.Options))
	if err != nil {
		return nil, errors.ValidationFailed("options", err.Error())
	}

	modules := sets.New(bc.RequiredModules...)

	return &Job{
		Backend:         bc.Name,
		SourceDir:       in.sourceDir,
		BaseDir:         in.baseDir,
		OutputDir:       outputDir,
		ProjectDir:      in.projectDir,
		RootProjectDir:  in.rootProjectDir,
		SourceFiles:     append([]string(nil), sources...),
		Attributes:      attrs,
		Options:         options,
		SafeMode:        in.safeMode,
		LogLevel:        cfg.Engine.LogLevel,
		FatalPatterns:   append([]string(nil), cfg.Engine.FatalPatterns...),
		Extensions:      extensions,
		CopyResources:   copyResourcesFor(bc.Name, cfg.Resources.CopyBackends),
		RequiredModules: sets.SortedStrings(modules),
		EngineCommand:   engineCommandFor(cfg, bc.Name),
	}, nil
}

// mergeAttributes merges the three attribute layers in precedence order:
// tool defaults (lowest), provider-supplied values, user-declared attributes
// (highest, backend-specific over global). An applied default is stored twice,
// once under its plain key and once under the soft-set suffixed key, so a
// later same-named user attribute cannot silently shadow tool bookkeeping.
func mergeAttributes(cfg *config.Config, bc config.BackendConfig, in jobInputs) (map[string]any, error) {
	user := mergeMaps(cfg.Attributes, bc.Attributes)

	merged := map[string]any{}
	for k, v := range toolDefaults(in) {
		if _, declared := user[k]; declared {
			continue
		}
		if _, provided := in.provided[k]; provided {
			continue
		}
		merged[k] = v
		merged[k+DefaultSuffix] = v
	}
	for k, v := range in.provided {
		if _, declared := user[k]; declared {
			continue
		}
		merged[k] = v
	}
	for k, v := range user {
		merged[k] = v
	}

	frozen, err := freezeMap(merged)
	if err != nil {
		return nil, errors.ValidationFailed("attributes", err.Error())
	}
	return frozen, nil
}

func toolDefaults(in jobInputs) map[string]any {
	return map[string]any{
		"adocbuilder-version": version.Version,
		"project-dir":         in.projectDir,
		"rootproject-dir":     in.rootProjectDir,
	}
}

func mergeMaps(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// freezeMap resolves deferred values and verifies the result is a plain
// serializable scalar. Jobs may cross classloader or process boundaries, so
// live handles must never survive the freeze.
func freezeMap(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if d, ok := v.(Deferred); ok {
			v = d()
		}
		switch v.(type) {
		case nil, string, bool, int, int64, float64:
			out[k] = v
		default:
			return nil, fmt.Errorf("attribute %q has non-serializable value of type %T", k, v)
		}
	}
	return out, nil
}

// copyResourcesFor implements the tri-state resource policy: nil allow-list
// copies nothing, an empty allow-list copies for every backend, otherwise the
// backend must be listed.
func copyResourcesFor(backend string, allowList *[]string) bool {
	if allowList == nil {
		return false
	}
	if len(*allowList) == 0 {
		return true
	}
	for _, name := range *allowList {
		if name == backend {
			return true
		}
	}
	return false
}

func engineCommandFor(cfg *config.Config, backend string) string {
	if cmd, ok := cfg.Engine.Commands[backend]; ok {
		return cmd
	}
	return cfg.Engine.Command
}

// checkSharedRoot rejects source/base/output triples that live on different
// filesystem roots; a job's relative path arithmetic is undefined across
// roots. Drive-letter prefixes are recognized on every platform so the check
// stays deterministic under test. Relative paths inherit the working
// directory's root and match anything.
func checkSharedRoot(sourceDir, baseDir, outputDir string) error {
	roots := map[string]struct{}{}
	for _, p := range []string{sourceDir, baseDir, outputDir} {
		if r := fsRoot(p); r != "" {
			roots[r] = struct{}{}
		}
	}
	if len(roots) > 1 {
		return errors.RootMismatch(sourceDir, baseDir, outputDir)
	}
	return nil
}

func fsRoot(path string) string {
	if len(path) >= 2 && path[1] == ':' &&
		((path[0] >= 'a' && path[0] <= 'z') || (path[0] >= 'A' && path[0] <= 'Z')) {
		return strings.ToUpper(path[:2])
	}
	if vol := filepath.VolumeName(path); vol != "" {
		return strings.ToUpper(vol)
	}
	if strings.HasPrefix(path, "/") {
		return "/"
	}
	return ""
}
