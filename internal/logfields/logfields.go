package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyInvocationID = "invocation_id"
	KeyBackend      = "backend"
	KeyMode         = "execution_mode"
	KeyParallel     = "parallel"
	KeyPath         = "path"
	KeyFile         = "file"
	KeyOutputDir    = "output_dir"
	KeySourceDir    = "source_dir"
	KeyWorker       = "worker"
	KeyDurationMS   = "duration_ms"
	KeyExitCode     = "exit_code"
	KeyCount        = "count"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func InvocationID(id string) slog.Attr { return slog.String(KeyInvocationID, id) }
func Backend(b string) slog.Attr       { return slog.String(KeyBackend, b) }
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Parallel(p bool) slog.Attr        { return slog.Bool(KeyParallel, p) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func OutputDir(d string) slog.Attr     { return slog.String(KeyOutputDir, d) }
func SourceDir(d string) slog.Attr     { return slog.String(KeySourceDir, d) }
func Worker(w string) slog.Attr        { return slog.String(KeyWorker, w) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func ExitCode(c int) slog.Attr         { return slog.Int(KeyExitCode, c) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
