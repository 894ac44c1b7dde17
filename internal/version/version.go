package version

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/adocbuilder/internal/version.Version=v1.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// MinWorkerIsolationHost is the lowest host runtime version whose classpath
// isolation is trustworthy for in-process and sandboxed-worker execution.
// Older hosts are forced onto forked-process execution.
const MinWorkerIsolationHost = "1.12.0"
