package orchestrator

import (
	"time"

	"git.home.luguber.info/inful/adocbuilder/internal/job"
	"git.home.luguber.info/inful/adocbuilder/internal/version"
)

// builtinProviders contributes tool-level attributes that every invocation
// carries. Timestamps stay deferred so they freeze at batch build, not at
// configuration load.
func builtinProviders() []job.AttributeProvider {
	return []job.AttributeProvider{
		func() map[string]any {
			return map[string]any{
				"adocbuilder-version": version.Version,
				"build-timestamp": job.Deferred(func() any {
					return time.Now().UTC().Format(time.RFC3339)
				}),
				"build-date": job.Deferred(func() any {
					return time.Now().UTC().Format("2006-01-02")
				}),
			}
		},
	}
}
