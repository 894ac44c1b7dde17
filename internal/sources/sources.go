// Package sources resolves the explicit set of convertible AsciiDoc documents
// for an invocation. The resolved set is deduplicated, absolute and sorted;
// downstream job construction treats it as final.
package sources

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/errors"
	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
	"git.home.luguber.info/inful/adocbuilder/internal/util/globs"
	"git.home.luguber.info/inful/adocbuilder/internal/util/sets"
)

var adocExtensions = sets.New(".adoc", ".asciidoc", ".asc")

// Resolve walks the configured source directory and returns the convertible
// document set as absolute paths in lexical order.
//
// Without patterns, every AsciiDoc file is included except hidden entries and
// underscore-prefixed partials. With patterns, a file is included when its
// slash-relative path matches any pattern; a pattern that explicitly matches
// an underscore-prefixed file keeps it in the set, and job construction then
// rejects the set as a configuration error.
func Resolve(cfg config.SourcesConfig) ([]string, error) {
	root, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "cannot resolve source directory")
	}

	found := sets.New[string]()
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !adocExtensions.Has(strings.ToLower(filepath.Ext(d.Name()))) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if len(cfg.Patterns) > 0 {
			if globs.MatchAny(cfg.Patterns, filepath.ToSlash(rel)) {
				found.Add(path)
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), "_") {
			// Partial by convention, included via include:: only.
			return nil
		}
		found.Add(path)
		return nil
	})
	if walkErr != nil {
		return nil, errors.Wrap(walkErr, errors.CategoryFileSystem, errors.SeverityFatal, "source discovery failed")
	}

	resolved := sets.SortedStrings(found)
	slog.Debug("Resolved source documents",
		logfields.SourceDir(root),
		logfields.Count(len(resolved)))
	return resolved, nil
}
