package reconcile

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/adocbuilder/internal/logfields"
)

// verifyHTMLOutputs parses every .html file under dir and fails on documents
// the tokenizer cannot make sense of. The engine occasionally half-writes a
// file when a diagram extension dies mid-render; catching that here beats
// shipping a broken page.
func verifyHTMLOutputs(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		doc, err := html.Parse(f)
		if err != nil {
			return fmt.Errorf("output %s is not parseable HTML: %w", p, err)
		}
		if title := documentTitle(doc); title != "" {
			slog.Debug("Verified HTML output", logfields.File(d.Name()), slog.String("title", title))
		}
		return nil
	})
}

func documentTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := documentTitle(c); t != "" {
			return t
		}
	}
	return ""
}
