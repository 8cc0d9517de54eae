package hub

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	dherrors "git.home.luguber.info/inful/dochub/internal/errors"
	"git.home.luguber.info/inful/dochub/internal/manifest"
)

var titleCaser = cases.Title(language.English)

// writeIndex generates the hub index: a markdown page cross-referencing
// every collected package, rendered to HTML, with the rendered links
// verified against the collection directory.
func (a *Assembler) writeIndex(packages []manifest.Descriptor) error {
	sorted := make([]manifest.Descriptor, len(packages))
	copy(sorted, packages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var md bytes.Buffer
	fmt.Fprintf(&md, "# %s\n\n", a.cfg.Title)
	for _, desc := range sorted {
		fmt.Fprintf(&md, "- [%s](packages/%s/)\n", displayTitle(desc), desc.Name)
	}

	mdPath := filepath.Join(a.cfg.Dir, "index.md")
	if err := os.WriteFile(mdPath, md.Bytes(), 0o644); err != nil {
		return dherrors.WorkspaceError("write hub index", err)
	}

	var html bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &html); err != nil {
		return dherrors.Wrap(err, dherrors.CategoryHub, dherrors.SeverityError, "render hub index")
	}
	htmlPath := filepath.Join(a.cfg.Dir, "index.html")
	if err := os.WriteFile(htmlPath, html.Bytes(), 0o644); err != nil {
		return dherrors.WorkspaceError("write hub index html", err)
	}

	return a.verifyIndexLinks(html.Bytes())
}

// displayTitle prefers the manifest title; a defaulted title (equal to the
// package name) is humanized for the index.
func displayTitle(desc manifest.Descriptor) string {
	if desc.Title != desc.Name {
		return desc.Title
	}
	words := strings.NewReplacer("-", " ", "_", " ").Replace(desc.Name)
	return titleCaser.String(words)
}
