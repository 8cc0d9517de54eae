package hub

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	dherrors "git.home.luguber.info/inful/dochub/internal/errors"
)

// verifyIndexLinks parses the rendered index and checks that every
// package-relative link resolves to a collected artifact directory. Links
// pointing elsewhere (absolute URLs, anchors) are out of scope here; the
// index only ever emits package links, so a dangling one means the copy and
// the index disagree.
func (a *Assembler) verifyIndexLinks(rendered []byte) error {
	doc, err := html.Parse(bytes.NewReader(rendered))
	if err != nil {
		return dherrors.Wrap(err, dherrors.CategoryHub, dherrors.SeverityError, "parse rendered hub index")
	}

	var dangling []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if rel, ok := strings.CutPrefix(attr.Val, "packages/"); ok {
					dir := filepath.Join(a.cfg.Dir, "packages", strings.TrimSuffix(rel, "/"))
					if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
						dangling = append(dangling, attr.Val)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(dangling) > 0 {
		return dherrors.New(dherrors.CategoryHub, dherrors.SeverityError, "hub index has dangling package links").
			WithContext("links", dangling)
	}
	return nil
}
