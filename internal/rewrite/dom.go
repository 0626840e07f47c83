package rewrite

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	derrors "git.home.luguber.info/inful/discourse-import/internal/errors"
)

// domImage is one image the rendered post actually displays.
type domImage struct {
	src  string
	sha1 string
}

// images parses cooked as a body fragment and returns the distinct image
// sources in document order, skipping link previews, avatars and emoji.
func images(cooked string) ([]domImage, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(cooked), body)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryParse, derrors.SeverityError, "parse cooked HTML")
	}
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	var out []domImage
	seen := make(map[string]bool)
	goquery.NewDocumentFromNode(root).Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if s.Closest(".onebox").Length() > 0 || s.HasClass("avatar") || s.HasClass("emoji") {
			return
		}
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		out = append(out, domImage{src: src, sha1: s.AttrOr("data-base62-sha1", "")})
	})
	return out, nil
}

// dom localizes the images found in the cooked HTML and substitutes them in
// the raw text.
func (p *postRun) dom(post Post) (string, error) {
	imgs, err := images(post.Cooked)
	if err != nil {
		return "", err
	}

	text := post.Raw
	for _, img := range imgs {
		local, ok := p.localize(img.src)
		if p.err != nil {
			return "", p.err
		}
		if !ok {
			continue
		}
		for _, lit := range p.r.literals(img) {
			if text, err = p.substitute(text, img.src, lit, local); err != nil {
				return "", err
			}
		}
	}
	return text, nil
}

// literals lists the spellings under which an image may appear in raw
// markup: the src itself, its absolute and site-relative forms when it is
// hosted on the instance, and the upload:// short URL.
func (r *Rewriter) literals(img domImage) []string {
	out := []string{img.src}
	add := func(s string) {
		if s == "" {
			return
		}
		for _, have := range out {
			if have == s {
				return
			}
		}
		out = append(out, s)
	}

	u, err := url.Parse(img.src)
	if err == nil && r.base != nil {
		abs := r.base.ResolveReference(u)
		if abs.Host == r.base.Host {
			add(abs.String())
			add(abs.RequestURI())
		}
	}
	if img.sha1 != "" {
		ext := ""
		if u != nil {
			ext = path.Ext(u.Path)
		}
		add("upload://" + img.sha1 + ext)
	}
	return out
}

// substitute replaces lit by local in every form, then as a bare URL.
func (p *postRun) substitute(text, src, lit, local string) (string, error) {
	q := regexp.QuoteMeta(lit)
	forms := []struct {
		form  Form
		re    *regexp.Regexp
		group int
		repl  func(m []string) string
	}{
		{FormHTML, regexp.MustCompile(`(?i)<img\b[^>]*?\ssrc=["'](` + q + `)["']`), 1, nil},
		{FormBBCode, regexp.MustCompile(`(?is)\[img\]\s*(` + q + `)\s*\[/img\]`), 1, nil},
		{FormLinked, regexp.MustCompile(`\[!\[([^\]]*)\]\(` + q + `(?:\s+"[^"]*")?\)\]`), 0, func(m []string) string {
			return "[" + imgTag(local, m[1]) + "]"
		}},
		{FormInline, regexp.MustCompile(`!\[[^\]]*\]\((` + q + `)(?:\s+"[^"]*")?\)`), 1, nil},
		{FormReference, regexp.MustCompile(`(?m)^[ \t]{0,3}\[[^\]]+\]:[ \t]*(` + q + `)(?:\s|$)`), 1, nil},
	}

	for _, f := range forms {
		edits := matchEdits(text, f.re, f.group, func(m []string) (string, bool) {
			p.record(f.form, src, local)
			if f.repl != nil {
				return f.repl(m), true
			}
			return local, true
		})
		var err error
		if text, err = applyEdits(text, edits); err != nil {
			return "", err
		}
	}

	edits := bareEdits(text, lit, local)
	for range edits {
		p.record(FormBare, src, local)
	}
	return applyEdits(text, edits)
}
