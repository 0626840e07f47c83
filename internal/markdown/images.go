// Package markdown inspects rewritten post bodies with a CommonMark parser.
// It is used to audit image references that are still remote after a
// rewrite; it never modifies the text.
package markdown

import (
	"bytes"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

type ImageKind string

const (
	ImageKindInline              ImageKind = "inline"
	ImageKindHTML                ImageKind = "html"
	ImageKindReferenceDefinition ImageKind = "reference_definition"
)

type Image struct {
	Kind        ImageKind
	Destination string
}

// ExtractImages parses body and returns image destinations: Markdown images,
// <img> tags in inline or block HTML, and numbered reference definitions.
func ExtractImages(body []byte) []Image {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	ctx := parser.NewContext()
	root := md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	var images []Image
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Image:
			images = append(images, Image{Kind: ImageKindInline, Destination: string(node.Destination)})
		case *gmast.RawHTML:
			var buf bytes.Buffer
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				buf.Write(seg.Value(body))
			}
			images = append(images, htmlImages(buf.Bytes())...)
		case *gmast.HTMLBlock:
			var buf bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(body))
			}
			images = append(images, htmlImages(buf.Bytes())...)
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions live in the parse context, not in the AST.
	refs := ctx.References()
	sort.Slice(refs, func(i, j int) bool {
		return string(refs[i].Label()) < string(refs[j].Label())
	})
	for _, ref := range refs {
		if isNumeric(string(ref.Label())) {
			images = append(images, Image{Kind: ImageKindReferenceDefinition, Destination: string(ref.Destination())})
		}
	}
	return images
}

// Remote filters images to those whose destination is an http(s) or
// protocol-relative URL.
func Remote(images []Image) []Image {
	var out []Image
	for _, img := range images {
		d := strings.ToLower(img.Destination)
		if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") || strings.HasPrefix(d, "//") {
			out = append(out, img)
		}
	}
	return out
}

func htmlImages(fragment []byte) []Image {
	var images []Image
	z := html.NewTokenizer(bytes.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return images
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "img" {
				continue
			}
			for _, a := range tok.Attr {
				if a.Key == "src" {
					images = append(images, Image{Kind: ImageKindHTML, Destination: a.Val})
					break
				}
			}
		}
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
