package rewrite

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// <img ... src="URL"> with either quote style. The src attribute must be
	// preceded by whitespace so data-src and friends do not match.
	htmlImgPattern = regexp.MustCompile(`(?i)(<img\b[^>]*?\s)src=(?:"([^"]*)"|'([^']*)')`)
	// [img]URL[/img]
	bbcodeImgPattern = regexp.MustCompile(`(?is)\[img\](.*?)\[/img\]`)
	// [![alt](URL "title")] followed by the link target, which is kept.
	linkedImgPattern = regexp.MustCompile(`\[!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)\]`)
	// ![alt](URL "title")
	inlineImgPattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)((?:\s+"[^"]*")?)\)`)
	// [N]: URL at the start of a line.
	refDefPattern = regexp.MustCompile(`(?m)^([ \t]{0,3}\[(\d+)\]:[ \t]*)(\S+)`)
)

// pattern runs the five passes in a fixed order. Each pass sees the output
// of the previous one; the linked-image pass emits an <img> tag but the HTML
// pass has already run, and no later pass matches that tag.
func (p *postRun) pattern(text string) (string, error) {
	passes := []func(string) []edit{
		p.htmlPass,
		p.bbcodePass,
		p.linkedPass,
		p.inlinePass,
		p.referencePass,
	}
	for _, pass := range passes {
		edits := pass(text)
		if p.err != nil {
			return "", p.err
		}
		var err error
		if text, err = applyEdits(text, edits); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (p *postRun) htmlPass(text string) []edit {
	return matchEdits(text, htmlImgPattern, 0, func(m []string) (string, bool) {
		src, quote := m[2], `"`
		if strings.HasPrefix(m[0][len(m[1])+len("src="):], "'") {
			src, quote = m[3], "'"
		}
		local, ok := p.localize(src)
		if !ok {
			return "", false
		}
		p.record(FormHTML, src, local)
		return m[1] + "src=" + quote + local + quote, true
	})
}

func (p *postRun) bbcodePass(text string) []edit {
	return matchEdits(text, bbcodeImgPattern, 1, func(m []string) (string, bool) {
		src := strings.TrimSpace(m[1])
		local, ok := p.localize(src)
		if !ok {
			return "", false
		}
		p.record(FormBBCode, src, local)
		return local, true
	})
}

func (p *postRun) linkedPass(text string) []edit {
	return matchEdits(text, linkedImgPattern, 0, func(m []string) (string, bool) {
		alt, src := m[1], m[2]
		local, ok := p.localize(src)
		if !ok {
			return "", false
		}
		p.record(FormLinked, src, local)
		return "[" + imgTag(local, alt) + "]", true
	})
}

func (p *postRun) inlinePass(text string) []edit {
	return matchEdits(text, inlineImgPattern, 2, func(m []string) (string, bool) {
		src := m[2]
		local, ok := p.localize(src)
		if !ok {
			return "", false
		}
		p.record(FormInline, src, local)
		return local, true
	})
}

func (p *postRun) referencePass(text string) []edit {
	return matchEdits(text, refDefPattern, 3, func(m []string) (string, bool) {
		src := m[3]
		local, ok := p.localize(src)
		if !ok {
			return "", false
		}
		p.record(FormReference, src, local)
		return local, true
	})
}

// imgTag renders the replacement for a linked image. Markdown renderers do
// not allow an image inside link text in every dialect, so the image becomes
// inline HTML.
func imgTag(src, alt string) string {
	return "<img src='" + html.EscapeString(src) + "' alt='" + html.EscapeString(alt) + "'>"
}
