package rewrite

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// edit is a byte-range replacement on the text a pass started from.
// End is exclusive.
type edit struct {
	start       int
	end         int
	replacement string
}

// applyEdits applies non-overlapping edits to src. Offsets refer to src, so
// edits are applied back to front.
func applyEdits(src string, edits []edit) (string, error) {
	if len(edits) == 0 {
		return src, nil
	}

	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].start > sorted[j].start
	})

	for i, e := range sorted {
		if e.start < 0 || e.end < e.start || e.end > len(src) {
			return "", fmt.Errorf("invalid edit[%d]: range [%d,%d) outside text of length %d", i, e.start, e.end, len(src))
		}
		if i > 0 && e.end > sorted[i-1].start {
			return "", errors.New("invalid edits: overlapping ranges")
		}
	}

	out := src
	for _, e := range sorted {
		out = out[:e.start] + e.replacement + out[e.end:]
	}
	return out, nil
}

// matchEdits runs re over text and asks fn for a replacement of capture
// group `group` in each match. fn receives all submatches; returning false
// leaves that match alone.
func matchEdits(text string, re *regexp.Regexp, group int, fn func(m []string) (string, bool)) []edit {
	var edits []edit
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2*group], loc[2*group+1]
		if start < 0 {
			continue
		}
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		repl, ok := fn(m)
		if !ok {
			continue
		}
		edits = append(edits, edit{start: start, end: end, replacement: repl})
	}
	return edits
}

// bareEdits replaces standalone occurrences of lit. An occurrence only
// counts when it is not glued to surrounding URL characters, so a URL that is
// a prefix (or suffix) of a longer one is left intact.
func bareEdits(text, lit, replacement string) []edit {
	if lit == "" {
		return nil
	}
	var edits []edit
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], lit)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(lit)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			edits = append(edits, edit{start: start, end: end, replacement: replacement})
			offset = end
			continue
		}
		offset = start + 1
	}
	return edits
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	return !isURLByte(text[i-1]) || text[i-1] == '(' || text[i-1] == '[' || text[i-1] == '\''
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	c := text[i]
	// Sentence punctuation directly after a URL is not part of it.
	if c == '.' || c == ',' || c == ';' || c == ':' || c == '!' {
		return i+1 >= len(text) || !isURLByte(text[i+1])
	}
	return !isURLByte(c) || c == ')' || c == ']' || c == '\''
}

func isURLByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("-._~:/?#[]@!$&'()*+,;=%", c) >= 0
}
