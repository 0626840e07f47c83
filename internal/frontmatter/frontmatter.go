// Package frontmatter reads and writes the YAML header block of generated
// posts and computes the header fields derived from content.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

const delimiter = "---\n"

// ErrMissingClosingDelimiter indicates the document started with a header
// delimiter but never closed it.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

// Split separates the header from the body of a document in the layout Join
// produces. CRLF documents are normalized to LF first. When the document has
// no header, had is false and body is the whole input.
func Split(content []byte) (header []byte, body []byte, had bool, err error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte(delimiter)) {
		return nil, content, false, nil
	}

	rest := content[len(delimiter):]
	if bytes.HasPrefix(rest, []byte(delimiter)) {
		return []byte{}, rest[len(delimiter):], true, nil
	}

	idx := bytes.Index(rest, []byte("\n"+delimiter))
	if idx < 0 {
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	return rest[:idx+1], rest[idx+1+len(delimiter):], true, nil
}

// Join assembles a post: the header between delimiters, one blank line, then
// the body terminated by a newline.
func Join(header []byte, body []byte) []byte {
	out := make([]byte, 0, 2*len(delimiter)+len(header)+len(body)+2)
	out = append(out, delimiter...)
	out = append(out, header...)
	out = append(out, delimiter...)
	out = append(out, '\n')
	out = append(out, body...)
	if len(body) == 0 || body[len(body)-1] != '\n' {
		out = append(out, '\n')
	}
	return out
}

// ParseYAML parses a raw header (without delimiters) into a map.
func ParseYAML(header []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(header)) == 0 {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(header, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Read splits and parses a document. The returned body has the blank
// separator line written by Join removed.
func Read(content []byte) (fields map[string]any, body []byte, err error) {
	header, body, had, err := Split(content)
	if err != nil {
		return nil, nil, err
	}
	if !had {
		return map[string]any{}, body, nil
	}
	fields, err = ParseYAML(header)
	if err != nil {
		return nil, nil, err
	}
	body = bytes.TrimPrefix(body, []byte("\n"))
	body = bytes.TrimSuffix(body, []byte("\n"))
	return fields, body, nil
}
