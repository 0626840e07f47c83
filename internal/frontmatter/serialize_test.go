package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeYAML_EmptyMap(t *testing.T) {
	out, err := SerializeYAML(map[string]any{}, HeaderOrder)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestSerializeYAML_HeaderOrderThenAlphabetical(t *testing.T) {
	fields := map[string]any{
		"zeta":      "last",
		"category":  []string{"Dev", "Tools"},
		"title":     "Hello: world",
		"layout":    "post",
		"date":      "2014-02-05T17:30:53.145Z",
		"alpha":     1,
		"redirects": []string{"/t/1"},
	}

	out, err := SerializeYAML(fields, HeaderOrder)
	require.NoError(t, err)
	require.Equal(t, "layout: post\n"+
		"title: 'Hello: world'\n"+
		"date: \"2014-02-05T17:30:53.145Z\"\n"+
		"category:\n  - Dev\n  - Tools\n"+
		"redirects:\n  - /t/1\n"+
		"alpha: 1\n"+
		"zeta: last\n", string(out))
}

func TestSerializeYAML_NestedMapSorted(t *testing.T) {
	out, err := SerializeYAML(map[string]any{"outer": map[string]any{"b": 2, "a": 1}}, nil)
	require.NoError(t, err)
	require.Equal(t, "outer:\n  a: 1\n  b: 2\n", string(out))
}

func TestSerializeYAML_UnsupportedType(t *testing.T) {
	_, err := SerializeYAML(map[string]any{"ch": make(chan int)}, nil)
	require.Error(t, err)
}
