package config

import "strings"

// Strategy selects how the post rewriter discovers image references.
type Strategy string

const (
	// StrategyAuto uses the DOM strategy when cooked HTML is available and
	// the pattern strategy otherwise.
	StrategyAuto    Strategy = "auto"
	StrategyPattern Strategy = "pattern"
	StrategyDOM     Strategy = "dom"
)

// NormalizeStrategy returns the canonical strategy or "" if raw is unknown.
func NormalizeStrategy(raw string) Strategy {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case StrategyAuto, StrategyPattern, StrategyDOM:
		return s
	case "":
		return StrategyAuto
	default:
		return ""
	}
}

// BodyFormat selects what ends up below the front matter.
type BodyFormat string

const (
	// BodyFormatRaw emits the rewritten raw markup as authored.
	BodyFormatRaw BodyFormat = "raw"
	// BodyFormatHTML renders the rewritten markup to sanitized HTML.
	BodyFormatHTML BodyFormat = "html"
)

// NormalizeBodyFormat returns the canonical format or "" if raw is unknown.
func NormalizeBodyFormat(raw string) BodyFormat {
	switch f := BodyFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case BodyFormatRaw, BodyFormatHTML:
		return f
	case "":
		return BodyFormatRaw
	default:
		return ""
	}
}
