package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyTopicID    = "topic_id"
	KeySlug       = "slug"
	KeyTitle      = "title"
	KeyURL        = "url"
	KeyPage       = "page"
	KeyAsset      = "asset"
	KeyForm       = "form"
	KeyPath       = "path"
	KeyCategory   = "category"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func TopicID(id int) slog.Attr        { return slog.Int(KeyTopicID, id) }
func Slug(s string) slog.Attr         { return slog.String(KeySlug, s) }
func Title(s string) slog.Attr        { return slog.String(KeyTitle, s) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Page(n int) slog.Attr            { return slog.Int(KeyPage, n) }
func Asset(ref string) slog.Attr      { return slog.String(KeyAsset, ref) }
func Form(f string) slog.Attr         { return slog.String(KeyForm, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
