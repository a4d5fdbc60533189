package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyTarget     = "target"
	KeyRule       = "rule"
	KeyChapter    = "chapter"
	KeyTool       = "tool"
	KeyDurationMS = "duration_ms"
	KeyReason     = "reason"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Target(dir string) slog.Attr     { return slog.String(KeyTarget, dir) }
func Rule(name string) slog.Attr      { return slog.String(KeyRule, name) }
func Chapter(name string) slog.Attr   { return slog.String(KeyChapter, name) }
func Tool(name string) slog.Attr      { return slog.String(KeyTool, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Reason(why string) slog.Attr     { return slog.String(KeyReason, why) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
