package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyModule     = "module"
	KeyPath       = "path"
	KeyCommand    = "command"
	KeyArgs       = "args"
	KeyAttempt    = "attempt"
	KeyGeneration = "generation"
	KeyStage      = "stage"
	KeyMode       = "mode"
	KeyState      = "state"
	KeyQueueDepth = "queue_depth"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Module(name string) slog.Attr    { return slog.String(KeyModule, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Args(a []string) slog.Attr       { return slog.Any(KeyArgs, a) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Generation(id string) slog.Attr  { return slog.String(KeyGeneration, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func QueueDepth(n int) slog.Attr      { return slog.Int(KeyQueueDepth, n) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
