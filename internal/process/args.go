package process

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
)

// Positional is the flag-map key whose values become positional arguments.
const Positional = "_"

// FormatFlags turns an option map into command-line arguments.
//
// Keys are emitted in sorted order as --kebab-case flags. true yields a bare
// flag, false and nil are omitted, slices repeat the flag once per element
// and every other value is rendered as the following argument. Values under
// Positional are appended last, in order.
func FormatFlags(opts map[string]any) []string {
	var args []string
	for _, key := range slices.Sorted(maps.Keys(opts)) {
		if key == Positional {
			continue
		}
		flag := "--" + kebab(key)
		switch v := opts[key].(type) {
		case nil:
		case bool:
			if v {
				args = append(args, flag)
			}
		case []string:
			for _, s := range v {
				args = append(args, flag, s)
			}
		case []any:
			for _, s := range v {
				args = append(args, flag, fmt.Sprint(s))
			}
		default:
			args = append(args, flag, fmt.Sprint(v))
		}
	}
	switch v := opts[Positional].(type) {
	case []string:
		args = append(args, v...)
	case []any:
		for _, s := range v {
			args = append(args, fmt.Sprint(s))
		}
	case string:
		args = append(args, v)
	}
	return args
}

// MergeFlags returns a new map holding base overlaid with override.
func MergeFlags(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

func kebab(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
