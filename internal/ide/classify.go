package ide

import (
	"regexp"
)

// OutcomeKind tags the result of a rebuild.
type OutcomeKind int

const (
	// OutcomeSuccess means the module rebuilt; Diagnostics holds warnings.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeUnknownModule means the server's module graph is stale and a
	// full compile followed by a reload is required.
	OutcomeUnknownModule
	// OutcomeRebuildFailed means the module has errors; Diagnostics holds them.
	OutcomeRebuildFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnknownModule:
		return "unknown_module"
	case OutcomeRebuildFailed:
		return "rebuild_failed"
	default:
		return "unknown"
	}
}

// Outcome is a classified rebuild response.
type Outcome struct {
	Kind        OutcomeKind
	Items       []ResultItem
	Diagnostics string
}

var unknownModulePattern = regexp.MustCompile(`Unknown module`)

// IsUnknownModule reports whether item shows the server does not know a
// module that exists on disk: ModuleNotFound, UnknownModule, or UnknownName
// whose message mentions an unknown module (an unresolved import).
func IsUnknownModule(item ResultItem) bool {
	switch item.ErrorCode {
	case "ModuleNotFound", "UnknownModule":
		return true
	case "UnknownName":
		return unknownModulePattern.MatchString(item.Message)
	default:
		return false
	}
}

// Classify turns a rebuild response into an Outcome. Diagnostics are only
// formatted for outcomes that surface them.
func Classify(resp *Response, f *Formatter) Outcome {
	items := resp.Items()
	if resp.Success() {
		return Outcome{Kind: OutcomeSuccess, Items: items, Diagnostics: f.FormatAll(items)}
	}
	for _, item := range items {
		if IsUnknownModule(item) {
			return Outcome{Kind: OutcomeUnknownModule, Items: items}
		}
	}
	return Outcome{Kind: OutcomeRebuildFailed, Items: items, Diagnostics: f.FormatAll(items)}
}
