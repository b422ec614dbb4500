// Package artifact reads compiled module output and prepares it for the host.
package artifact

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
)

// Artifact is the compiled code handed back for one request.
type Artifact struct {
	Code      string
	SourceMap map[string]any
}

// Target identifies the module a request wants compiled output for.
type Target struct {
	ModuleName string
	SourcePath string
	Source     string
	// Identity is the host's name for the request, recorded as the map source.
	Identity string
}

var mappingURL = regexp.MustCompile(`(?m)^//# sourceMappingURL=[^\r\n]*`)

// StripMappingURL removes every source mapping URL comment line.
func StripMappingURL(code string) string {
	return mappingURL.ReplaceAllString(code, "")
}

// JSPath returns <output>/<Module>/index.js.
func JSPath(output, module string) string {
	return filepath.Join(output, module, "index.js")
}

// Dispatcher turns compiled output on disk into Artifacts.
type Dispatcher struct {
	output     string
	sourceMaps bool
}

// NewDispatcher reads from output; sourceMaps attaches patched index.js.map files.
func NewDispatcher(output string, sourceMaps bool) *Dispatcher {
	return &Dispatcher{output: output, sourceMaps: sourceMaps}
}

// Output returns the directory artifacts are read from.
func (d *Dispatcher) Output() string { return d.output }

// Build reads the compiled module for t.
func (d *Dispatcher) Build(t Target) (Artifact, error) {
	jsPath := JSPath(d.output, t.ModuleName)
	code, err := os.ReadFile(jsPath)
	if err != nil {
		return Artifact{}, errors.WrapError(err, errors.CategoryFileSystem, "read compiled module "+t.ModuleName).
			WithContext("path", jsPath).
			Build()
	}
	if !d.sourceMaps {
		return Artifact{Code: string(code)}, nil
	}

	mapPath := filepath.Join(filepath.Dir(jsPath), "index.js.map")
	slog.Debug("loading source map", logfields.Path(mapPath))
	raw, err := os.ReadFile(mapPath)
	if err != nil {
		return Artifact{}, errors.SourceMapError(mapPath, err).Build()
	}
	sm, err := PatchSourceMap(raw, t)
	if err != nil {
		return Artifact{}, errors.SourceMapError(mapPath, err).Build()
	}
	return Artifact{Code: StripMappingURL(string(code)), SourceMap: sm}, nil
}

// PatchSourceMap overrides sources, file and sourcesContent so the map points
// at the original request rather than the compiler output tree.
func PatchSourceMap(raw []byte, t Target) (map[string]any, error) {
	var sm map[string]any
	if err := json.Unmarshal(raw, &sm); err != nil {
		return nil, err
	}
	if sm == nil {
		sm = map[string]any{}
	}
	sm["sources"] = []any{t.Identity}
	sm["file"] = filepath.Clean(t.SourcePath)
	sm["sourcesContent"] = []any{t.Source}
	return sm, nil
}
