// Package modulemap extracts module names and imports from PureScript source text.
package modulemap

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	modulePattern = regexp.MustCompile(`(?i)(?:^|\n)module\s+([\w.]+)`)
	importPattern = regexp.MustCompile(`(?i)(?:^|\n)\s*import\s+([\w.]+)`)
)

// MatchModule returns the declared module name, or "" when there is none.
func MatchModule(source string) string {
	m := modulePattern.FindStringSubmatch(source)
	if m == nil {
		return ""
	}
	return m[1]
}

// MatchImports returns imported module names in source order.
func MatchImports(source string) []string {
	var out []string
	for _, m := range importPattern.FindAllStringSubmatch(source, -1) {
		out = append(out, m[1])
	}
	return out
}

// Entry describes one module found on disk.
type Entry struct {
	Name    string
	Src     string
	FFI     string
	Imports []string
}

// Scan walks roots for .purs files and maps module names to entries. A
// sibling .js file with the same base name is recorded as the module's FFI.
func Scan(roots ...string) (map[string]Entry, error) {
	out := make(map[string]Entry)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(path) != ".purs" {
				return nil
			}
			entry, err := ReadEntry(path)
			if err != nil {
				return err
			}
			if entry.Name != "" {
				out[entry.Name] = entry
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadEntry reads a single .purs file.
func ReadEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	src := string(data)
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	entry := Entry{Name: MatchModule(src), Src: abs, Imports: MatchImports(src)}
	ffi := strings.TrimSuffix(abs, ".purs") + ".js"
	if _, err := os.Stat(ffi); err == nil {
		entry.FFI = ffi
	}
	return entry, nil
}

// Names returns the sorted module names of m.
func Names(m map[string]Entry) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
