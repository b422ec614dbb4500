package ide

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/pursloader/internal/logfields"
)

// Formatter renders rebuild diagnostics as "[i/n CODE] file:line:col" blocks
// with an underlined source excerpt.
type Formatter struct {
	// context is the directory file names are made relative to.
	context string
	header  *color.Color
	marker  *color.Color
}

// NewFormatter returns a Formatter; colors are forced on when enabled so output
// stays colored when piped to the host.
func NewFormatter(context string, colors bool) *Formatter {
	f := &Formatter{context: context}
	f.header = color.New(color.FgYellow)
	f.marker = color.New(color.FgRed)
	if colors {
		f.header.EnableColor()
		f.marker.EnableColor()
	} else {
		f.header.DisableColor()
		f.marker.DisableColor()
	}
	return f
}

// FormatAll formats every item and joins them with newlines.
func (f *Formatter) FormatAll(items []ResultItem) string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = f.Format(item, i, len(items))
	}
	return strings.Join(out, "\n")
}

// Format renders item index of total. Items with a file and position get a
// numbered excerpt; an unreadable file renders as the empty string.
func (f *Formatter) Format(item ResultItem, index, total int) string {
	head := f.header.Sprintf("[%d/%d %s]", index+1, total, item.ErrorCode)
	if item.Filename == "" || item.Position == nil {
		return "\n" + head + " " + item.Message
	}

	snippet, err := f.snippet(item.Filename, *item.Position)
	if err != nil {
		slog.Debug("failed to format ide result", logfields.Path(item.Filename), logfields.Error(err))
		return ""
	}

	rel, err := filepath.Rel(f.context, item.Filename)
	if err != nil {
		rel = item.Filename
	}
	loc := fmt.Sprintf("%s:%d:%d", rel, item.Position.StartLine, item.Position.StartColumn)
	return "\n" + head + " " + loc + "\n\n" + snippet + "\n\n" + item.Message
}

func (f *Formatter) snippet(filename string, pos Position) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	all := strings.Split(string(data), "\n")
	if pos.StartLine < 1 || pos.StartLine > len(all) || pos.EndLine < pos.StartLine {
		return "", fmt.Errorf("position %d-%d outside %d lines", pos.StartLine, pos.EndLine, len(all))
	}
	lines := all[pos.StartLine-1 : min(pos.EndLine, len(all))]

	// A range ending at column 1 of a later line really ends on the last
	// non-empty line before it.
	if pos.EndColumn == 1 && pos.StartLine != pos.EndLine {
		lines = lines[:len(lines)-1]
		for len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) == 0 {
			return "", fmt.Errorf("empty range at line %d", pos.StartLine)
		}
		pos.EndLine = pos.StartLine + len(lines) - 1
		pos.EndColumn = max(len(lines[len(lines)-1]), 1)
	}

	up := f.marker.Sprint("^")
	down := f.marker.Sprint("v")
	gutter := "  " + strings.Repeat(" ", len(strconv.Itoa(pos.EndLine))) + "  "

	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = "  " + strconv.Itoa(pos.StartLine+i) + "  " + line
	}
	snippet := strings.Join(numbered, "\n")

	if len(lines) == 1 {
		return snippet + "\n" + gutter + pad(pos.StartColumn-1) + strings.Repeat(up, max(pos.EndColumn-pos.StartColumn+1, 1)), nil
	}
	return gutter + pad(pos.StartColumn-1) + down + "\n" + snippet + "\n" + gutter + pad(pos.EndColumn-1) + up, nil
}

func pad(n int) string {
	return strings.Repeat(" ", max(n, 0))
}
