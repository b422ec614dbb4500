package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/modulemap"
)

// ModulesCmd implements the 'modules' command.
type ModulesCmd struct {
	Paths   []string `arg:"" optional:"" type:"path" help:"Source files or directories (default: src)"`
	Imports bool     `short:"i" help:"Show each module's imports"`
}

func (m *ModulesCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	entries, err := modulemap.Scan(sourceRoots(cfg, m.Paths)...)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "scan sources").Build()
	}
	printModules(os.Stdout, entries, m.Imports)
	return nil
}

func printModules(w io.Writer, entries map[string]modulemap.Entry, imports bool) {
	for _, name := range modulemap.Names(entries) {
		e := entries[name]
		line := name + "\t" + e.Src
		if e.FFI != "" {
			line += "\t(ffi " + e.FFI + ")"
		}
		_, _ = fmt.Fprintln(w, line)
		if imports && len(e.Imports) > 0 {
			_, _ = fmt.Fprintln(w, "  imports: "+strings.Join(e.Imports, ", "))
		}
	}
}
