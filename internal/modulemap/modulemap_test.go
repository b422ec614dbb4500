package modulemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mainSource = dedent.Dedent(`
	module App.Main
	  ( main
	  ) where

	import Prelude
	import Data.Maybe (Maybe(..))
	  import Effect.Console as Console

	main = pure unit
`)

func TestMatchModule(t *testing.T) {
	assert.Equal(t, "App.Main", MatchModule(mainSource))
	assert.Equal(t, "Foo", MatchModule("MODULE Foo where"))
	assert.Empty(t, MatchModule("-- no module here"))
	assert.Empty(t, MatchModule("  module Indented where"))
}

func TestMatchImports(t *testing.T) {
	assert.Equal(t, []string{"Prelude", "Data.Maybe", "Effect.Console"}, MatchImports(mainSource))
	assert.Nil(t, MatchImports("module A where"))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "src", "App")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.purs"), []byte(mainSource), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.js"), []byte("exports.x = 1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Util.purs"), []byte("module App.Util where"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("module Not.This"), 0o600))

	m, err := Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"App.Main", "App.Util"}, Names(m))

	main := m["App.Main"]
	assert.Equal(t, filepath.Join(dir, "Main.js"), main.FFI)
	assert.Equal(t, []string{"Prelude", "Data.Maybe", "Effect.Console"}, main.Imports)
	assert.Empty(t, m["App.Util"].FFI)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
