package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFlags(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want []string
	}{
		{"empty", nil, nil},
		{"string value", map[string]any{"output": "out"}, []string{"--output", "out"}},
		{"camel case", map[string]any{"censorCodes": "ImplicitImport"}, []string{"--censor-codes", "ImplicitImport"}},
		{"true is bare", map[string]any{"sourceMaps": true}, []string{"--source-maps"}},
		{"false and nil omitted", map[string]any{"stash": false, "x": nil}, nil},
		{"list repeats", map[string]any{"module": []string{"Foo", "Bar"}}, []string{"--module", "Foo", "--module", "Bar"}},
		{"any list", map[string]any{"n": []any{1, "two"}}, []string{"--n", "1", "--n", "two"}},
		{"number", map[string]any{"port": 4242}, []string{"--port", "4242"}},
		{
			"positional last and keys sorted",
			map[string]any{Positional: []string{"src/**/*.purs"}, "output": "output", "codegen": "js"},
			[]string{"--codegen", "js", "--output", "output", "src/**/*.purs"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFlags(tt.in))
		})
	}
}

func TestMergeFlags(t *testing.T) {
	base := map[string]any{"output": "output", "a": 1}
	merged := MergeFlags(base, map[string]any{"output": "build"})
	assert.Equal(t, "build", merged["output"])
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, "output", base["output"], "base is not modified")
}
