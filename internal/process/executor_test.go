package process

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
)

func TestOSExecutorRun(t *testing.T) {
	var stdout bytes.Buffer
	err := OSExecutor{}.Run(t.Context(), Command{
		Name:   "sh",
		Args:   []string{"-c", "cat; exit 3"},
		Stdin:  strings.NewReader("hello"),
		Stdout: &stdout,
	})
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
	assert.Equal(t, "hello", stdout.String())
}

func TestOSExecutorSpawnFailure(t *testing.T) {
	err := OSExecutor{}.Run(t.Context(), Command{Name: "pursloader-definitely-missing-binary"})
	require.Error(t, err)
	assert.Equal(t, errors.CategorySpawn, errors.GetCategory(err))
	assert.Equal(t, -1, ExitCode(err))

	_, err = OSExecutor{}.Start(Command{Name: "pursloader-definitely-missing-binary"})
	assert.True(t, errors.HasCategory(err, errors.CategorySpawn))
}

func TestOSExecutorStartKill(t *testing.T) {
	p, err := OSExecutor{}.Start(Command{Name: "sleep", Args: []string{"30"}})
	require.NoError(t, err)
	assert.Positive(t, p.Pid())
	require.NoError(t, p.Kill())
	assert.Error(t, p.Wait())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(&ExitError{Code: 2}))
}
