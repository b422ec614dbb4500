package ide

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/process"
	"git.home.luguber.info/inful/pursloader/internal/process/processtest"
)

func TestClientRebuildRequest(t *testing.T) {
	cfg := config.Default()
	cfg.IDE.ClientArgs = map[string]any{"port": 15555}
	cfg.IDE.RebuildParams = map[string]any{"codegen": []string{"js"}}
	exec := &processtest.Executor{OnRun: func(_ context.Context, _ processtest.Call, stdout, _ io.Writer) error {
		_, _ = io.WriteString(stdout, `{"resultType":"success","result":[]}`)
		return nil
	}}

	resp, err := NewClient(cfg, exec).Rebuild(t.Context(), "src/Main.purs")
	require.NoError(t, err)
	assert.True(t, resp.Success())

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "purs", calls[0].Name)
	assert.Equal(t, []string{"ide", "client", "--port", "15555"}, calls[0].Args)
	require.Equal(t, byte('\n'), calls[0].Stdin[len(calls[0].Stdin)-1], "request is newline terminated")

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(calls[0].Stdin), &sent))
	assert.Equal(t, "rebuild", sent["command"])
	assert.Equal(t, map[string]any{"file": "src/Main.purs", "codegen": []any{"js"}}, sent["params"])
}

func TestClientLoadRequest(t *testing.T) {
	exec := &processtest.Executor{}
	require.NoError(t, NewClient(config.Default(), exec).Load(t.Context()))
	assert.JSONEq(t, `{"command":"load"}`, exec.Calls()[0].Stdin)
}

func TestClientNonZeroExit(t *testing.T) {
	exec := &processtest.Executor{OnRun: func(_ context.Context, _ processtest.Call, _, stderr io.Writer) error {
		_, _ = io.WriteString(stderr, "connection refused")
		return &process.ExitError{Code: 1}
	}}
	err := NewClient(config.Default(), exec).Load(t.Context())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryProtocol, errors.GetCategory(err))
	assert.Contains(t, err.Error(), "ide client failed: connection refused")

	silent := &processtest.Executor{OnRun: func(context.Context, processtest.Call, io.Writer, io.Writer) error {
		return &process.ExitError{Code: 1}
	}}
	err = NewClient(config.Default(), silent).Load(t.Context())
	assert.Contains(t, err.Error(), "ide client failed with no output")
}

func TestClientUnparseableResponse(t *testing.T) {
	exec := &processtest.Executor{OnRun: func(_ context.Context, _ processtest.Call, stdout, _ io.Writer) error {
		_, _ = io.WriteString(stdout, "not json")
		return nil
	}}
	_, err := NewClient(config.Default(), exec).Rebuild(t.Context(), "a.purs")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProtocolParse)
	assert.Equal(t, errors.CategoryProtocol, errors.GetCategory(err))
}
