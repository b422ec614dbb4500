package ide

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/process"
)

// Client performs request/response exchanges by spawning the IDE client
// process once per request.
type Client struct {
	exec          process.Executor
	command       string
	args          []string
	dir           string
	rebuildParams map[string]any
}

// NewClient builds a Client from configuration.
func NewClient(cfg *config.Config, exec process.Executor) *Client {
	name, prefix := cfg.IDEClientInvocation()
	return &Client{
		exec:          exec,
		command:       name,
		args:          append(append([]string(nil), prefix...), process.FormatFlags(cfg.IDE.ClientArgs)...),
		dir:           cfg.Context,
		rebuildParams: cfg.IDE.RebuildParams,
	}
}

// Exchange writes req as one JSON line to the client's stdin and returns its
// accumulated stdout. A non-zero exit yields a ProtocolError carrying stderr.
func (c *Client) Exchange(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "encode ide request").Build()
	}
	body = append(body, '\n')

	var stdout, stderr bytes.Buffer
	slog.Debug("ide client exchange", logfields.Command(req.Command), logfields.Args(c.args))
	err = c.exec.Run(ctx, process.Command{
		Name:   c.command,
		Args:   c.args,
		Dir:    c.dir,
		Stdin:  bytes.NewReader(body),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	var exitErr *process.ExitError
	if stderrors.As(err, &exitErr) {
		return nil, errors.ProtocolError(stderr.String()).
			WithContext("command", req.Command).
			WithContext("exit_code", exitErr.Code).
			Build()
	}
	if err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Load asks the server to load every compiled module from the output directory.
func (c *Client) Load(ctx context.Context) error {
	_, err := c.Exchange(ctx, Request{Command: "load"})
	return err
}

// Rebuild asks the server to recompile one source file.
func (c *Client) Rebuild(ctx context.Context, file string) (*Response, error) {
	params := process.MergeFlags(map[string]any{"file": file}, c.rebuildParams)
	raw, err := c.Exchange(ctx, Request{Command: "rebuild", Params: params})
	if err != nil {
		return nil, err
	}
	return ParseResponse(raw)
}
