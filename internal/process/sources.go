package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
)

// DefaultProjectSrc is appended to package manager sources when no src is configured.
var DefaultProjectSrc = filepath.Join("src", "**", "*.purs")

// DependencySources asks the package manager for its dependency source globs
// and appends the project globs. With no package manager, src is returned as is.
func DependencySources(ctx context.Context, exec Executor, dir string, pm config.PackageManager, src []string) ([]string, error) {
	if pm == config.PackageManagerNone {
		return src, nil
	}
	out, err := runCaptured(ctx, exec, dir, string(pm), "sources")
	if err != nil {
		return nil, err
	}
	var globs []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			globs = append(globs, line)
		}
	}
	if len(src) == 0 {
		src = []string{DefaultProjectSrc}
	}
	globs = append(globs, src...)
	slog.Debug("Resolved dependency sources", logfields.Command(string(pm)), "globs", len(globs))
	return globs, nil
}

// SpagoOutputPath returns the output directory reported by `spago path output`.
func SpagoOutputPath(ctx context.Context, exec Executor, dir string) (string, error) {
	out, err := runCaptured(ctx, exec, dir, "spago", "path", "output")
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(first), nil
}

// runCaptured runs a short-lived helper and returns stdout. Non-zero exits
// report stdout as the failure text, which is where these tools print it.
func runCaptured(ctx context.Context, exec Executor, dir, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	err := exec.Run(ctx, Command{Name: name, Args: args, Dir: dir, Stdout: &stdout, Stderr: &stderr})
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		msg := strings.TrimSpace(stdout.String())
		if msg == "" {
			msg = strings.TrimSpace(stderr.String())
		}
		return "", errors.NewError(errors.CategorySpawn, name+" "+strings.Join(args, " ")+" failed: "+msg).
			WithContext("command", name).
			WithContext("exit_code", exitErr.Code).
			UserAction().
			Build()
	}
	if err != nil {
		return "", err
	}
	return stdout.String(), nil
}
