package state

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/pursloader/internal/artifact"
)

// Request is one admitted module awaiting its artifact. Exactly one of
// Resolve or Reject takes effect; later calls are ignored.
type Request struct {
	ModuleName string
	SourcePath string
	Source     string
	// Identity is the host's name for the request, used as the source map source.
	Identity string

	once     sync.Once
	done     chan struct{}
	artifact artifact.Artifact
	err      error
}

// NewRequest creates a pending request.
func NewRequest(module, sourcePath, source string) *Request {
	return &Request{
		ModuleName: module,
		SourcePath: sourcePath,
		Source:     source,
		Identity:   sourcePath,
		done:       make(chan struct{}),
	}
}

// Target returns the artifact lookup key for the request.
func (r *Request) Target() artifact.Target {
	return artifact.Target{
		ModuleName: r.ModuleName,
		SourcePath: r.SourcePath,
		Source:     r.Source,
		Identity:   r.Identity,
	}
}

// Resolve settles the request with a. It reports whether this call settled it.
func (r *Request) Resolve(a artifact.Artifact) bool {
	return r.settle(a, nil)
}

// Reject settles the request with err. It reports whether this call settled it.
func (r *Request) Reject(err error) bool {
	return r.settle(artifact.Artifact{}, err)
}

func (r *Request) settle(a artifact.Artifact, err error) bool {
	settled := false
	r.once.Do(func() {
		r.artifact, r.err = a, err
		settled = true
		close(r.done)
	})
	return settled
}

// Done is closed once the request has settled.
func (r *Request) Done() <-chan struct{} { return r.done }

// Settled reports whether Resolve or Reject has taken effect.
func (r *Request) Settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the request settles or ctx is done.
func (r *Request) Wait(ctx context.Context) (artifact.Artifact, error) {
	select {
	case <-r.done:
		return r.artifact, r.err
	case <-ctx.Done():
		return artifact.Artifact{}, ctx.Err()
	}
}
