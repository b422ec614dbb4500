// Package errors provides the classified error primitives used across pursloader.
//
// Every failure the loader can surface maps onto one ErrorCategory:
//   - CategorySpawn: an external process (compiler, bundler, IDE server or client) failed to start
//   - CategoryCompile: the batch compiler exited non-zero
//   - CategoryProtocol: an IDE exchange failed or returned an unreadable response
//   - CategoryUnknownModule: the IDE server's module graph is stale (recoverable)
//   - CategoryRebuild: the IDE server reported a terminal per-module diagnostic
//   - CategorySourceMap: the compiled source map could not be read or patched
//
// Example usage:
//
//	err := errors.CompilationFailed(stderr).
//		WithContext("command", "purs").
//		Build()
package errors
