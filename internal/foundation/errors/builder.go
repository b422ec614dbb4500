package errors

import (
	stderrors "errors"
	"strings"
)

// ErrPriorStepFailed is the secondary error handed to every deferred request
// that shared a failed compile with the request that received the real error.
var ErrPriorStepFailed = stderrors.New("pursloader failed: prior step failed")

// ErrProtocolParse marks ProtocolErrors caused by an unreadable server response.
var ErrProtocolParse = stderrors.New("ide response is not valid JSON")

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithCause sets the wrapped error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Retryable sets the retry strategy to backoff.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	return b.WithRetry(RetryBackoff)
}

// UserAction sets the retry strategy to require user action.
func (b *ErrorBuilder) UserAction() *ErrorBuilder {
	return b.WithRetry(RetryUserAction)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for common error patterns

// ConfigError creates a configuration error.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError creates a validation error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// SpawnError creates an error for a process that could not be started.
func SpawnError(command string, cause error) *ErrorBuilder {
	return WrapError(cause, CategorySpawn, "failed to start "+command).
		WithContext("command", command).
		UserAction()
}

// CompilationFailed creates a batch compile failure carrying the raw compiler stderr verbatim.
func CompilationFailed(stderr string) *ErrorBuilder {
	msg := "compilation failed"
	if stderr != "" {
		msg += ":\n" + stderr
	}
	return NewError(CategoryCompile, msg).
		WithContext("stderr", stderr).
		UserAction()
}

// BundleError creates a bundler failure carrying the bundler stderr when present.
func BundleError(stderr string) *ErrorBuilder {
	msg := "bundling failed"
	if stderr != "" {
		msg += ": " + stderr
	}
	return NewError(CategoryBundle, msg).UserAction()
}

// ProtocolError creates an IDE exchange failure. An empty stderr yields a generic message.
func ProtocolError(stderr string) *ErrorBuilder {
	msg := "ide client failed"
	if s := strings.TrimSpace(stderr); s != "" {
		msg += ": " + stderr
	} else {
		msg += " with no output"
	}
	return NewError(CategoryProtocol, msg).Retryable()
}

// ProtocolParseError creates a ProtocolError for a response that is not valid JSON.
func ProtocolParseError(cause error) *ErrorBuilder {
	return WrapError(stderrors.Join(ErrProtocolParse, cause), CategoryProtocol, "unreadable ide response")
}

// UnknownModuleError creates the recoverable stale-module-graph condition.
func UnknownModuleError(module string) *ErrorBuilder {
	return NewError(CategoryUnknownModule, "module "+module+" is unknown to the ide server").
		WithContext("module", module).
		WithRetry(RetryRecompile).
		Warning()
}

// RebuildError creates a terminal per-module diagnostic from the IDE server.
func RebuildError(module, formatted string) *ErrorBuilder {
	return NewError(CategoryRebuild, "rebuild of "+module+" failed:"+formatted).
		WithContext("module", module)
}

// SourceMapError creates an error for an unreadable or malformed source map.
func SourceMapError(path string, cause error) *ErrorBuilder {
	return WrapError(cause, CategorySourceMap, "source map "+path).
		WithContext("path", path)
}

// FileSystemError creates a filesystem error.
func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message)
}

// EventStoreError creates a build history persistence error.
func EventStoreError(message string) *ErrorBuilder {
	return NewError(CategoryEventStore, message)
}

// NotifyError creates a notification delivery error.
func NotifyError(message string) *ErrorBuilder {
	return NewError(CategoryNotify, message).Retryable()
}

// InternalError creates an internal error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
