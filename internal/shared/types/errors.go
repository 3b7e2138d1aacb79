package types

import "fmt"

// Kind identifies a class of kernel failure. Kinds are stable strings so
// they survive serialization across the wire surface.
type Kind string

const (
	// Filesystem.
	KindNoSuchEntry      Kind = "no_such_entry"
	KindWrongType        Kind = "wrong_type"
	KindPermissionDenied Kind = "permission_denied"
	KindNotOwner         Kind = "not_owner"
	KindAlreadyExists    Kind = "already_exists"
	KindNotEmpty         Kind = "not_empty"
	KindNoSpace          Kind = "no_space"
	KindLoop             Kind = "loop"
	KindInvalidPath      Kind = "invalid_path"

	// Identity.
	KindUserExists   Kind = "user_exists"
	KindNoSuchUser   Kind = "no_such_user"
	KindAuthFailed   Kind = "auth_failed"
	KindReservedName Kind = "reserved_name"
	KindWeakPassword Kind = "weak_password"

	// Sudo.
	KindSudoNotPermitted Kind = "sudo_not_permitted"
	KindSudoersSyntax    Kind = "sudoers_syntax"

	// Shell and command contract.
	KindParseError     Kind = "parse_error"
	KindUnknownCommand Kind = "unknown_command"
	KindInvalidFlag    Kind = "invalid_flag"
	KindBadArgCount    Kind = "bad_arg_count"
	KindBadArgValue    Kind = "bad_arg_value"

	// Runtime.
	KindAborted        Kind = "aborted"
	KindJobNotFound    Kind = "job_not_found"
	KindNotInteractive Kind = "not_interactive"

	// Persistence.
	KindStorageFailure       Kind = "storage_failure"
	KindIncompatibleSnapshot Kind = "incompatible_snapshot"
	KindChecksumMismatch     Kind = "checksum_mismatch"
)

// KernelError is the single error type used across the kernel core.
// Commands and subsystems return it; the executor renders Message (and
// Suggestion when present) to stderr.
type KernelError struct {
	Kind       Kind
	Message    string
	Suggestion string
}

func (e *KernelError) Error() string { return e.Message }

// Is matches two kernel errors by kind, enabling errors.Is with kind
// sentinels.
func (e *KernelError) Is(target error) bool {
	t, ok := target.(*KernelError)
	return ok && t.Kind == e.Kind
}

// NewError creates a kernel error of the given kind.
func NewError(kind Kind, format string, args ...interface{}) *KernelError {
	return &KernelError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithSuggestion attaches a one-line hint shown under the failure message.
func (e *KernelError) WithSuggestion(s string) *KernelError {
	e.Suggestion = s
	return e
}

// KindOf extracts the kind of an error, or empty for foreign errors.
func KindOf(err error) Kind {
	if ke, ok := err.(*KernelError); ok {
		return ke.Kind
	}
	return ""
}
