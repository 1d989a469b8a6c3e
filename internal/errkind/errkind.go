// Package errkind classifies errors into the language-neutral error kinds
// named by the runtime's error handling design: config/dependency errors are
// fatal at startup, provider/capability errors recover via fallback chains,
// and stage/handler/action errors are converted into an apology IntentResult
// rather than propagated to the caller.
package errkind

import "errors"

// Kind is one of the error kinds named in the error handling design.
type Kind int

const (
	// Unknown is returned by Classify when err does not wrap a known kind.
	Unknown Kind = iota
	ConfigError
	DependencyError
	ProviderUnavailable
	CapabilityUnavailable
	StageTimeout
	HandlerTimeout
	HandlerError
	ActionError
	ValidationError
	TraceError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config_error"
	case DependencyError:
		return "dependency_error"
	case ProviderUnavailable:
		return "provider_unavailable"
	case CapabilityUnavailable:
		return "capability_unavailable"
	case StageTimeout:
		return "stage_timeout"
	case HandlerTimeout:
		return "handler_timeout"
	case HandlerError:
		return "handler_error"
	case ActionError:
		return "action_error"
	case ValidationError:
		return "validation_error"
	case TraceError:
		return "trace_error"
	default:
		return "unknown"
	}
}

// kindError wraps an underlying cause with a classified Kind.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() error { return e.cause }

// New wraps cause with kind so that Classify and errors.Is can recover it.
// cause may be nil.
func New(kind Kind, cause error) error {
	return &kindError{kind: kind, cause: cause}
}

// Classify returns the Kind carried by err, or Unknown if err was not
// produced by New (directly or via wrapping with fmt.Errorf's %w).
func Classify(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Unknown
}

// Is reports whether err was classified as kind.
func Is(err error, kind Kind) bool {
	return Classify(err) == kind
}
