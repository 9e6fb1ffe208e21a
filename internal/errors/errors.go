// Package errors provides the typed error kinds surfaced by the searchgrep
// core (chunker, store, retriever, synchronizer, watcher, answerer).
package errors

import "fmt"

// Kind identifies one of the error kinds surfaced by the core.
type Kind string

const (
	// ConfigMissing is raised when the embedder or chat collaborator is
	// called without the credentials it needs.
	ConfigMissing Kind = "ConfigMissing"
	// EmbedderFailure covers network errors, model load failures, and
	// embedding dimension mismatches.
	EmbedderFailure Kind = "EmbedderFailure"
	// StoreCorrupt is raised when the store file is unreadable or holds
	// invalid JSON on load.
	StoreCorrupt Kind = "StoreCorrupt"
	// StoreIOFailure is raised when a store write fails.
	StoreIOFailure Kind = "StoreIOFailure"
	// IgnoredFile is a non-error notice: a file was skipped due to a size
	// or count cap.
	IgnoredFile Kind = "IgnoredFile"
	// WatcherFailure covers platform filesystem event source failures.
	WatcherFailure Kind = "WatcherFailure"
	// NotConfigured is raised by the Answerer when no ChatPort is available.
	NotConfigured Kind = "NotConfigured"
)

// SearchgrepError is the structured error type returned by the core.
type SearchgrepError struct {
	Kind       Kind
	Message    string
	Cause      error
	Detail     map[string]string
	Suggestion string
}

func (e *SearchgrepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *SearchgrepError) Unwrap() error {
	return e.Cause
}

// Is matches another *SearchgrepError with the same Kind.
func (e *SearchgrepError) Is(target error) bool {
	t, ok := target.(*SearchgrepError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *SearchgrepError) WithDetail(key, value string) *SearchgrepError {
	if e.Detail == nil {
		e.Detail = make(map[string]string)
	}
	e.Detail[key] = value
	return e
}

// WithSuggestion attaches an actionable remediation message.
func (e *SearchgrepError) WithSuggestion(s string) *SearchgrepError {
	e.Suggestion = s
	return e
}

// New builds a SearchgrepError of the given kind.
func New(kind Kind, message string, cause error) *SearchgrepError {
	return &SearchgrepError{Kind: kind, Message: message, Cause: cause}
}

// Wrap builds a SearchgrepError from an existing error, using its message.
// Returns nil if err is nil so call sites can `return errors.Wrap(kind, err)`
// unconditionally.
func Wrap(kind Kind, err error) *SearchgrepError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// Is reports whether err is a SearchgrepError of the given kind.
func Is(err error, kind Kind) bool {
	se, ok := err.(*SearchgrepError)
	if !ok {
		return false
	}
	return se.Kind == kind
}

// KindOf extracts the Kind from an error, or "" if it is not a SearchgrepError.
func KindOf(err error) Kind {
	if se, ok := err.(*SearchgrepError); ok {
		return se.Kind
	}
	return ""
}
