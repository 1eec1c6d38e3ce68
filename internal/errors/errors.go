// Package errors provides centralized error handling with component and
// category metadata for the livecore runtime.
package errors

import (
	stderrors "errors"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryQueue         ErrorCategory = "event-queue"
	CategoryTempoSync     ErrorCategory = "tempo-sync"
	CategoryAudioBackend  ErrorCategory = "audio-backend"
	CategoryMIDI          ErrorCategory = "midi"
	CategoryPlayback      ErrorCategory = "playback"
	CategoryLiveLoop      ErrorCategory = "live-loop"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryState         ErrorCategory = "state"
	CategoryLimit         ErrorCategory = "limit"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryGeneric       ErrorCategory = "generic"
)

// Sentinel errors for the recoverable failure modes of the core. Callers
// match these with errors.Is; none of them escalate to process termination.
var (
	// ErrQueueFull is returned by a rejected push. The producer decides
	// whether to drop, retry or log.
	ErrQueueFull = NewStd("event queue full")

	// ErrAlreadyInitialized reports lifecycle misuse on a second init.
	ErrAlreadyInitialized = NewStd("already initialized")

	// ErrNotInitialized reports use before init.
	ErrNotInitialized = NewStd("not initialized")

	// ErrNoFreeSlots reports playback pool exhaustion.
	ErrNoFreeSlots = NewStd("no free playback slots")

	// ErrBackendUnavailable reports that a requested audio backend could
	// not be enabled. Routing falls through to the next priority backend.
	ErrBackendUnavailable = NewStd("audio backend unavailable")
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	component string         // Component where error occurred (lazily detected)
	Category  ErrorCategory  // Error category for better grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	mu        sync.RWMutex
	detected  bool
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name, detecting it lazily if needed
func (ee *EnhancedError) GetComponent() string {
	ee.mu.RLock()
	if ee.detected || ee.component != "" {
		component := ee.component
		ee.mu.RUnlock()
		return component
	}
	ee.mu.RUnlock()

	ee.mu.Lock()
	defer ee.mu.Unlock()

	if ee.component == "" && !ee.detected {
		ee.component = detectComponent()
		ee.detected = true
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
	}

	return ee.component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}

	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetTimestamp returns when the error occurred
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{
		err:      err,
		category: CategoryGeneric,
	}
}

// Newf creates a new error builder from a message string
func Newf(text string) *ErrorBuilder {
	return New(NewStd(text))
}

// Component sets the component explicitly instead of relying on detection
func (b *ErrorBuilder) Component(component string) *ErrorBuilder {
	b.component = component
	return b
}

// Category sets the error category
func (b *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	b.category = category
	return b
}

// Context adds a key-value pair to the error context
func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build creates the EnhancedError
func (b *ErrorBuilder) Build() *EnhancedError {
	return &EnhancedError{
		Err:       b.err,
		component: b.component,
		Category:  b.category,
		Context:   b.context,
		Timestamp: time.Now(),
	}
}

// componentRegistry maps function-name substrings to component names.
var componentRegistry = map[string]string{
	"internal/events":   "events",
	"internal/tempo":    "tempo",
	"internal/router":   "router",
	"internal/playback": "playback",
	"internal/liveloop": "liveloop",
	"internal/conf":     "conf",
	"internal/export":   "export",
	"internal/core":     "core",
}

// detectComponent walks the call stack looking for a known package
func detectComponent() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		funcName := frame.Function

		// Skip this package's own frames
		if strings.Contains(funcName, "github.com/livecore-audio/livecore/internal/errors") {
			if !more {
				break
			}
			continue
		}

		for pattern, component := range componentRegistry {
			if strings.Contains(funcName, pattern) {
				return component
			}
		}

		if !more {
			break
		}
	}

	return ComponentUnknown
}

// Standard library passthrough functions
// These allow this package to be a drop-in replacement for the standard errors package

// NewStd creates a new standard error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target (passthrough to standard library)
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target (passthrough to standard library)
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err (passthrough to standard library)
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors (passthrough to standard library)
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error is an EnhancedError with the specified category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}
