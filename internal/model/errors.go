package model

import (
	"errors"
	"fmt"
)

var (
	ErrCommon500          error = errors.New("something went wrong. Try again later") // 500
	ErrIncorrectQuery     error = errors.New("incorrect query parameters")            // 400
	ErrIncorrectID        error = errors.New("incorrect UUID")                        // 400
	ErrOriginalNotFound   error = errors.New("specified original UUID doesn't exist") // 404
	ErrVariantNotFound    error = errors.New("specified variant UUID doesn't exist")  // 404
	ErrEmptySource        error = errors.New("empty/incorrect source image provided") // 400
	ErrUnsupportedFormat  error = errors.New("unsupported base image format")         // 400
	ErrAmbiguousVariant   error = errors.New("preset and adjustments are exclusive")  // 400
	ErrVariantDestroyed   error = errors.New("variant has been destroyed")            // 410
	ErrResourceReleased   error = errors.New("resource has been released")            // 404
	ErrResourceNotFound   error = errors.New("resource doesn't exist")                // 404
	ErrNilResourceContent error = errors.New("nil resource content")                  // 400
	ErrImageTooLarge      error = errors.New("image dimensions exceed the limit")     // 413
)

// Categories of the core error taxonomy. Typed errors below match them via errors.Is.
var (
	ErrConfiguration        = errors.New("configuration error")
	ErrUnknownPreset        = errors.New("unknown preset")
	ErrUnsupportedOperation = errors.New("operation not supported on a variant")
	ErrTransformFailed      = errors.New("transform failed")
	ErrUnreadableImage      = errors.New("unreadable image")
)

// Rules an UnsupportedOperationError can violate.
var (
	ErrSetResource   = errors.New("setting the resource on a variant is not supported")
	ErrSetTitle      = errors.New("setting the title on a variant is not supported")
	ErrAddTag        = errors.New("tagging a variant is not supported")
	ErrNestedVariant = errors.New("variants of variants are not supported")
)

// ConfigurationError reports a malformed preset or adjustment descriptor.
type ConfigurationError struct {
	Preset string
	Index  int
	Field  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "invalid adjustment"
	if e.Preset != "" {
		msg = fmt.Sprintf("preset %q", e.Preset)
	}
	if e.Index >= 0 {
		msg += fmt.Sprintf(" adjustment #%d", e.Index)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" option %q", e.Field)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

type UnknownPresetError struct {
	ID string
}

func (e *UnknownPresetError) Error() string { return fmt.Sprintf("unknown preset %q", e.ID) }

func (e *UnknownPresetError) Is(target error) bool { return target == ErrUnknownPreset }

// UnsupportedOperationError is returned by forbidden Variant mutators. Rule is one of
// ErrSetResource, ErrSetTitle, ErrAddTag, ErrNestedVariant.
type UnsupportedOperationError struct {
	Op   string
	Rule error
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Rule)
}

func (e *UnsupportedOperationError) Unwrap() error { return e.Rule }

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupportedOperation }

// TransformError is raised by the transform service. Unreadable marks a source image that could
// not be decoded, as opposed to storage or encoder failures.
type TransformError struct {
	Op         string
	Unreadable bool
	Err        error
}

func (e *TransformError) Error() string {
	kind := "transform failed"
	if e.Unreadable {
		kind = "unreadable image"
	}
	return fmt.Sprintf("%s: %s: %v", kind, e.Op, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func (e *TransformError) Is(target error) bool {
	switch target {
	case ErrTransformFailed:
		return true
	case ErrUnreadableImage:
		return e.Unreadable
	}
	return false
}

// IsUnreadable reports whether err stems from an image the transform service could not decode.
func IsUnreadable(err error) bool {
	var te *TransformError
	return errors.As(err, &te) && te.Unreadable
}
