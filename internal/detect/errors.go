package detect

import (
	"errors"
	"fmt"
)

// Sentinel kinds for Client.Detect failures. Match them with errors.Is.
var (
	ErrUpload            = errors.New("upload failed")
	ErrProcessingFailed  = errors.New("remote processing failed")
	ErrTimeout           = errors.New("timed out waiting for asset")
	ErrService           = errors.New("detection service error")
	ErrMalformedResponse = errors.New("malformed detection response")
)

// Error carries the failure kind together with the asset and the cause.
type Error struct {
	Kind  error
	Asset string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("detect %s: %v", e.Asset, e.Kind)
	}
	return fmt.Sprintf("detect %s: %v: %v", e.Asset, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Class is the adapter's verdict on a failed remote call.
type Class int

const (
	ClassPermanent Class = iota
	ClassUnavailable
	ClassRateLimited
)

func (c Class) String() string {
	switch c {
	case ClassUnavailable:
		return "unavailable"
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "permanent"
	}
}

// Transient reports whether a call failing with c is worth retrying.
func (c Class) Transient() bool {
	return c == ClassUnavailable || c == ClassRateLimited
}

// CallError is returned by Service implementations so the retry policy never
// has to look at message text.
type CallError struct {
	Class Class
	Err   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// ClassOf returns the class attached to err, or ClassPermanent when the
// adapter did not classify it.
func ClassOf(err error) Class {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassPermanent
}
