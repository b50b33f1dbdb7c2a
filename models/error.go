package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures the client can surface
type ErrorKind string

// Error kinds
const (
	KindValidation     ErrorKind = "validation"
	KindRemote         ErrorKind = "remote"
	KindTimeout        ErrorKind = "timeout"
	KindNotFound       ErrorKind = "not_found"
	KindInitialization ErrorKind = "initialization"
	KindBusy           ErrorKind = "busy"
)

// Error carries a classified failure. Message, Code, Details and Hint mirror the
// backend's error payload for remote failures; Status is the transport status code.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Status  int       `json:"status,omitempty"`
	Details string    `json:"details,omitempty"`
	Hint    string    `json:"hint,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind so errors.Is(err, ErrTimeout) works for any
// timeout regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrTimeout        = &Error{Kind: KindTimeout}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrNotInitialized = &Error{Kind: KindInitialization}
	ErrActionInFlight = &Error{Kind: KindBusy}
)

// NewValidationError builds an error that blocks submission before any remote call.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf returns the kind of err, defaulting to remote for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRemote
}

var kindMessages = map[ErrorKind]string{
	KindBusy:           "Please wait for the current action to finish.",
	KindTimeout:        "The backend did not respond in time.",
	KindNotFound:       "Not found.",
	KindInitialization: "Backend not initialized. Try reloading the page.",
}

// overridesFallback lists the kinds whose message replaces an action's fallback text.
var overridesFallback = map[ErrorKind]bool{
	KindBusy:           true,
	KindTimeout:        true,
	KindInitialization: true,
}

// UserMessage returns the text shown to the user for err: its own message, else the
// kind's message for busy, timeout and initialization failures, else the fallback,
// else a default for its kind.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if m, ok := kindMessages[e.Kind]; ok && (fallback == "" || overridesFallback[e.Kind]) {
			return m
		}
	}
	if fallback == "" && err != nil {
		return err.Error()
	}
	return fallback
}

// Describe renders every diagnostic field of err on separate lines.
func Describe(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "message: %s", e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, "\ncode: %s", e.Code)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, "\nstatus: %d", e.Status)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, "\ndetails: %s", e.Details)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "\nhint: %s", e.Hint)
	}
	return b.String()
}
