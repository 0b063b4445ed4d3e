// apperrors/errors.go
package apperrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentClaimLost is returned when another dispatcher already moved the
	// automation out of pending. Callers treat it as an expected outcome.
	ErrConcurrentClaimLost = errors.New("automation already claimed by another dispatcher")

	// ErrDispatchCancelled is recorded on recipients that were never attempted.
	ErrDispatchCancelled = errors.New("dispatch cancelled before send")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// PreconditionFailedError means an activation or dispatch was attempted before
// the automation met its requirements.
type PreconditionFailedError struct {
	AutomationID string
	Missing      []string
}

func (e *PreconditionFailedError) Error() string {
	return fmt.Sprintf("automation %s: precondition failed: missing %s",
		e.AutomationID, strings.Join(e.Missing, ", "))
}

func NewPreconditionFailed(automationID string, missing ...string) error {
	return &PreconditionFailedError{AutomationID: automationID, Missing: missing}
}

// InvalidStateError means an operation is not allowed in the automation's
// current status.
type InvalidStateError struct {
	AutomationID string
	Status       string
	Operation    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("automation %s: cannot %s while %s", e.AutomationID, e.Operation, e.Status)
}

func NewInvalidState(automationID, status, operation string) error {
	return &InvalidStateError{AutomationID: automationID, Status: status, Operation: operation}
}

// ValidationError rejects caller input before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type ExternalSendError struct {
	To  string
	Err error
}

func (e *ExternalSendError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.To, e.Err)
}

func (e *ExternalSendError) Unwrap() error { return e.Err }

type ExternalPollError struct {
	Kind string
	Ref  string
	Err  error
}

func (e *ExternalPollError) Error() string {
	return fmt.Sprintf("poll %s %s failed: %v", e.Kind, e.Ref, e.Err)
}

func (e *ExternalPollError) Unwrap() error { return e.Err }

// ExternalContractViolation is raised when a provider payload is missing a
// required field or carries a value outside the known vocabulary.
type ExternalContractViolation struct {
	Operation string
	Field     string
	Reason    string
}

func (e *ExternalContractViolation) Error() string {
	return fmt.Sprintf("provider contract violation in %s: field %q %s", e.Operation, e.Field, e.Reason)
}

func NewContractViolation(operation, field, reason string) error {
	return &ExternalContractViolation{Operation: operation, Field: field, Reason: reason}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPreconditionFailed(err error) bool {
	var target *PreconditionFailedError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsConcurrentClaimLost(err error) bool {
	return errors.Is(err, ErrConcurrentClaimLost)
}

func IsContractViolation(err error) bool {
	var target *ExternalContractViolation
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
