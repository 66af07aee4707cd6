package domain

import (
	"errors"
	"fmt"
)

// ErrNoLiquidity is returned (wrapped) by a Swapper when no pool or route exists
// for the requested pair. Callers on non-production networks fall back to a
// synthetic swap when they see it.
var ErrNoLiquidity = errors.New("no liquidity for token pair")

// PolicyViolation is a business-rule rejection of a correctly proposed action
type PolicyViolation struct {
	Rule   string
	Reason string
}

func (e *PolicyViolation) Error() string {
	return e.Reason
}

// NewPolicyViolation builds a PolicyViolation with a formatted reason
func NewPolicyViolation(rule, format string, args ...interface{}) *PolicyViolation {
	return &PolicyViolation{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// IsPolicyViolation reports whether err is or wraps a PolicyViolation
func IsPolicyViolation(err error) bool {
	var pv *PolicyViolation
	return errors.As(err, &pv)
}

// SandboxError reports a failed self-modification stage. The file system has
// already been rolled back when this error is returned.
type SandboxError struct {
	Stage string
	Err   error
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("sandbox %s failed: %v", e.Stage, e.Err)
}

func (e *SandboxError) Unwrap() error {
	return e.Err
}

// ErrCorruptDocument is returned when the persisted state document exists but
// cannot be parsed
var ErrCorruptDocument = errors.New("state document is corrupt")

// ErrVersionConflict is returned by a conditional save when another writer
// persisted the document since it was loaded
var ErrVersionConflict = errors.New("state document version conflict")
