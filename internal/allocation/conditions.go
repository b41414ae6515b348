package allocation

import (
	"errors"
	"fmt"
	"strings"
)

// Severity classifies a recorded condition.
type Severity string

// Condition severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Resource kinds used in conditions and metrics.
const (
	ResourceInstance   = "instance"
	ResourceVolume     = "volume"
	ResourceFloatingIP = "floating-ip"
)

// Condition is one per-resource failure recorded during a call.
type Condition struct {
	Severity Severity
	// Key names the step that produced the condition, e.g. "instance.create".
	Key      string
	Resource string
	ID       string
	Message  string
	Err      error
}

func (c Condition) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", c.Severity, c.Key)
	if c.ID != "" {
		fmt.Fprintf(&b, " %s %s", c.Resource, c.ID)
	}
	switch {
	case c.Message != "" && c.Err != nil:
		fmt.Fprintf(&b, ": %s: %v", c.Message, c.Err)
	case c.Err != nil:
		fmt.Fprintf(&b, ": %v", c.Err)
	case c.Message != "":
		fmt.Fprintf(&b, ": %s", c.Message)
	}
	return b.String()
}

func (c Condition) Unwrap() error {
	return c.Err
}

// Conditions accumulates per-resource failures without interrupting the
// loop that produced them. The zero value is ready to use.
type Conditions struct {
	items   []Condition
	observe func(Condition)
}

// NewConditions returns an accumulator that reports every recorded
// condition to m.
func NewConditions(m *Metrics) *Conditions {
	return &Conditions{observe: m.recordCondition}
}

// Add records an error-severity condition. A nil err is ignored.
func (c *Conditions) Add(key, resource, id string, err error) {
	if err == nil {
		return
	}
	c.record(Condition{Severity: SeverityError, Key: key, Resource: resource, ID: id, Err: err})
}

// Warn records a warning-severity condition.
func (c *Conditions) Warn(key, resource, id, message string) {
	c.record(Condition{Severity: SeverityWarning, Key: key, Resource: resource, ID: id, Message: message})
}

func (c *Conditions) record(cond Condition) {
	if c == nil {
		return
	}
	c.items = append(c.items, cond)
	if c.observe != nil {
		c.observe(cond)
	}
}

// Len returns the number of recorded conditions.
func (c *Conditions) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// HasErrors reports whether any error-severity condition was recorded.
func (c *Conditions) HasErrors() bool {
	for _, cond := range c.All() {
		if cond.Severity == SeverityError {
			return true
		}
	}
	return false
}

// All returns a copy of the recorded conditions in order.
func (c *Conditions) All() []Condition {
	if c == nil {
		return nil
	}
	out := make([]Condition, len(c.items))
	copy(out, c.items)
	return out
}

// UnrecoverableError is returned when an allocation or delete cannot be
// completed. It carries every condition recorded during the call.
type UnrecoverableError struct {
	Message    string
	Conditions []Condition
	Cause      error
}

func (e *UnrecoverableError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if n := len(e.Conditions); n > 0 {
		fmt.Fprintf(&b, " (%d condition", n)
		if n > 1 {
			b.WriteString("s")
		}
		b.WriteString(")")
		for _, c := range e.Conditions {
			b.WriteString("\n  ")
			b.WriteString(c.Error())
		}
	}
	return b.String()
}

func (e *UnrecoverableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Conditions)+1)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	for _, c := range e.Conditions {
		errs = append(errs, c)
	}
	return errs
}

func unrecoverable(cause error, conds *Conditions, format string, args ...any) *UnrecoverableError {
	return &UnrecoverableError{
		Message:    fmt.Sprintf(format, args...),
		Conditions: conds.All(),
		Cause:      cause,
	}
}

// IsUnrecoverable reports whether err is or wraps an UnrecoverableError.
func IsUnrecoverable(err error) bool {
	var ue *UnrecoverableError
	return errors.As(err, &ue)
}
