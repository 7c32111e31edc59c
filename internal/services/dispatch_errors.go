package services

import "fmt"

// SecurityError rejects a whole batch before any item is processed
type SecurityError struct {
	Reason string
	Err    error
}

func (e *SecurityError) Error() string {
	return e.Reason
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

// ValidationError fails one item: missing record, bad address or unusable template
type ValidationError struct {
	SignatureID string
	Reason      string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// TransportError is a delivery or connection failure. The transport that produced
// it is discarded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Diagnostic is the operator-facing form stored in the notification log
func (e *TransportError) Diagnostic() string {
	if e.Op == "dial" {
		return fmt.Sprintf("connection failed: %s", e.Err)
	}
	return e.Err.Error()
}
