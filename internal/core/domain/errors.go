package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded marks a result that arrived after a newer request started.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrNoQuote is returned when execute is called without a stored quote.
	ErrNoQuote = &ValidationError{Message: "No swap quote available"}

	// ErrMissingSwapFields is the local validation failure of a quote request.
	ErrMissingSwapFields = &ValidationError{Message: "Please connect wallet, select source address, and fill all fields"}
)

// ValidationError is rejected locally before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// BackendError carries a non-success status reported by the routing backend.
type BackendError struct {
	Op      string
	Status  string
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned status %q", e.Op, e.Status)
	}
	return e.Message
}

// RetryExhaustedError is returned once every attempt of an operation failed.
type RetryExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// NoCompatibleAddressError names the chain no connected address can serve.
func NoCompatibleAddressError(chainName string) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf("No compatible address connected for %s", chainName)}
}

// SourceNotConnectedError rejects a source address the wallet does not hold
// for the chain.
func SourceNotConnectedError(address, chainName string) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf("Source address %s is not connected for %s", address, chainName)}
}

// UserMessage renders err as a dashboard message, prefixed by action.
func UserMessage(action string, err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var berr *BackendError
	if errors.As(err, &berr) {
		return fmt.Sprintf("Failed to %s: %s", action, berr.Error())
	}
	var rerr *RetryExhaustedError
	if errors.As(err, &rerr) {
		return fmt.Sprintf("Failed to %s: %v", action, rerr.Err)
	}
	return fmt.Sprintf("Failed to %s: %v", action, err)
}
