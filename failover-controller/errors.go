package main

import (
	"errors"
	"fmt"
)

var (
	// ErrParameterNotFound is returned by a ConfigSource for a missing key.
	ErrParameterNotFound = errors.New("parameter not found")
	// ErrAccessDenied is returned by a ConfigSource when the caller may not
	// read or decrypt a key.
	ErrAccessDenied = errors.New("access denied")
)

// ConfigError means the failover configuration could not be materialized.
// It is fatal for the invocation: no checks run and no alert is sent.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: parameter %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// QueryFailedError means a status query could not be completed.
type QueryFailedError struct {
	Identity DatabaseIdentity
	Err      error
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("describe status of %s: %v", e.Identity, e.Err)
}

func (e *QueryFailedError) Unwrap() error { return e.Err }

// PromotionRejectedError means the control plane refused the promotion call.
type PromotionRejectedError struct {
	Identity DatabaseIdentity
	Err      error
}

func (e *PromotionRejectedError) Error() string {
	return fmt.Sprintf("promote replica %s: %v", e.Identity, e.Err)
}

func (e *PromotionRejectedError) Unwrap() error { return e.Err }

// DeliveryFailedError means an alert could not be handed to the transport.
type DeliveryFailedError struct {
	Destination string
	Err         error
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("deliver alert to %s: %v", e.Destination, e.Err)
}

func (e *DeliveryFailedError) Unwrap() error { return e.Err }
