package main

import (
	"context"
	"fmt"
)

// DatabaseIdentity names a database instance in a region. It is resolved
// once from configuration and never modified afterwards.
type DatabaseIdentity struct {
	Identifier string `json:"identifier"`
	Region     string `json:"region"`
	Endpoint   string `json:"endpoint,omitempty"`
}

func (id DatabaseIdentity) String() string {
	if id.Region == "" {
		return id.Identifier
	}
	return fmt.Sprintf("%s (%s)", id.Identifier, id.Region)
}

// StatusKind classifies a status query result.
type StatusKind int

const (
	StatusAvailable StatusKind = iota
	StatusUnavailable
	StatusQueryFailed
)

func (k StatusKind) String() string {
	switch k {
	case StatusAvailable:
		return "available"
	case StatusUnavailable:
		return "unavailable"
	case StatusQueryFailed:
		return "query_failed"
	default:
		return fmt.Sprintf("StatusKind(%d)", int(k))
	}
}

func (k StatusKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *StatusKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "available":
		*k = StatusAvailable
	case "unavailable":
		*k = StatusUnavailable
	case "query_failed":
		*k = StatusQueryFailed
	default:
		return fmt.Errorf("unknown status kind %q", text)
	}
	return nil
}

// DatabaseStatus is produced fresh on every query and never cached.
// State carries the control plane's raw status string (e.g. "stopped").
type DatabaseStatus struct {
	Kind  StatusKind `json:"kind"`
	State string     `json:"state,omitempty"`
	Err   error      `json:"-"`
}

func AvailableStatus(state string) DatabaseStatus {
	return DatabaseStatus{Kind: StatusAvailable, State: state}
}

func UnavailableStatus(reason string) DatabaseStatus {
	return DatabaseStatus{Kind: StatusUnavailable, State: reason}
}

func QueryFailedStatus(err error) DatabaseStatus {
	return DatabaseStatus{Kind: StatusQueryFailed, State: "unknown", Err: err}
}

func (s DatabaseStatus) Available() bool {
	return s.Kind == StatusAvailable
}

// Describe renders the status for alert bodies.
func (s DatabaseStatus) Describe() string {
	if s.Kind == StatusQueryFailed && s.Err != nil {
		return fmt.Sprintf("status query failed: %v", s.Err)
	}
	return s.State
}

// DatabaseControlPlane abstracts the cloud control plane of one region.
//
// DescribeStatus returns an error only when the query itself could not be
// completed (transport, auth, unknown instance). A well-formed response with a
// non-available status is reported as StatusUnavailable with a nil error.
//
// PromoteReplica returns once the control plane has accepted or rejected the
// request. Promotion itself completes asynchronously.
type DatabaseControlPlane interface {
	DescribeStatus(ctx context.Context, identifier string) (DatabaseStatus, error)
	PromoteReplica(ctx context.Context, identifier string) error
}
