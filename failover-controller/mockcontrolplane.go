package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MockControlPlane is used for development and testing. It logs all
// operations, reports scripted statuses and records promotions without
// making any real API calls.
//
// A second promotion of the same instance is rejected, the way a real
// control plane rejects promoting an instance that is no longer a replica.
type MockControlPlane struct {
	region string
	logger *zap.Logger

	mu       sync.Mutex
	statuses map[string]string
	promoted map[string]bool
	// describeErr and promoteErr, when set, fail every matching call.
	describeErr error
	promoteErr  error
	describes   []string
	promotions  []string
}

func NewMockControlPlane(region string, logger *zap.Logger) *MockControlPlane {
	return &MockControlPlane{
		region:   region,
		logger:   logger.With(zap.String("region", region)),
		statuses: make(map[string]string),
		promoted: make(map[string]bool),
	}
}

// SetStatus scripts the raw status reported for identifier.
func (m *MockControlPlane) SetStatus(identifier, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[identifier] = status
}

// FailDescribe makes every DescribeStatus call return err (nil to reset).
func (m *MockControlPlane) FailDescribe(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeErr = err
}

// FailPromote makes every PromoteReplica call return err (nil to reset).
func (m *MockControlPlane) FailPromote(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoteErr = err
}

func (m *MockControlPlane) DescribeStatus(ctx context.Context, identifier string) (DatabaseStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("[MockControlPlane] DescribeStatus", zap.String("identifier", identifier))
	m.describes = append(m.describes, identifier)
	if m.describeErr != nil {
		return DatabaseStatus{}, m.describeErr
	}
	status, ok := m.statuses[identifier]
	if !ok {
		return DatabaseStatus{}, fmt.Errorf("db instance %s not found in %s", identifier, m.region)
	}
	if status == rdsStatusAvailable {
		return AvailableStatus(status), nil
	}
	return UnavailableStatus(status), nil
}

func (m *MockControlPlane) PromoteReplica(ctx context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("[MockControlPlane] PromoteReplica", zap.String("identifier", identifier))
	m.promotions = append(m.promotions, identifier)
	if m.promoteErr != nil {
		return m.promoteErr
	}
	if m.promoted[identifier] {
		return fmt.Errorf("db instance %s is not a read replica", identifier)
	}
	m.promoted[identifier] = true
	return nil
}

// Describes returns the identifiers passed to DescribeStatus, in order.
func (m *MockControlPlane) Describes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.describes...)
}

// Promotions returns the identifiers passed to PromoteReplica, in order.
func (m *MockControlPlane) Promotions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.promotions...)
}
