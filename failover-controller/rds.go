package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"go.uber.org/zap"
)

// rdsStatusAvailable is the only DBInstanceStatus treated as healthy.
const rdsStatusAvailable = "available"

var errNoInstance = errors.New("no DB instance in response")

type rdsAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	PromoteReadReplica(ctx context.Context, params *rds.PromoteReadReplicaInput, optFns ...func(*rds.Options)) (*rds.PromoteReadReplicaOutput, error)
}

// RDSControlPlane implements DatabaseControlPlane against the RDS API of a
// single region.
type RDSControlPlane struct {
	client  rdsAPI
	region  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRDSControlPlane builds a client for cfg.Region. timeout bounds each API
// call; zero leaves the caller's context untouched.
func NewRDSControlPlane(cfg aws.Config, timeout time.Duration, logger *zap.Logger) *RDSControlPlane {
	return &RDSControlPlane{
		client:  rds.NewFromConfig(cfg),
		region:  cfg.Region,
		timeout: timeout,
		logger:  logger.With(zap.String("region", cfg.Region)),
	}
}

func (c *RDSControlPlane) DescribeStatus(ctx context.Context, identifier string) (DatabaseStatus, error) {
	ctx, cancel := withCallTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(identifier),
	})
	if err != nil {
		return DatabaseStatus{}, fmt.Errorf("describe db instance %s in %s: %w", identifier, c.region, err)
	}
	if len(out.DBInstances) == 0 {
		return DatabaseStatus{}, fmt.Errorf("describe db instance %s in %s: %w", identifier, c.region, errNoInstance)
	}

	state := aws.ToString(out.DBInstances[0].DBInstanceStatus)
	c.logger.Debug("Described DB instance",
		zap.String("identifier", identifier),
		zap.String("status", state))
	if state == rdsStatusAvailable {
		return AvailableStatus(state), nil
	}
	return UnavailableStatus(state), nil
}

func (c *RDSControlPlane) PromoteReplica(ctx context.Context, identifier string) error {
	ctx, cancel := withCallTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.PromoteReadReplica(ctx, &rds.PromoteReadReplicaInput{
		DBInstanceIdentifier: aws.String(identifier),
	})
	if err != nil {
		return fmt.Errorf("promote read replica %s in %s: %w", identifier, c.region, err)
	}

	fields := []zap.Field{zap.String("identifier", identifier)}
	if out.DBInstance != nil {
		fields = append(fields, zap.String("status", aws.ToString(out.DBInstance.DBInstanceStatus)))
	}
	c.logger.Info("Read replica promotion accepted", fields...)
	return nil
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
