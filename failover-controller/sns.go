package main

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
)

// SNS rejects subjects longer than this.
const maxSNSSubjectLen = 100

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes alerts to an SNS topic. The destination passed to
// Send is the topic ARN.
type SNSNotifier struct {
	client  snsAPI
	timeout time.Duration
	logger  *zap.Logger
}

func NewSNSNotifier(cfg aws.Config, timeout time.Duration, logger *zap.Logger) *SNSNotifier {
	return &SNSNotifier{
		client:  sns.NewFromConfig(cfg),
		timeout: timeout,
		logger:  logger,
	}
}

func (n *SNSNotifier) Send(ctx context.Context, destination string, msg AlertMessage) error {
	ctx, cancel := withCallTimeout(ctx, n.timeout)
	defer cancel()

	subject := truncateSubject(msg.Subject, maxSNSSubjectLen)

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(destination),
		Subject:  aws.String(subject),
		Message:  aws.String(msg.Body),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", destination, err)
	}
	n.logger.Debug("SNS alert published",
		zap.String("topic", destination),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// truncateSubject cuts s to at most limit bytes without splitting a rune.
func truncateSubject(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
