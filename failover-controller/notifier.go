package main

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// AlertMessage is handed to a Notifier and not retained by the controller.
type AlertMessage struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier delivers operator alerts. Send returns an error when the
// message could not be handed off to the transport.
type Notifier interface {
	Send(ctx context.Context, destination string, msg AlertMessage) error
}

// LogNotifier writes alerts to the logger instead of a real transport. It is
// used with the mock control plane for local runs and keeps what it sent.
type LogNotifier struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []AlertMessage
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, destination string, msg AlertMessage) error {
	n.logger.Warn("[LogNotifier] alert",
		zap.String("destination", destination),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	return nil
}

// Sent returns a copy of every alert passed to Send.
func (n *LogNotifier) Sent() []AlertMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]AlertMessage, len(n.sent))
	copy(out, n.sent)
	return out
}
