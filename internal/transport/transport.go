// Package transport is the outbound message port. Delivery itself (Telegram,
// SMS, console) lives behind Sender; the core only emits (recipient, text).
package transport

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sender delivers one text message to one recipient. Implementations report
// success or failure per call; callers log and continue on failure.
type Sender interface {
	Send(ctx context.Context, recipientID int64, text string) error
}

var Module = fx.Module("transport",
	fx.Provide(NewLogSender),
)

// LogSender writes outbound messages to the application log. It stands in for
// a real delivery transport, which is an external collaborator.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) Sender {
	return &LogSender{log: log.Named("transport.log")}
}

func (s *LogSender) Send(_ context.Context, recipientID int64, text string) error {
	s.log.Info("outbound message", zap.Int64("recipient_id", recipientID), zap.String("text", text))
	return nil
}
