package inbound

import (
	"context"
	"log/slog"

	"github.com/sirosfoundation/go-as4-gateway/internal/pull"
	"github.com/sirosfoundation/go-as4-gateway/pkg/message"
)

// LogNotifier reports reception failures to the log
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyMessageReceivedFailure logs the failure at error level.
func (n LogNotifier) NotifyMessageReceivedFailure(ctx context.Context, um *message.UserMessage, result *pull.ErrorResult) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, "message reception failed",
		"message_id", um.MessageInfo.MessageID,
		"mpc", um.Mpc,
		"error_code", result.ErrorCode,
		"error_detail", result.ErrorDetail,
		"time", result.Time)
	return nil
}
