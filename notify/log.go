package notify

import (
	"context"
	"log/slog"

	goVerify "github.com/MrEthical07/goVerify"
)

// LogNotifier reports every message as delivered and logs its channel and
// destination. For development only.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, msg goVerify.Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "verification message suppressed",
		slog.String("channel", msg.Channel.String()),
		slog.String("destination", msg.Destination),
		slog.String("subject", msg.Subject),
	)
	return nil
}
