// Package lognotify writes verification codes to the process log. It is
// meant for local development where no mail relay is running.
package lognotify

import (
	"context"
	"log/slog"
)

type Notifier struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) SendOTP(ctx context.Context, email, code string) error {
	n.logger.InfoContext(ctx, "verification code issued", "email", email, "code", code)
	return nil
}
