package email

import (
	"context"
	"strings"

	"membership_backend/internal/logger"
)

// LogProvider ничего не отправляет, только пишет письмо в лог.
// Используется локально, когда SMTP не настроен.
type LogProvider struct{}

func NewLogProvider() *LogProvider {
	return &LogProvider{}
}

func (p *LogProvider) Send(ctx context.Context, email *Email) error {
	logger.CtxInfo(ctx, "Email not sent (log provider)",
		"to", strings.Join(email.To, ","),
		"subject", email.Subject,
	)
	return nil
}

func (p *LogProvider) Validate() error { return nil }
func (p *LogProvider) Close() error    { return nil }
