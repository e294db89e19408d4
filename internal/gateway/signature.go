package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrSignatureInvalid - подпись отсутствует, повреждена, не совпала или устарела
var ErrSignatureInvalid = errors.New("webhook signature invalid")

const DefaultTolerance = 300 * time.Second

// VerifySignature проверяет заголовок t=...,v1=... Совпасть может любая из v1
// (при ротации секрета шлюз шлет несколько подписей).
func VerifySignature(secret string, payload []byte, header string, tolerance time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: webhook secret is not configured", ErrSignatureInvalid)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, header, secret, tolerance); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// SignatureHeader подписывает тело так же, как шлюз (локальная отправка событий и тесты)
func SignatureHeader(secret string, payload []byte, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return signed.Header
}
