package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// ParseEvent разбирает тело webhook. id, type и data.object обязательны.
// Подпись проверяется отдельно, до разбора.
func ParseEvent(payload []byte) (*stripe.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: empty data.object", ErrMalformedEvent)
	}
	return &event, nil
}

// Kind - тип события для диспетчеризации
func Kind(event *stripe.Event) EventKind {
	return KindOf(string(event.Type))
}

func DecodeCheckoutSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := decodeObject(event, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func DecodePaymentIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := decodeObject(event, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func DecodeCharge(event *stripe.Event) (*stripe.Charge, error) {
	var charge stripe.Charge
	if err := decodeObject(event, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

func decodeObject(event *stripe.Event, v interface{}) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("%w: empty data.object", ErrMalformedEvent)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// IntentID - id платежа из поля, которое шлюз отдает строкой или развернутым объектом
func IntentID(intent *stripe.PaymentIntent) string {
	if intent == nil {
		return ""
	}
	return intent.ID
}

// FailureMessage - сообщение шлюза о причине отказа
func FailureMessage(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return "payment failed"
}

// BuildEvent собирает конверт события с объектом в data.object
// (события MemoryClient и тесты)
func BuildEvent(eventID, eventType string, object interface{}, at time.Time) ([]byte, error) {
	obj, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{
		"id":      eventID,
		"object":  "event",
		"type":    eventType,
		"created": at.Unix(),
		"data":    map[string]json.RawMessage{"object": obj},
	})
}
