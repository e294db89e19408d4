package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"membership_backend/internal/email"
	"membership_backend/internal/models"
	"membership_backend/internal/services/dto"
	"membership_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPayment_CheckoutConfirmAndWebhook - полный путь: checkout -> оплата -> подтверждение -> webhook
func TestPayment_CheckoutConfirmAndWebhook(t *testing.T) {
	ts := helpers.NewTestServer(t)
	member, token := newMember(t, ts)

	// 1. Создание checkout-сессии
	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/checkout", token, map[string]interface{}{
		"membership_type": "sponsor",
		"amount":          100,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	var checkout dto.CheckoutResponse
	require.NoError(t, json.Unmarshal([]byte(body), &checkout))
	assert.Equal(t, "sponsor", checkout.MembershipType)
	assert.NotEmpty(t, checkout.CheckoutURL)
	t.Logf("ОПЛАТА: сессия создана, ID: %s", checkout.SessionID)

	// 2. Подтверждение до оплаты отклоняется
	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/checkout/confirm", token, map[string]string{"session_id": checkout.SessionID})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// 3. Участник оплатил, браузер вернулся без сессии
	require.NoError(t, ts.Gateway.MarkPaid(checkout.SessionID))
	res, body = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/checkout/confirm", "", map[string]string{"session_id": checkout.SessionID})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"membership_type":"sponsor"`)
	t.Logf("ОПЛАТА: POST /checkout/confirm (200) - Успешно.")

	// 4. Webhook приходит позже и ничего не дублирует
	payload, err := ts.Gateway.CompletedEvent("evt_flow_1", checkout.SessionID)
	require.NoError(t, err)
	res, body = ts.SendWebhook(t, payload, ts.Gateway.SignedHeader(payload))
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Contains(t, body, `"received":true`)

	res, body = ts.SendWebhook(t, payload, ts.Gateway.SignedHeader(payload))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "already processed")

	assert.Equal(t, []string{
		email.TemplateWelcome, email.TemplatePaymentConfirmation, email.TemplateSponsorTaxReceipt,
	}, helpers.QueuedTemplates(t, ts.DB))
	assert.Len(t, ts.Mailer.Sent(), 3)

	reloaded := helpers.ReloadMember(t, ts.DB, member.ID)
	assert.Equal(t, models.PaymentStatusPaid, reloaded.PaymentStatus)
	assert.Equal(t, models.MembershipTypeSponsor, reloaded.MembershipType)
	t.Logf("ОПЛАТА: webhook идемпотентен, писем: %d", len(ts.Mailer.Sent()))
}

func TestPayment_CheckoutValidation(t *testing.T) {
	ts := helpers.NewTestServer(t)
	_, token := newMember(t, ts)

	res, _ := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/checkout", "", map[string]string{"membership_type": "basic"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, "checkout требует сессию")

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/payments/checkout", token, map[string]string{"membership_type": "gold"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, body)

	res, body = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/checkout", token, map[string]interface{}{
		"membership_type": "sponsor",
		"amount":          15,
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, "below the minimum")

	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/payments/checkout/confirm", token, map[string]string{"session_id": "cs_missing"})
	assert.NotEqual(t, http.StatusOK, res.StatusCode)
}

func TestWebhook_HTTPStatuses(t *testing.T) {
	ts := helpers.NewTestServer(t)
	member, _ := newMember(t, ts)

	session, err := ts.Gateway.CreateCheckoutSession(context.Background(), gatewayParams(member.ID))
	require.NoError(t, err)
	require.NoError(t, ts.Gateway.MarkPaid(session.ID))
	payload, err := ts.Gateway.CompletedEvent("evt_http_1", session.ID)
	require.NoError(t, err)

	res, _ := ts.SendWebhook(t, payload, "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, "без подписи")

	res, _ = ts.SendWebhook(t, payload, "t=1,v1=00")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, "неверная подпись")

	res, _ = ts.SendWebhook(t, []byte(`{"broken"`), ts.Gateway.SignedHeader([]byte(`{"broken"`)))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/payments/webhook", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	res, body := ts.SendWebhook(t, payload, ts.Gateway.SignedHeader(payload))
	assert.Equal(t, http.StatusOK, res.StatusCode, body)
}

func TestWebhook_HandlerFailureReturns500(t *testing.T) {
	ts := helpers.NewTestServer(t)

	session, err := ts.Gateway.CreateCheckoutSession(context.Background(), gatewayParams(4040))
	require.NoError(t, err)
	require.NoError(t, ts.Gateway.MarkPaid(session.ID))
	payload, err := ts.Gateway.CompletedEvent("evt_http_missing", session.ID)
	require.NoError(t, err)

	res, body := ts.SendWebhook(t, payload, ts.Gateway.SignedHeader(payload))
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, body, "HANDLER_FAILED")

	// шлюз повторит доставку, когда участник появится
	helpers.CreateMember(t, ts.DB, helpers.WithID(4040))
	res, _ = ts.SendWebhook(t, payload, ts.Gateway.SignedHeader(payload))
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestHealthAndRouting(t *testing.T) {
	ts := helpers.NewTestServer(t)

	for _, path := range []string{"/ping", "/api/v1/ping"} {
		res, body := ts.SendRequest(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.JSONEq(t, `{"status":"ok"}`, body)
	}

	res, _ := ts.SendRequest(t, http.MethodGet, "/api/v1/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}
