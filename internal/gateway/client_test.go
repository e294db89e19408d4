package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(Config{
		APIBase:       server.URL,
		SecretKey:     "sk_test_123",
		WebhookSecret: testSecret,
		Tolerance:     DefaultTolerance,
		Timeout:       2 * time.Second,
	})
}

func TestHTTPClient_CreateCheckoutSession(t *testing.T) {
	var form url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://pay.example/cs_test_1","amount_total":10000,"currency":"eur","payment_status":"unpaid","payment_intent":"pi_test_1","metadata":{"member_id":"42"}}`))
	})

	session, err := client.CreateCheckoutSession(context.Background(), CheckoutParams{
		MemberID:       42,
		MembershipType: "sponsor",
		Amount:         100,
		Currency:       "eur",
		StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		SuccessURL:     "https://members.test/ok",
		CancelURL:      "https://members.test/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, int64(10000), session.AmountTotal)
	assert.Equal(t, "pi_test_1", session.PaymentIntent)
	assert.NotEmpty(t, session.Raw)

	assert.Equal(t, "10000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "42", form.Get("metadata[member_id]"))
	assert.Equal(t, "sponsor", form.Get("metadata[membership_type]"))
	assert.Equal(t, "2026-01-01", form.Get("metadata[membership_start_date]"))
	assert.Equal(t, "2026-12-31", form.Get("metadata[membership_end_date]"))
	assert.Equal(t, "checkout", form.Get("payment_intent_data[metadata][source]"))
	assert.Equal(t, "42", form.Get("payment_intent_data[metadata][member_id]"))
	assert.Equal(t, "payment", form.Get("mode"))
}

func TestHTTPClient_GetCheckoutSession_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout session"}}`))
	})

	session, err := client.GetCheckoutSession(context.Background(), "cs_missing")
	assert.NoError(t, err)
	assert.Nil(t, session)
}

func TestHTTPClient_GetCheckoutSession_ExpandedPaymentIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
		assert.Equal(t, "payment_intent", r.URL.Query().Get("expand[0]"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_1","payment_status":"paid","amount_total":2000,"payment_intent":{"id":"pi_9","status":"succeeded"}}`))
	})

	session, err := client.GetCheckoutSession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.True(t, session.IsPaid())
	assert.Equal(t, "pi_9", session.PaymentIntent)
}

func TestHTTPClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"authentication_error","message":"Invalid API Key"}}`))
	})

	_, err := client.GetCheckoutSession(context.Background(), "cs_1")
	require.Error(t, err)

	var stripeErr *stripe.Error
	require.ErrorAs(t, err, &stripeErr)
	assert.Equal(t, http.StatusUnauthorized, stripeErr.HTTPStatusCode)
	assert.Equal(t, "Invalid API Key", stripeErr.Msg)
}

func TestHTTPClient_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetCheckoutSession(ctx, "cs_slow")
	assert.Error(t, err)
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"id":"evt_1","type":"charge.refunded","data":{"object":{"id":"ch_1","payment_intent":"pi_1"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventChargeRefunded, Kind(event))

	charge, err := DecodeCharge(event)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", IntentID(charge.PaymentIntent))

	failed, err := ParseEvent([]byte(`{"id":"evt_2","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","last_payment_error":{"message":"Your card was declined."}}}}`))
	require.NoError(t, err)
	intent, err := DecodePaymentIntent(failed)
	require.NoError(t, err)
	assert.Equal(t, "Your card was declined.", FailureMessage(intent))

	_, err = ParseEvent([]byte(`{"type":"x"}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = ParseEvent([]byte(`{"id":"evt_3","type":"x"}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestMemoryClient_Flow(t *testing.T) {
	client := NewMemoryClient(testSecret)
	ctx := context.Background()

	session, err := client.CreateCheckoutSession(ctx, CheckoutParams{MemberID: 7, MembershipType: "basic", Amount: 20, Currency: "eur"})
	require.NoError(t, err)
	assert.False(t, session.IsPaid())
	assert.Equal(t, "7", session.Metadata[MetaMemberID])

	require.NoError(t, client.MarkPaid(session.ID))
	fetched, err := client.GetCheckoutSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsPaid())

	payload, err := client.CompletedEvent("evt_mem_1", session.ID)
	require.NoError(t, err)
	assert.NoError(t, client.VerifyWebhookSignature(payload, client.SignedHeader(payload)))

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	completed, err := DecodeCheckoutSession(event)
	require.NoError(t, err)
	assert.Equal(t, session.PaymentIntent, IntentID(completed.PaymentIntent))
	assert.Equal(t, "7", completed.Metadata[MetaMemberID])

	_, err = client.CreateCheckoutSession(ctx, CheckoutParams{MemberID: 7, Amount: 0})
	var stripeErr *stripe.Error
	assert.ErrorAs(t, err, &stripeErr)

	missing, err := client.GetCheckoutSession(ctx, "cs_unknown")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
