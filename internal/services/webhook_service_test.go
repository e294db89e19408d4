package services_test

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"membership_backend/internal/config"
	"membership_backend/internal/email"
	"membership_backend/internal/gateway"
	"membership_backend/internal/models"
	"membership_backend/internal/services/dto"
	"membership_backend/internal/utils"
	"membership_backend/pkg/apperrors"
	"membership_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_SponsorPaymentQueuesEmailsOnce(t *testing.T) {
	f := newFixture(t)
	member := helpers.CreateMember(t, f.db, helpers.WithID(42))

	sessionID := f.paidSession(t, member.ID, "sponsor", 100)
	payload := f.completedEvent(t, "evt_sponsor_1", sessionID)

	result, err := f.deliver(payload)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, gateway.TypeCheckoutCompleted, result.EventType)

	expected := []string{email.TemplateWelcome, email.TemplatePaymentConfirmation, email.TemplateSponsorTaxReceipt}
	assert.Equal(t, expected, helpers.QueuedTemplates(t, f.db))
	assert.Len(t, f.mailer.Sent(), 3, "письма отправляются сразу после коммита")

	reloaded := helpers.ReloadMember(t, f.db, member.ID)
	assert.Equal(t, models.MembershipTypeSponsor, reloaded.MembershipType)
	assert.Equal(t, models.PaymentStatusPaid, reloaded.PaymentStatus)
	assert.Equal(t, 100.0, reloaded.PaymentAmount)
	require.NotNil(t, reloaded.MembershipEndDate)
	assert.Equal(t, "2026-12-31", utils.FormatDate(*reloaded.MembershipEndDate))

	// повторные доставки того же события
	for i := 0; i < 3; i++ {
		result, err = f.deliver(payload)
		require.NoError(t, err)
		assert.True(t, result.AlreadyProcessed)
	}

	// другое событие той же сессии: состояние то же, писем нет
	result, err = f.deliver(f.completedEvent(t, "evt_sponsor_2", sessionID))
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, expected, helpers.QueuedTemplates(t, f.db))

	var completed int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("gateway_ref = ? AND status = ?", sessionID, models.TransactionStatusCompleted).
		Count(&completed).Error)
	assert.Equal(t, int64(1), completed)
}

func TestWebhook_SecondPaymentHasNoWelcome(t *testing.T) {
	f := newFixture(t)
	member := helpers.CreateMember(t, f.db)

	_, err := f.deliver(f.completedEvent(t, "evt_first", f.paidSession(t, member.ID, "basic", 20)))
	require.NoError(t, err)
	_, err = f.deliver(f.completedEvent(t, "evt_second", f.paidSession(t, member.ID, "basic", 20)))
	require.NoError(t, err)

	assert.Equal(t, []string{
		email.TemplateWelcome, email.TemplatePaymentConfirmation,
		email.TemplatePaymentConfirmation,
	}, helpers.QueuedTemplates(t, f.db))
}

func TestWebhook_RefundedFirstPaymentStillCountsAsHistory(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Payments.RefundPolicy = "revoke" })
	member := helpers.CreateMember(t, f.db)

	first := f.paidSession(t, member.ID, "basic", 20)
	_, err := f.deliver(f.completedEvent(t, "evt_first", first))
	require.NoError(t, err)
	_, err = f.deliver(refundEvent(t, f, "evt_refund", first))
	require.NoError(t, err)

	_, err = f.deliver(f.completedEvent(t, "evt_second", f.paidSession(t, member.ID, "basic", 20)))
	require.NoError(t, err)

	assert.Equal(t, []string{
		email.TemplateWelcome, email.TemplatePaymentConfirmation,
		email.TemplatePaymentConfirmation,
	}, helpers.QueuedTemplates(t, f.db))
}

func TestWebhook_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webhooks := f.svc.WebhookService

	payload := f.completedEvent(t, "evt_bad", f.paidSession(t, helpers.CreateMember(t, f.db).ID, "basic", 20))

	t.Run("неверная подпись", func(t *testing.T) {
		_, err := webhooks.HandleWebhook(ctx, f.db, payload, "t=1700000000,v1=deadbeef")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
		assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
	})

	t.Run("пустое тело", func(t *testing.T) {
		_, err := webhooks.HandleWebhook(ctx, f.db, nil, f.gw.SignedHeader(nil))
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
	})

	t.Run("не JSON", func(t *testing.T) {
		_, err := f.deliver([]byte("not json"))
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
	})

	var events int64
	require.NoError(t, f.db.Model(&models.WebhookEvent{}).Count(&events).Error)
	assert.Zero(t, events, "отклоненные запросы не попадают в журнал")
	assert.Empty(t, helpers.QueuedTemplates(t, f.db))
}

func TestWebhook_UnknownTypeIsRecorded(t *testing.T) {
	f := newFixture(t)

	payload, err := gateway.BuildEvent("evt_customer", "customer.created", map[string]string{"id": "cus_1"}, time.Now())
	require.NoError(t, err)

	result, err := f.deliver(payload)
	require.NoError(t, err)
	assert.Equal(t, "processed", result.Message)

	var event models.WebhookEvent
	require.NoError(t, f.db.First(&event, "id = ?", "evt_customer").Error)
	assert.True(t, event.Processed)
}

func TestWebhook_HandlerFailureIsRetriedOnRedelivery(t *testing.T) {
	f := newFixture(t)

	sessionID := f.paidSession(t, 999, "basic", 20)
	payload := f.completedEvent(t, "evt_missing_member", sessionID)

	_, err := f.deliver(payload)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeHandlerFailed, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPCode)

	var event models.WebhookEvent
	require.NoError(t, f.db.First(&event, "id = ?", "evt_missing_member").Error)
	assert.False(t, event.Processed)
	assert.NotEmpty(t, event.ErrorMessage)

	// транзакция откатилась вместе с обработчиком
	var transactions int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&transactions).Error)
	assert.Zero(t, transactions)

	helpers.CreateMember(t, f.db, helpers.WithID(999))

	result, err := f.deliver(payload)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)

	require.NoError(t, f.db.First(&event, "id = ?", "evt_missing_member").Error)
	assert.True(t, event.Processed)
	assert.Equal(t, 2, event.Attempts)
	assert.Equal(t, []string{email.TemplateWelcome, email.TemplatePaymentConfirmation}, helpers.QueuedTemplates(t, f.db))
}

func TestWebhook_MissingMetadataFails(t *testing.T) {
	f := newFixture(t)
	f.gw.PutSession(gateway.CheckoutSession{
		ID:            "cs_no_meta",
		AmountTotal:   2000,
		Currency:      "eur",
		PaymentStatus: "paid",
		Metadata:      map[string]string{},
	})

	_, err := f.deliver(f.completedEvent(t, "evt_no_meta", "cs_no_meta"))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))
}

func refundEvent(t *testing.T, f *fixture, eventID, sessionID string) []byte {
	t.Helper()
	session, err := f.gw.GetCheckoutSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, session)

	payload, err := gateway.BuildEvent(eventID, gateway.TypeChargeRefunded, map[string]interface{}{
		"id":              "ch_" + eventID,
		"amount":          session.AmountTotal,
		"amount_refunded": session.AmountTotal,
		"payment_intent":  session.PaymentIntent,
		"refunded":        true,
	}, time.Now())
	require.NoError(t, err)
	return payload
}

func TestWebhook_RefundPolicies(t *testing.T) {
	t.Run("manual", func(t *testing.T) {
		f := newFixture(t)
		member := helpers.CreateMember(t, f.db)
		sessionID := f.paidSession(t, member.ID, "basic", 20)
		_, err := f.deliver(f.completedEvent(t, "evt_paid", sessionID))
		require.NoError(t, err)

		_, err = f.deliver(refundEvent(t, f, "evt_refund", sessionID))
		require.NoError(t, err)

		var tx models.Transaction
		require.NoError(t, f.db.First(&tx, "gateway_ref = ?", sessionID).Error)
		assert.Equal(t, models.TransactionStatusRefunded, tx.Status)
		assert.Equal(t, models.PaymentStatusPaid, helpers.ReloadMember(t, f.db, member.ID).PaymentStatus)
	})

	t.Run("revoke", func(t *testing.T) {
		f := newFixture(t, func(cfg *config.Config) { cfg.Payments.RefundPolicy = "revoke" })
		member := helpers.CreateMember(t, f.db)
		sessionID := f.paidSession(t, member.ID, "basic", 20)
		_, err := f.deliver(f.completedEvent(t, "evt_paid", sessionID))
		require.NoError(t, err)

		_, err = f.deliver(refundEvent(t, f, "evt_refund", sessionID))
		require.NoError(t, err)

		reloaded := helpers.ReloadMember(t, f.db, member.ID)
		assert.Equal(t, models.PaymentStatusUnpaid, reloaded.PaymentStatus)
		require.NotNil(t, reloaded.MembershipEndDate)
		assert.Equal(t, utils.FormatDate(utils.DateOf(time.Now())), utils.FormatDate(*reloaded.MembershipEndDate))

		// completed после refunded не возвращается
		_, err = f.deliver(f.completedEvent(t, "evt_paid_again", sessionID))
		require.NoError(t, err)
		var tx models.Transaction
		require.NoError(t, f.db.First(&tx, "gateway_ref = ?", sessionID).Error)
		assert.Equal(t, models.TransactionStatusRefunded, tx.Status)
		assert.Equal(t, models.PaymentStatusUnpaid, helpers.ReloadMember(t, f.db, member.ID).PaymentStatus)
	})
}

func TestWebhook_PaymentFailedWithoutLocalTransaction(t *testing.T) {
	f := newFixture(t)

	payload, err := gateway.BuildEvent("evt_failed", gateway.TypePaymentFailed, map[string]interface{}{
		"id":                 "pi_unknown",
		"amount":             2000,
		"last_payment_error": map[string]string{"message": "card declined"},
	}, time.Now())
	require.NoError(t, err)

	result, err := f.deliver(payload)
	require.NoError(t, err)
	assert.Equal(t, "processed", result.Message)
}

func TestWebhook_ConfirmAndWebhookRaceSendOneSet(t *testing.T) {
	f := newFixture(t)
	member := helpers.CreateMember(t, f.db)
	sessionID := f.paidSession(t, member.ID, "basic", 20)
	payload := f.completedEvent(t, "evt_race", sessionID)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.deliver(payload)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := f.svc.CheckoutService.ConfirmCheckout(context.Background(), f.db, sessionID, &member.ID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, []string{email.TemplateWelcome, email.TemplatePaymentConfirmation}, helpers.QueuedTemplates(t, f.db))
	assert.Len(t, f.mailer.Sent(), 2)
}

// intentEvent - событие payment_intent.* платежа checkout-сессии участника
func intentEvent(t *testing.T, eventID, eventType, intentID string, memberID uint, fields map[string]interface{}) []byte {
	t.Helper()
	object := map[string]interface{}{
		"id":       intentID,
		"amount":   5000,
		"currency": "eur",
		"metadata": map[string]string{
			gateway.MetaMemberID: strconv.FormatUint(uint64(memberID), 10),
			gateway.MetaSource:   gateway.SourceCheckout,
		},
	}
	for k, v := range fields {
		object[k] = v
	}
	payload, err := gateway.BuildEvent(eventID, eventType, object, time.Now())
	require.NoError(t, err)
	return payload
}

// startCheckout создает сессию через сервис (с локальной pending-транзакцией)
func startCheckout(t *testing.T, f *fixture, memberID uint) *gateway.CheckoutSession {
	t.Helper()
	resp, err := f.svc.CheckoutService.CreateCheckout(context.Background(), f.db, memberID,
		&dto.CreateCheckoutRequest{MembershipType: "sponsor", Amount: amount(50)})
	require.NoError(t, err)
	session, err := f.gw.GetCheckoutSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	return session
}

func loadTx(t *testing.T, f *fixture, ref string) models.Transaction {
	t.Helper()
	var tx models.Transaction
	require.NoError(t, f.db.First(&tx, "gateway_ref = ?", ref).Error)
	return tx
}

func TestWebhook_PaymentSucceededForCompletedCheckoutChangesNothing(t *testing.T) {
	f := newFixture(t)
	member := helpers.CreateMember(t, f.db)
	sessionID := f.paidSession(t, member.ID, "basic", 20)
	_, err := f.deliver(f.completedEvent(t, "evt_paid", sessionID))
	require.NoError(t, err)

	session, err := f.gw.GetCheckoutSession(context.Background(), sessionID)
	require.NoError(t, err)
	before := helpers.ReloadMember(t, f.db, member.ID)

	result, err := f.deliver(intentEvent(t, "evt_pi_ok", gateway.TypePaymentSucceeded, session.PaymentIntent, member.ID,
		map[string]interface{}{"amount": 2000, "amount_received": 2000}))
	require.NoError(t, err)
	assert.Equal(t, "processed", result.Message)

	after := helpers.ReloadMember(t, f.db, member.ID)
	assert.Equal(t, before.PaymentAmount, after.PaymentAmount)
	assert.Equal(t, before.MembershipEndDate, after.MembershipEndDate)
	assert.Equal(t, before.LastPaymentDate, after.LastPaymentDate)

	var transactions int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&transactions).Error)
	assert.Equal(t, int64(1), transactions, "платеж checkout не становится зачислением")
	assert.Equal(t, models.TransactionStatusCompleted, loadTx(t, f, sessionID).Status)
	assert.Equal(t, []string{email.TemplateWelcome, email.TemplatePaymentConfirmation}, helpers.QueuedTemplates(t, f.db))
	assert.Len(t, f.mailer.Sent(), 2)
}

func TestWebhook_PaymentSucceededBeforeSessionCompletion(t *testing.T) {
	f := newFixture(t)
	member := helpers.CreateMember(t, f.db)
	session := startCheckout(t, f, member.ID)

	// шлюз еще не связал платеж с сессией и уже связал
	for i, intentID := range []string{"pi_not_linked_yet", session.PaymentIntent} {
		_, err := f.deliver(intentEvent(t, "evt_pi_early_"+strconv.Itoa(i), gateway.TypePaymentSucceeded, intentID, member.ID, nil))
		require.NoError(t, err)
	}

	var transactions int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&transactions).Error)
	assert.Equal(t, int64(1), transactions)
	assert.Equal(t, models.TransactionStatusPending, loadTx(t, f, session.ID).Status)
	assert.NotEqual(t, models.PaymentStatusPaid, helpers.ReloadMember(t, f.db, member.ID).PaymentStatus)
	assert.Empty(t, helpers.QueuedTemplates(t, f.db))

	require.NoError(t, f.gw.MarkPaid(session.ID))
	_, err := f.deliver(f.completedEvent(t, "evt_completed", session.ID))
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCompleted, loadTx(t, f, session.ID).Status)
	assert.Equal(t, models.PaymentStatusPaid, helpers.ReloadMember(t, f.db, member.ID).PaymentStatus)
	assert.Equal(t, []string{email.TemplateWelcome, email.TemplatePaymentConfirmation, email.TemplateSponsorTaxReceipt},
		helpers.QueuedTemplates(t, f.db))
}

func TestWebhook_PaymentFailedMarksCheckoutTransaction(t *testing.T) {
	declined := map[string]interface{}{
		"last_payment_error": map[string]string{"code": "card_declined", "message": "Your card was declined."},
	}

	t.Run("по id платежа", func(t *testing.T) {
		f := newFixture(t)
		member := helpers.CreateMember(t, f.db)
		session := startCheckout(t, f, member.ID)

		_, err := f.deliver(intentEvent(t, "evt_declined", gateway.TypePaymentFailed, session.PaymentIntent, member.ID, declined))
		require.NoError(t, err)

		tx := loadTx(t, f, session.ID)
		assert.Equal(t, models.TransactionStatusFailed, tx.Status)
		assert.Equal(t, "Your card was declined.", tx.ErrorMessage)
		assert.NotEqual(t, models.PaymentStatusPaid, helpers.ReloadMember(t, f.db, member.ID).PaymentStatus)
		assert.Empty(t, helpers.QueuedTemplates(t, f.db))

		// вторая карта в той же сессии
		require.NoError(t, f.gw.MarkPaid(session.ID))
		_, err = f.deliver(f.completedEvent(t, "evt_completed", session.ID))
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCompleted, loadTx(t, f, session.ID).Status)
		assert.Equal(t, []string{email.TemplateWelcome, email.TemplatePaymentConfirmation, email.TemplateSponsorTaxReceipt},
			helpers.QueuedTemplates(t, f.db))
	})

	t.Run("платеж заведен после сессии", func(t *testing.T) {
		f := newFixture(t)
		member := helpers.CreateMember(t, f.db)
		session := startCheckout(t, f, member.ID)

		_, err := f.deliver(intentEvent(t, "evt_declined", gateway.TypePaymentFailed, "pi_created_later", member.ID, declined))
		require.NoError(t, err)

		tx := loadTx(t, f, session.ID)
		assert.Equal(t, models.TransactionStatusFailed, tx.Status)
		assert.Equal(t, "Your card was declined.", tx.ErrorMessage)
		assert.Equal(t, "pi_created_later", tx.PaymentIntentID)
	})
}
