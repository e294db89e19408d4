package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

// MemoryClient - шлюз в памяти для локального запуска без ключей и для тестов
type MemoryClient struct {
	mu       sync.Mutex
	sessions map[string]*CheckoutSession

	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time

	// AutoPay - новые сессии сразу считаются оплаченными
	AutoPay bool
}

func NewMemoryClient(webhookSecret string) *MemoryClient {
	return &MemoryClient{
		sessions:      make(map[string]*CheckoutSession),
		webhookSecret: webhookSecret,
		tolerance:     DefaultTolerance,
		now:           time.Now,
	}
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (m *MemoryClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params.Amount <= 0 {
		return nil, &stripe.Error{
			HTTPStatusCode: 400,
			Type:           stripe.ErrorTypeInvalidRequest,
			Msg:            "amount must be positive",
		}
	}

	id := newID("cs_test_")
	session := &CheckoutSession{
		ID:            id,
		URL:           "https://checkout.local/pay/" + id,
		AmountTotal:   AmountToCents(params.Amount),
		Currency:      params.Currency,
		Status:        "open",
		PaymentStatus: "unpaid",
		PaymentIntent: newID("pi_test_"),
		CustomerEmail: params.CustomerEmail,
		Metadata: map[string]string{
			MetaMemberID:            strconv.FormatUint(uint64(params.MemberID), 10),
			MetaMembershipType:      params.MembershipType,
			MetaMembershipStartDate: params.StartDate.Format("2006-01-02"),
			MetaMembershipEndDate:   params.EndDate.Format("2006-01-02"),
		},
	}
	if m.AutoPay {
		session.Status = "complete"
		session.PaymentStatus = "paid"
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	return m.snapshot(session), nil
}

func (m *MemoryClient) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return m.snapshot(session), nil
}

func (m *MemoryClient) VerifyWebhookSignature(payload []byte, header string) error {
	return VerifySignature(m.webhookSecret, payload, header, m.tolerance)
}

// PutSession регистрирует готовую сессию
func (m *MemoryClient) PutSession(session CheckoutSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := session
	m.sessions[s.ID] = &s
}

// MarkPaid переводит сессию в оплаченное состояние
func (m *MemoryClient) MarkPaid(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("checkout session %s not found", id)
	}
	session.Status = "complete"
	session.PaymentStatus = "paid"
	return nil
}

// CompletedEvent собирает тело checkout.session.completed для сессии
func (m *MemoryClient) CompletedEvent(eventID, sessionID string) ([]byte, error) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("checkout session %s not found", sessionID)
	}
	return BuildEvent(eventID, TypeCheckoutCompleted, m.snapshot(session), m.now())
}

// SignedHeader подписывает тело секретом клиента
func (m *MemoryClient) SignedHeader(payload []byte) string {
	return SignatureHeader(m.webhookSecret, payload, m.now())
}

func (m *MemoryClient) snapshot(session *CheckoutSession) *CheckoutSession {
	s := *session
	s.Metadata = make(map[string]string, len(session.Metadata))
	for k, v := range session.Metadata {
		s.Metadata[k] = v
	}
	s.Raw, _ = json.Marshal(s)
	return &s
}
