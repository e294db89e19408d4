package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"membership_backend/internal/config"
	"membership_backend/internal/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Client - то, что приложению нужно от платежного шлюза
type Client interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	// GetCheckoutSession возвращает nil, nil если шлюз не знает сессию
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	VerifyWebhookSignature(payload []byte, header string) error
}

type Config struct {
	APIBase       string
	SecretKey     string
	WebhookSecret string
	Tolerance     time.Duration
	Timeout       time.Duration
}

func ConfigFromApp(cfg *config.Config) Config {
	c := Config{
		APIBase:       strings.TrimRight(cfg.Gateway.APIBase, "/"),
		SecretKey:     cfg.Gateway.SecretKey,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Tolerance:     time.Duration(cfg.Gateway.WebhookToleranceS) * time.Second,
		Timeout:       cfg.GatewayTimeout(),
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	return c
}

// HTTPClient - шлюз поверх stripe-go. Повторы запросов выключены:
// создание сессии повторяет сам участник, подтверждение - webhook.
type HTTPClient struct {
	cfg Config
	api *client.API
}

func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     stripeLogger{},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIBase != "" {
		backendConfig.URL = stripe.String(cfg.APIBase)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
	})
	return &HTTPClient{cfg: cfg, api: api}
}

func (c *HTTPClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	memberID := strconv.FormatUint(uint64(p.MemberID), 10)
	start, end := p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02")

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(AmountToCents(p.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("Membership %s (%s - %s)", p.MembershipType, start, end)),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				MetaSource:   SourceCheckout,
				MetaMemberID: memberID,
			},
		},
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.AddMetadata(MetaMemberID, memberID)
	params.AddMetadata(MetaMembershipType, p.MembershipType)
	params.AddMetadata(MetaMembershipStartDate, start)
	params.AddMetadata(MetaMembershipEndDate, end)

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return sessionFromStripe(session), nil
}

func (c *HTTPClient) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	session, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get checkout session %s: %w", id, err)
	}
	return sessionFromStripe(session), nil
}

func (c *HTTPClient) VerifyWebhookSignature(payload []byte, header string) error {
	return VerifySignature(c.cfg.WebhookSecret, payload, header, c.cfg.Tolerance)
}

func sessionFromStripe(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		PaymentIntent: IntentID(s.PaymentIntent),
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if s.LastResponse != nil {
		out.Raw = s.LastResponse.RawJSON
	}
	return out
}

// stripeLogger направляет журнал stripe-go в наш slog
type stripeLogger struct{}

func (stripeLogger) Debugf(format string, v ...interface{}) {
	logger.GetLogger().Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (stripeLogger) Infof(format string, v ...interface{}) {
	logger.GetLogger().Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (stripeLogger) Warnf(format string, v ...interface{}) {
	logger.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (stripeLogger) Errorf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
