package helpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"membership_backend/internal/app"
	"membership_backend/internal/auth"
	"membership_backend/internal/config"
	"membership_backend/internal/email"
	"membership_backend/internal/gateway"
	"membership_backend/internal/services"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	TestJWTSecret     = "test_jwt_secret_for_membership_tests"
	TestWebhookSecret = "whsec_test_secret"
)

// TestServer - приложение целиком поверх sqlite и шлюза в памяти
type TestServer struct {
	Server   *httptest.Server
	DB       *gorm.DB
	Config   *config.Config
	Gateway  *gateway.MemoryClient
	Mailer   *email.MockEmailProvider
	Tokens   *auth.TokenManager
	Services *services.ServiceContainer
}

func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Env = "test"
	cfg.Database.Driver = "sqlite"
	cfg.JWT.Secret = TestJWTSecret
	cfg.Gateway.WebhookSecret = TestWebhookSecret
	cfg.Gateway.SuccessURL = "https://members.test/payment/success?session_id={CHECKOUT_SESSION_ID}"
	cfg.Gateway.CancelURL = "https://members.test/payment/cancel"
	return cfg
}

// NewTestServer создает и настраивает тестовый сервер и БД
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	cfg := TestConfig()
	db := NewTestDB(t)

	renderer, err := email.NewDefaultTemplateManager()
	require.NoError(t, err)

	ts := &TestServer{
		DB:      db,
		Config:  cfg,
		Gateway: gateway.NewMemoryClient(cfg.Gateway.WebhookSecret),
		Mailer:  email.NewMockEmailProvider(),
		Tokens:  auth.NewTokenManager(cfg.JWT.Secret),
	}

	router, container := app.SetupRouter(cfg, db, &app.Dependencies{
		Gateway:       ts.Gateway,
		EmailProvider: ts.Mailer,
		Renderer:      renderer,
		Tokens:        ts.Tokens,
	})
	ts.Services = container
	ts.Server = httptest.NewServer(router)
	t.Cleanup(ts.Server.Close)

	return ts
}

// TokenFor выдает сессионный токен участнику
func (ts *TestServer) TokenFor(t *testing.T, memberID uint) string {
	t.Helper()
	token, err := ts.Tokens.GenerateToken(memberID, time.Hour)
	require.NoError(t, err)
	return token
}

// SendRequest отправляет JSON запрос, token может быть пустым
func (ts *TestServer) SendRequest(t *testing.T, method, path, token string, body interface{}) (*http.Response, string) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err, "Ошибка кодирования JSON для запроса")
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return ts.do(t, req)
}

// SendWebhook отправляет сырое тело с заголовком подписи
func (ts *TestServer) SendWebhook(t *testing.T, payload []byte, signature string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/api/v1/payments/webhook", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return ts.do(t, req)
}

func (ts *TestServer) do(t *testing.T, req *http.Request) (*http.Response, string) {
	res, err := ts.Server.Client().Do(req)
	require.NoError(t, err, "Ошибка отправки HTTP-запроса")
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	require.NoError(t, err, "Ошибка чтения тела ответа")
	return res, string(resBody)
}
