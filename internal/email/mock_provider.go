package email

import (
	"context"
	"sync"
)

// MockEmailProvider запоминает письма вместо отправки. Используется в тестах.
type MockEmailProvider struct {
	mu   sync.Mutex
	sent []Email

	// FailFor - адреса, отправка на которые возвращает ошибку
	FailFor map[string]error
}

func NewMockEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{FailFor: make(map[string]error)}
}

func (m *MockEmailProvider) Send(ctx context.Context, email *Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, to := range email.To {
		if err, ok := m.FailFor[to]; ok {
			return err
		}
	}
	m.sent = append(m.sent, *email)
	return nil
}

// Sent - копия отправленных писем в порядке отправки
func (m *MockEmailProvider) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockEmailProvider) Validate() error { return nil }
func (m *MockEmailProvider) Close() error    { return nil }
