package email

import "context"

// Provider определяет интерфейс для отправки email.
// Доставка целиком на стороне транспорта, очередь только передает готовое письмо.
type Provider interface {
	// Send отправляет письмо, ctx ограничивает время отправки
	Send(ctx context.Context, email *Email) error

	// Validate проверяет конфигурацию провайдера
	Validate() error

	// Close закрывает соединение с провайдером
	Close() error
}

// TemplateRenderer определяет интерфейс для рендеринга шаблонов
type TemplateRenderer interface {
	// Render возвращает тему и html-тело письма
	Render(templateName string, data TemplateData) (subject string, body string, err error)

	// AddTemplate добавляет шаблон в рендерер
	AddTemplate(name string, template string) error

	// LoadTemplates загружает шаблоны из директории
	LoadTemplates(dirPath string) error

	Has(templateName string) bool
}
