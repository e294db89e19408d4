package workers

import (
	"context"
	"time"

	"membership_backend/internal/logger"
	"membership_backend/internal/services"
	"membership_backend/internal/utils"

	"gorm.io/gorm"
)

const workerName = "notification_worker"

type NotificationWorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int // 0 - переотправка упавших писем выключена
}

// NotificationWorker периодически отправляет очередь писем и раз в сутки ищет истекающие членства
type NotificationWorker struct {
	db     *gorm.DB
	queue  services.NotificationQueueService
	config NotificationWorkerConfig
	now    func() time.Time

	lastExpiryCheck time.Time
}

func NewNotificationWorker(db *gorm.DB, queue services.NotificationQueueService, config NotificationWorkerConfig) *NotificationWorker {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	return &NotificationWorker{
		db:     db,
		queue:  queue,
		config: config,
		now:    time.Now,
	}
}

// Start запускает фоновый цикл, остановка через ctx
func (w *NotificationWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *NotificationWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	logger.Info("Notification worker started", "interval", w.config.Interval.String())
	w.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification worker stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick - один проход: проверка сроков (раз в день), переотправка, отправка
func (w *NotificationWorker) Tick(ctx context.Context) {
	today := utils.DateOf(w.now())

	if !today.Equal(w.lastExpiryCheck) {
		count, err := w.queue.CheckExpiringMemberships(ctx, w.db, today)
		if err != nil {
			logger.WorkerLog(workerName, "check_expiring", err)
		} else {
			w.lastExpiryCheck = today
			if count > 0 {
				logger.WorkerLog(workerName, "check_expiring", nil, "reminders", count)
			}
		}
	}

	if w.config.MaxAttempts > 0 {
		requeued, err := w.queue.RequeueFailed(w.db, w.config.MaxAttempts)
		if err != nil {
			logger.WorkerLog(workerName, "requeue_failed", err)
		} else if requeued > 0 {
			logger.WorkerLog(workerName, "requeue_failed", nil, "requeued", requeued)
		}
	}

	result, err := w.queue.Drain(ctx, w.db, w.config.BatchSize)
	if err != nil {
		logger.WorkerLog(workerName, "drain", err)
		return
	}
	if result.Sent+result.Failed > 0 {
		logger.WorkerLog(workerName, "drain", nil, "sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
	}
}
