// Package notify очередь уведомлений. Запись брони никогда не
// откатывается из-за того, что уведомление не удалось поставить в
// очередь: постановка неблокирующая, ошибки логируются и глотаются.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindBookingCreated     Kind = "booking.created"
	KindBookingRescheduled Kind = "booking.rescheduled"
	KindBookingsOpened     Kind = "bookings.opened"
)

// Message конверт уведомления, передаётся внешнему доставщику как есть
type Message struct {
	ID        uuid.UUID      `json:"id"`
	Kind      Kind           `json:"kind"`
	TenantID  int64          `json:"tenant_id"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Dispatcher интерфейс отправки уведомлений, best-effort
type Dispatcher interface {
	Notify(kind Kind, tenantID int64, payload map[string]any)
}

// Sender доставляет конверт во внешнюю систему (почта, шаблоны —
// не наша забота)
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// QueueDispatcher буферизованная очередь с одним воркером.
// Notify не блокируется: при переполненном буфере сообщение
// отбрасывается с записью в лог.
type QueueDispatcher struct {
	sender   Sender
	logger   *zap.Logger
	queue    chan Message
	stopChan chan struct{}
	done     chan struct{}
}

func NewQueueDispatcher(sender Sender, logger *zap.Logger, bufferSize int) *QueueDispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &QueueDispatcher{
		sender:   sender,
		logger:   logger,
		queue:    make(chan Message, bufferSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает воркер доставки
func (d *QueueDispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop останавливает воркер, дожидаясь доставки накопленного
func (d *QueueDispatcher) Stop() {
	close(d.stopChan)
	<-d.done
}

// Notify ставит уведомление в очередь, не блокируясь
func (d *QueueDispatcher) Notify(kind Kind, tenantID int64, payload map[string]any) {
	msg := Message{
		ID:        uuid.New(),
		Kind:      kind,
		TenantID:  tenantID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("Notification queue full, dropping message",
			zap.String("kind", string(kind)),
			zap.Int64("tenant_id", tenantID),
		)
	}
}

func (d *QueueDispatcher) run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		case <-d.stopChan:
			d.drain(ctx)
			d.logger.Info("Notification dispatcher stopped")
			return
		case <-ctx.Done():
			// Накопленное доставляем и при отмене контекста:
			// уже принятые в очередь сообщения не теряются
			d.drain(ctx)
			d.logger.Info("Notification dispatcher cancelled")
			return
		}
	}
}

// drain добирает остаток очереди перед выходом воркера
func (d *QueueDispatcher) drain(ctx context.Context) {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (d *QueueDispatcher) deliver(ctx context.Context, msg Message) {
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Warn("Failed to deliver notification",
			zap.String("id", msg.ID.String()),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
	}
}

// LogSender заглушка доставщика: пишет конверт в лог. Реальная доставка
// живёт во внешнем сервисе рассылок.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("Notification dispatched",
		zap.String("id", msg.ID.String()),
		zap.String("kind", string(msg.Kind)),
		zap.Int64("tenant_id", msg.TenantID),
		zap.Any("payload", msg.Payload),
	)
	return nil
}
