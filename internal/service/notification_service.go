package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/events"
)

// NotificationService turns domain events into short user-facing notices.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	out        io.Writer
	mu         sync.Mutex
}

// NewNotificationService creates the service. Notices are written to out.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, out io.Writer) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		out:        out,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventResourceCreated, n.handleResourceCreated)
	n.dispatcher.Subscribe(events.EventResourceUpdated, n.handleResourceUpdated)
	n.dispatcher.Subscribe(events.EventResourceDeleted, n.handleResourceDeleted)
	n.dispatcher.Subscribe(events.EventStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventOperationFailed, n.handleOperationFailed)
}

func (n *NotificationService) handleResourceCreated(_ context.Context, event events.Event) error {
	n.logger.Debug("ResourceCreated", zap.String("kind", string(event.Kind)), zap.Int64("id", event.ResourceID))
	return n.notify("%s #%d 등록되었습니다.", labelOf(event.Kind), event.ResourceID)
}

func (n *NotificationService) handleResourceUpdated(_ context.Context, event events.Event) error {
	n.logger.Debug("ResourceUpdated", zap.String("kind", string(event.Kind)), zap.Int64("id", event.ResourceID))
	return n.notify("%s #%d 수정되었습니다.", labelOf(event.Kind), event.ResourceID)
}

func (n *NotificationService) handleResourceDeleted(_ context.Context, event events.Event) error {
	n.logger.Debug("ResourceDeleted", zap.String("kind", string(event.Kind)), zap.Int64("id", event.ResourceID))
	return n.notify("%s #%d 삭제되었습니다.", labelOf(event.Kind), event.ResourceID)
}

func (n *NotificationService) handleStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusChangedPayload)
	if !ok {
		return fmt.Errorf("status_changed: unexpected payload %T", event.Payload)
	}
	n.logger.Debug("StatusChanged", zap.Int64("id", event.ResourceID), zap.Any("payload", payload))
	return n.notify("%s #%d 상태 변경: %s → %s", labelOf(event.Kind), event.ResourceID, payload.From, payload.To)
}

func (n *NotificationService) handleOperationFailed(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OperationFailedPayload)
	if !ok {
		return fmt.Errorf("operation_failed: unexpected payload %T", event.Payload)
	}
	n.logger.Warn("OperationFailed",
		zap.String("kind", string(event.Kind)),
		zap.Int64("id", event.ResourceID),
		zap.String("operation", payload.Operation),
		zap.Bool("inconsistent", payload.Inconsistent))
	if payload.Inconsistent {
		return n.notify("경고: %s #%d 상태는 변경되었으나 이력 기록에 실패했습니다. (%s)", labelOf(event.Kind), event.ResourceID, payload.Message)
	}
	return n.notify("오류: %s", payload.Message)
}

func (n *NotificationService) notify(format string, args ...any) error {
	if n.out == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.out, format+"\n", args...); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

func labelOf(kind domain.Kind) string {
	if schema, err := domain.SchemaFor(kind); err == nil {
		return schema.Label
	}
	return string(kind)
}
