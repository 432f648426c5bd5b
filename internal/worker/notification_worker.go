package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/events"
	"github.com/spec-kit/intranet/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartEventLogger records every event at debug level.
func StartEventLogger(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		logger.Debug("event",
			zap.String("id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("kind", string(event.Kind)),
			zap.Int64("resource_id", event.ResourceID),
			zap.String("actor", event.Actor))
		return nil
	})
}
