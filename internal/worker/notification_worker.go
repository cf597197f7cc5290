package worker

import (
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/service"
)

// StartNotificationWorker registers the log-channel notifier and the
// optional Kafka sink on the dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService, sink *events.KafkaSink, dispatcher events.Dispatcher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if sink != nil {
		sink.Register(dispatcher)
	}
}
