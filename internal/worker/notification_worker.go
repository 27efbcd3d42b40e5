package worker

import (
	"github.com/chatcommerce/commerce-service/internal/service"
)

// StartNotificationWorker starts forwarding domain events in the background.
// The container stops it before closing the publisher.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.Start()
}
