package messaging

import (
	"context"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
)

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishMessageCreated(context.Context, *domain.Message) error {
	return nil
}
