package kafka

import (
	"context"

	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/obs/retry"
	"go.uber.org/zap"
)

// AccountEvents publishes account lifecycle events keyed by user id.
type AccountEvents struct {
	p      *Producer
	policy retry.Policy
}

var _ user.EventPublisher = (*AccountEvents)(nil)

func NewAccountEvents(p *Producer, log *zap.Logger) *AccountEvents {
	return &AccountEvents{p: p, policy: retry.EventPublishPolicy(log)}
}

func (e *AccountEvents) Publish(ctx context.Context, ev user.Event) error {
	key := KeyFromInt64(ev.UserID)
	return retry.Do(ctx, func() error {
		return e.p.PublishJSON(ctx, key, ev)
	}, e.policy)
}

// NopEvents drops every event. Used when kafka is disabled.
type NopEvents struct{}

func (NopEvents) Publish(context.Context, user.Event) error { return nil }
