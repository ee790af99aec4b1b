package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RealtimeEvent is what subscribers (booking pages, dashboards) receive.
type RealtimeEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Publisher fans events out to browser subscribers. Publish-only from the
// core's perspective; subscription handling lives at the edge.
type Publisher interface {
	Publish(ctx context.Context, channel string, event RealtimeEvent) error
}

type redisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) Publisher {
	return &redisPublisher{client: client}
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, event RealtimeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Channel names shared between publisher and edge subscribers.

// BookingChannel is the public channel clients browsing a provider's booking
// page subscribe to. Slug based so the provider ID is never exposed.
func BookingChannel(providerSlug string) string {
	return fmt.Sprintf("rt:booking:%s", providerSlug)
}

// DashboardChannel is the provider's private dashboard channel.
func DashboardChannel(providerID string) string {
	return fmt.Sprintf("rt:dashboard:%s", providerID)
}
