package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events on the organization's pub/sub channel
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// Channel returns the pub/sub channel for an organization
func Channel(organizationID string) string {
	return "org:" + organizationID + ":events"
}

func (s *RedisSink) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.client.Publish(ctx, Channel(evt.OrganizationID), body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to redis: %w", evt.Type, err)
	}
	return nil
}
