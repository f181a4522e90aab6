package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/frogody/floatr-app-sub000/internal/services/notify"
)

// OutboundRepo appends outbound events to a redis stream consumed by the
// SMS/email/push delivery workers.
type OutboundRepo struct {
	client *goredis.Client
	stream string
	maxLen int64
}

func NewOutboundRepo(client *goredis.Client, stream string, maxLen int64) *OutboundRepo {
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = "floatr:outbound"
	}
	return &OutboundRepo{client: client, stream: stream, maxLen: maxLen}
}

func (r *OutboundRepo) Publish(ctx context.Context, event notify.Event) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal outbound payload: %w", err)
	}

	args := &goredis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"id":          event.ID,
			"type":        string(event.Type),
			"occurred_at": event.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			"payload":     string(payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd outbound event: %w", err)
	}
	return nil
}
