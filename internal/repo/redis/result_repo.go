package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/modactions/internal/domain/model"
)

// ResultRepo publishes action outcomes back to pub/sub callers on a
// per-action result channel.
type ResultRepo struct {
	client        *goredis.Client
	channelPrefix string
}

func NewResultRepo(client *goredis.Client, channelPrefix string) *ResultRepo {
	if strings.TrimSpace(channelPrefix) == "" {
		channelPrefix = "web:results:"
	}
	return &ResultRepo{client: client, channelPrefix: channelPrefix}
}

func (r *ResultRepo) PublishResult(ctx context.Context, resp model.ActionResponse) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(resp.ActionID) == "" {
		return fmt.Errorf("action id is required")
	}

	payload, err := json.Marshal(map[string]any{
		"action_id":         resp.ActionID,
		"status":            string(resp.Status),
		"success":           resp.Success,
		"message":           resp.Message,
		"error":             resp.Error,
		"execution_time_ms": resp.ExecutionTimeMS,
		"retry_count":       resp.RetryCount,
	})
	if err != nil {
		return fmt.Errorf("encode action result: %w", err)
	}

	channel := r.channelPrefix + resp.ActionID
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish action result: %w", err)
	}

	return nil
}
