package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
	redrepo "github.com/ivankudzin/modactions/internal/repo/redis"
)

// Executor is the part of the action service the listener needs.
type Executor interface {
	Execute(ctx context.Context, req model.ActionRequest) (model.ActionResponse, error)
}

// Listener consumes moderation requests published by the web frontend on a
// redis channel and publishes each terminal outcome to a per-action result
// channel.
type Listener struct {
	client   *goredis.Client
	results  *redrepo.ResultRepo
	executor Executor
	channel  string
	logger   *zap.Logger
}

func NewListener(client *goredis.Client, results *redrepo.ResultRepo, executor Executor, channel string, log *zap.Logger) *Listener {
	if channel == "" {
		channel = "web:actions"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{
		client:   client,
		results:  results,
		executor: executor,
		channel:  channel,
		logger:   log,
	}
}

// Run blocks until ctx is cancelled. Malformed messages are logged and
// skipped; a failed action still produces a result message.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", l.channel, err)
	}

	l.logger.Info("action listener started", zap.String("channel", l.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("action listener stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.handleMessage(ctx, msg.Payload)
		}
	}
}

type actionMessage struct {
	ActionType  string         `json:"action_type"`
	GroupID     int64          `json:"group_id"`
	UserID      int64          `json:"user_id"`
	MessageID   int64          `json:"message_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Duration    int            `json:"duration,omitempty"`
	Title       string         `json:"title,omitempty"`
	Role        string         `json:"role,omitempty"`
	InitiatedBy int64          `json:"initiated_by,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (l *Listener) handleMessage(ctx context.Context, payload string) {
	var msg actionMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		l.logger.Warn("invalid action message", zap.Error(err))
		return
	}

	actionType, ok := enums.ParseActionType(msg.ActionType)
	if !ok {
		l.logger.Warn("unknown action type in message", zap.String("action_type", msg.ActionType))
		return
	}

	resp, err := l.executor.Execute(ctx, model.ActionRequest{
		Type:            actionType,
		GroupID:         msg.GroupID,
		UserID:          msg.UserID,
		MessageID:       msg.MessageID,
		Reason:          msg.Reason,
		DurationSeconds: msg.Duration,
		Title:           msg.Title,
		Role:            msg.Role,
		InitiatedBy:     msg.InitiatedBy,
		Metadata:        msg.Metadata,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		l.logger.Warn("action from channel rejected",
			zap.String("action_type", msg.ActionType),
			zap.Error(err),
		)
		return
	}

	if l.results == nil {
		return
	}
	if err := l.results.PublishResult(ctx, resp); err != nil {
		l.logger.Warn("failed to publish action result",
			zap.String("action_id", resp.ActionID),
			zap.Error(err),
		)
		return
	}

	l.logger.Info("action result published",
		zap.String("action_id", resp.ActionID),
		zap.Bool("success", resp.Success),
	)
}
