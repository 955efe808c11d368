package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	telegraminfra "github.com/ivankudzin/modactions/internal/infra/telegram"
	redrepo "github.com/ivankudzin/modactions/internal/repo/redis"
	actionssvc "github.com/ivankudzin/modactions/internal/services/actions"
)

func TestListenerExecutesAndPublishesResult(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gateway, err := telegraminfra.NewGateway("")
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	service := actionssvc.NewService(actionssvc.Dependencies{Gateway: gateway}, actionssvc.Config{
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		MaxBackoff:  4 * time.Millisecond,
	})

	results := redrepo.NewResultRepo(client, "web:results:")
	listener := NewListener(client, results, service, "web:actions", nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	runErr := make(chan error, 1)
	go func() { runErr <- listener.Run(ctx) }()

	resultSub := client.PSubscribe(ctx, "web:results:*")
	t.Cleanup(func() { _ = resultSub.Close() })
	if _, err := resultSub.Receive(ctx); err != nil {
		t.Fatalf("psubscribe: %v", err)
	}
	resultCh := resultSub.Channel()

	// Give the listener time to finish its own subscribe.
	deadline := time.Now().Add(time.Second)
	for {
		n, err := client.Publish(ctx, "web:actions",
			`{"action_type":"ban","group_id":-1001,"user_id":42,"reason":"spam","initiated_by":7}`).Result()
		if err != nil {
			t.Fatalf("publish action: %v", err)
		}
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("listener never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case msg := <-resultCh:
		var result struct {
			ActionID string `json:"action_id"`
			Status   string `json:"status"`
			Success  bool   `json:"success"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if !result.Success || result.Status != "success" {
			t.Fatalf("unexpected result: %+v", result)
		}
		if result.ActionID == "" {
			t.Fatalf("result must carry the action id")
		}
		if msg.Channel != "web:results:"+result.ActionID {
			t.Fatalf("result published to wrong channel: %s", msg.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no result message received")
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("listener run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("listener did not stop on context cancel")
	}
}

func TestListenerSkipsMalformedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gateway, err := telegraminfra.NewGateway("")
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	service := actionssvc.NewService(actionssvc.Dependencies{Gateway: gateway}, actionssvc.Config{
		BackoffBase: time.Millisecond,
	})

	listener := NewListener(client, redrepo.NewResultRepo(client, "web:results:"), service, "web:actions", nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	runErr := make(chan error, 1)
	go func() { runErr <- listener.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for {
		n, err := client.Publish(ctx, "web:actions", `not-json`).Result()
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("listener never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := client.Publish(ctx, "web:actions", `{"action_type":"explode","group_id":-1,"user_id":1}`).Result(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("listener must survive malformed messages: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("listener did not stop on context cancel")
	}
}
