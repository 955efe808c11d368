package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ivankudzin/modactions/internal/app/apiapp"
	"github.com/ivankudzin/modactions/internal/config"
)

func newTestApp(t *testing.T) *apiapp.App {
	t.Helper()

	cfg := config.Default()
	cfg.HTTP.Addr = ":0"
	cfg.PubSub.Enabled = false
	cfg.Export.Enabled = false

	app, err := apiapp.New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	return app
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}

	var payload struct {
		Status  string `json:"status"`
		Pending int    `json:"pending_actions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestExecuteActionSmoke(t *testing.T) {
	app := newTestApp(t)

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	body := `{"action_type":"ban","group_id":-1001234,"user_id":42,"reason":"spam","initiated_by":7}`
	resp, err := http.Post(ts.URL+"/actions/execute", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post execute: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}

	var payload struct {
		ActionID string `json:"action_id"`
		Status   string `json:"status"`
		Success  bool   `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ActionID == "" {
		t.Fatal("expected a generated action_id")
	}
	if !payload.Success || payload.Status != "completed" {
		t.Fatalf("unexpected result: %+v", payload)
	}
}

func TestExecuteRejectsUnknownActionType(t *testing.T) {
	app := newTestApp(t)

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	body := `{"action_type":"obliterate","group_id":-1001234,"user_id":42}`
	resp, err := http.Post(ts.URL+"/actions/execute", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post execute: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
