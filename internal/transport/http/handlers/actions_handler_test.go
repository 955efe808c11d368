package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
	telegraminfra "github.com/ivankudzin/modactions/internal/infra/telegram"
	pgrepo "github.com/ivankudzin/modactions/internal/repo/postgres"
	actionssvc "github.com/ivankudzin/modactions/internal/services/actions"
)

type recordStoreStub struct {
	records []model.ActionRecord
}

func (s *recordStoreStub) AppendActionRecord(_ context.Context, rec model.ActionRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *recordStoreStub) GetActionRecord(_ context.Context, actionID string) (model.ActionRecord, error) {
	for _, rec := range s.records {
		if rec.ActionID == actionID {
			return rec, nil
		}
	}
	return model.ActionRecord{}, pgrepo.ErrActionRecordNotFound
}

func (s *recordStoreStub) UpdateActionStatus(_ context.Context, _ string, _ enums.ActionStatus) error {
	return nil
}

func (s *recordStoreStub) QueryHistory(_ context.Context, groupID int64, limit, skip int, status enums.ActionStatus) (model.ActionHistory, error) {
	var matched []model.ActionRecord
	for _, rec := range s.records {
		if rec.GroupID != groupID {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		matched = append(matched, rec)
	}
	history := model.ActionHistory{Total: int64(len(matched))}
	for i := skip; i < len(matched) && len(history.Actions) < limit; i++ {
		history.Actions = append(history.Actions, matched[i])
	}
	return history, nil
}

func (s *recordStoreStub) GroupStats(_ context.Context, groupID int64) (model.GroupStats, error) {
	stats := model.GroupStats{GroupID: groupID}
	for _, rec := range s.records {
		if rec.GroupID != groupID {
			continue
		}
		stats.Total++
		if rec.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total)
	}
	return stats, nil
}

func newTestService(t *testing.T, records actionssvc.RecordStore) *actionssvc.Service {
	t.Helper()

	gateway, err := telegraminfra.NewGateway("")
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	return actionssvc.NewService(actionssvc.Dependencies{
		Gateway: gateway,
		Records: records,
	}, actionssvc.Config{
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		MaxBackoff:  4 * time.Millisecond,
	})
}

func newTestRouter(h *ActionsHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/actions/execute", h.Execute)
	r.Post("/actions/batch", h.Batch)
	r.Get("/actions/status/{action_id}", h.Status)
	r.Post("/actions/cancel/{action_id}", h.Cancel)
	r.Get("/actions/history", h.History)
	r.Get("/actions/pending-count", h.PendingCount)
	r.Get("/actions/stats/{group_id}", h.Stats)
	return r
}

func TestExecuteEndpointSuccess(t *testing.T) {
	records := &recordStoreStub{}
	h := NewActionsHandler(newTestService(t, records), 0)
	router := newTestRouter(h)

	body := `{"action_type":"ban","group_id":-1001,"user_id":42,"reason":"spam","initiated_by":7}`
	req := httptest.NewRequest(http.MethodPost, "/actions/execute", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rr.Code, rr.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "success" || resp["success"] != true {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp["action_id"] == "" || resp["action_id"] == nil {
		t.Fatalf("expected an action id in the response")
	}
	if len(records.records) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(records.records))
	}
}

func TestExecuteEndpointRejectsInvalidRequest(t *testing.T) {
	h := NewActionsHandler(newTestService(t, &recordStoreStub{}), 0)
	router := newTestRouter(h)

	cases := []struct {
		name string
		body string
	}{
		{"positive group id", `{"action_type":"ban","group_id":1001,"user_id":42}`},
		{"unknown action type", `{"action_type":"explode","group_id":-1001,"user_id":42}`},
		{"short mute", `{"action_type":"mute","group_id":-1001,"user_id":42,"duration":5}`},
		{"malformed json", `{"action_type":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/actions/execute", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("unexpected status: got %d body %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestBatchEndpointKeepsAlignment(t *testing.T) {
	h := NewActionsHandler(newTestService(t, &recordStoreStub{}), time.Second)
	router := newTestRouter(h)

	body := `{"actions":[
		{"action_type":"ban","group_id":-1001,"user_id":42},
		{"action_type":"explode","group_id":-1001,"user_id":43},
		{"action_type":"kick","group_id":-1001,"user_id":44}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/actions/batch", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Results   []struct {
			UserID  int64 `json:"user_id"`
			Success bool  `json:"success"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Total != 3 || resp.Succeeded != 2 || resp.Failed != 1 {
		t.Fatalf("unexpected batch counters: %+v", resp)
	}
	if resp.Results[1].UserID != 43 || resp.Results[1].Success {
		t.Fatalf("invalid request must stay at its slot: %+v", resp.Results[1])
	}
}

func TestBatchEndpointRejectsEmptyAndOversized(t *testing.T) {
	h := NewActionsHandler(newTestService(t, &recordStoreStub{}), time.Second)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/actions/batch", strings.NewReader(`{"actions":[]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty batch: unexpected status %d", rr.Code)
	}

	var b strings.Builder
	b.WriteString(`{"actions":[`)
	for i := 0; i <= maxBatchSize; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"action_type":"ban","group_id":-1001,"user_id":42}`)
	}
	b.WriteString(`]}`)

	req = httptest.NewRequest(http.MethodPost, "/actions/batch", strings.NewReader(b.String()))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("oversized batch: unexpected status %d", rr.Code)
	}
}

func TestStatusEndpointTerminalAndMissing(t *testing.T) {
	records := &recordStoreStub{}
	service := newTestService(t, records)
	h := NewActionsHandler(service, 0)
	router := newTestRouter(h)

	resp, err := service.Execute(context.Background(), model.ActionRequest{
		Type: enums.ActionTypeBan, GroupID: -1001, UserID: 42,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/actions/status/"+resp.ActionID, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("terminal status: got %d body %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/actions/status/missing-id", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing status: got %d", rr.Code)
	}
}

func TestCancelEndpointMissing(t *testing.T) {
	h := NewActionsHandler(newTestService(t, &recordStoreStub{}), 0)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/actions/cancel/missing-id", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestPendingCountEndpoint(t *testing.T) {
	h := NewActionsHandler(newTestService(t, &recordStoreStub{}), 0)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/actions/pending-count", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var resp struct {
		Pending int `json:"pending"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Pending != 0 {
		t.Fatalf("expected zero pending actions, got %d", resp.Pending)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	records := &recordStoreStub{}
	service := newTestService(t, records)
	h := NewActionsHandler(service, 0)
	router := newTestRouter(h)

	for i := 0; i < 3; i++ {
		if _, err := service.Execute(context.Background(), model.ActionRequest{
			Type: enums.ActionTypeBan, GroupID: -1001, UserID: int64(42 + i),
		}); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/actions/history?group_id=-1001&limit=2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Total   int64 `json:"total"`
		Actions []struct {
			ActionType string `json:"action_type"`
		} `json:"actions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 || len(resp.Actions) != 2 {
		t.Fatalf("unexpected history page: total=%d len=%d", resp.Total, len(resp.Actions))
	}

	req = httptest.NewRequest(http.MethodGet, "/actions/history?group_id=abc", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad group_id: unexpected status %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/actions/history?group_id=-1001&status=bogus", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: unexpected status %d", rr.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	records := &recordStoreStub{}
	service := newTestService(t, records)
	h := NewActionsHandler(service, 0)
	router := newTestRouter(h)

	if _, err := service.Execute(context.Background(), model.ActionRequest{
		Type: enums.ActionTypeBan, GroupID: -1001, UserID: 42,
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/actions/stats/-1001", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Total       int64   `json:"total"`
		Successful  int64   `json:"successful"`
		SuccessRate float64 `json:"success_rate"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Successful != 1 || resp.SuccessRate != 1 {
		t.Fatalf("unexpected stats: %+v", resp)
	}
}
