package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
	actionssvc "github.com/ivankudzin/modactions/internal/services/actions"
	"github.com/ivankudzin/modactions/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/modactions/internal/transport/http/errors"
)

const maxBatchSize = 100

type ActionsHandler struct {
	service      *actionssvc.Service
	batchTimeout time.Duration
}

func NewActionsHandler(service *actionssvc.Service, batchTimeout time.Duration) *ActionsHandler {
	if batchTimeout <= 0 {
		batchTimeout = 30 * time.Second
	}
	return &ActionsHandler{service: service, batchTimeout: batchTimeout}
}

func (h *ActionsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "EXECUTOR_UNAVAILABLE", "action executor is unavailable")
		return
	}

	var req dto.ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	resp, err := h.service.Execute(r.Context(), toExecutorRequest(req))
	if err != nil {
		if errors.Is(err, actionssvc.ErrInvalidRequest) {
			writeBadRequest(w, "VALIDATION_ERROR", err.Error())
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to execute action")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.FromActionResponse(resp))
}

func (h *ActionsHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "EXECUTOR_UNAVAILABLE", "action executor is unavailable")
		return
	}

	var req dto.BatchActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if len(req.Actions) == 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "batch must contain at least one action")
		return
	}
	if len(req.Actions) > maxBatchSize {
		writeBadRequest(w, "BATCH_TOO_LARGE", "batch exceeds the maximum of 100 actions")
		return
	}

	reqs := make([]model.ActionRequest, len(req.Actions))
	for i, action := range req.Actions {
		reqs[i] = toExecutorRequest(action)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.batchTimeout)
	defer cancel()

	responses := h.service.ExecuteBatch(ctx, reqs)
	httperrors.Write(w, http.StatusOK, dto.FromBatchResponses(responses))
}

func (h *ActionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "EXECUTOR_UNAVAILABLE", "action executor is unavailable")
		return
	}

	actionID := strings.TrimSpace(chi.URLParam(r, "action_id"))
	if actionID == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "action_id is required")
		return
	}

	resp, err := h.service.GetActionStatus(r.Context(), actionID)
	if err != nil {
		if errors.Is(err, actionssvc.ErrActionNotFound) {
			writeNotFound(w, "ACTION_NOT_FOUND", "no action with this id")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load action status")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.FromActionResponse(resp))
}

func (h *ActionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "EXECUTOR_UNAVAILABLE", "action executor is unavailable")
		return
	}

	actionID := strings.TrimSpace(chi.URLParam(r, "action_id"))
	if actionID == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "action_id is required")
		return
	}

	if !h.service.CancelAction(r.Context(), actionID) {
		writeNotFound(w, "ACTION_NOT_FOUND", "no pending action with this id")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CancelResponse{ActionID: actionID, Cancelled: true})
}

func (h *ActionsHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "EXECUTOR_UNAVAILABLE", "action executor is unavailable")
		return
	}

	groupID, err := strconv.ParseInt(r.URL.Query().Get("group_id"), 10, 64)
	if err != nil || groupID >= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "group_id must be a negative group identifier")
		return
	}

	limit := queryInt(r, "limit", 50)
	skip := queryInt(r, "skip", 0)

	var status enums.ActionStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, ok := enums.ParseActionStatus(raw)
		if !ok {
			writeBadRequest(w, "VALIDATION_ERROR", "unknown status filter")
			return
		}
		status = parsed
	}

	history, err := h.service.History(r.Context(), groupID, limit, skip, status)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load action history")
		return
	}

	out := dto.ActionHistoryResponse{
		Total:   history.Total,
		Limit:   limit,
		Skip:    skip,
		Actions: make([]dto.ActionRecord, 0, len(history.Actions)),
	}
	for _, rec := range history.Actions {
		out.Actions = append(out.Actions, dto.FromActionRecord(rec))
	}

	httperrors.Write(w, http.StatusOK, out)
}

func (h *ActionsHandler) PendingCount(w http.ResponseWriter, _ *http.Request) {
	if h.service == nil {
		writeInternal(w, "EXECUTOR_UNAVAILABLE", "action executor is unavailable")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PendingCountResponse{
		Pending: h.service.PendingCount(),
	})
}

func (h *ActionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "EXECUTOR_UNAVAILABLE", "action executor is unavailable")
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "group_id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "group_id must be an integer")
		return
	}

	stats, err := h.service.GroupStats(r.Context(), groupID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load group stats")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.GroupStatsResponse{
		GroupID:     stats.GroupID,
		Total:       stats.Total,
		Successful:  stats.Successful,
		Failed:      stats.Failed,
		SuccessRate: stats.SuccessRate,
	})
}

// toExecutorRequest keeps unparseable action types in the request so the
// executor rejects them itself; batch responses stay aligned with their input
// that way.
func toExecutorRequest(req dto.ActionRequest) model.ActionRequest {
	if m, err := req.ToModel(); err == nil {
		return m
	}
	return model.ActionRequest{
		Type:            enums.ActionType(strings.ToLower(strings.TrimSpace(req.ActionType))),
		GroupID:         req.GroupID,
		UserID:          req.UserID,
		MessageID:       req.MessageID,
		Reason:          req.Reason,
		DurationSeconds: req.Duration,
		Title:           req.Title,
		Role:            req.Role,
		InitiatedBy:     req.InitiatedBy,
		Metadata:        req.Metadata,
		CreatedAt:       time.Now().UTC(),
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
