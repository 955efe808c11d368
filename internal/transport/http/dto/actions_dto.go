package dto

import (
	"fmt"
	"time"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
)

type ActionRequest struct {
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

func (r ActionRequest) ToModel() (model.ActionRequest, error) {
	actionType, ok := enums.ParseActionType(r.ActionType)
	if !ok {
		return model.ActionRequest{}, fmt.Errorf("unknown action type %q", r.ActionType)
	}

	return model.ActionRequest{
		Type:            actionType,
		GroupID:         r.GroupID,
		UserID:          r.UserID,
		MessageID:       r.MessageID,
		Reason:          r.Reason,
		DurationSeconds: r.Duration,
		Title:           r.Title,
		Role:            r.Role,
		InitiatedBy:     r.InitiatedBy,
		Metadata:        r.Metadata,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

type BatchActionRequest struct {
	Actions []ActionRequest `json:"actions"`
}

type ActionResponse struct {
	ActionID         string         `json:"action_id,omitempty"`
	ActionType       string         `json:"action_type"`
	GroupID          int64          `json:"group_id"`
	UserID           int64          `json:"user_id"`
	Status           string         `json:"status"`
	Success          bool           `json:"success"`
	Message          string         `json:"message,omitempty"`
	Error            string         `json:"error,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	ExecutionTimeMS  int64          `json:"execution_time_ms"`
	RetryCount       int            `json:"retry_count"`
	PlatformResponse map[string]any `json:"platform_response,omitempty"`
}

func FromActionResponse(resp model.ActionResponse) ActionResponse {
	return ActionResponse{
		ActionID:         resp.ActionID,
		ActionType:       string(resp.Type),
		GroupID:          resp.GroupID,
		UserID:           resp.UserID,
		Status:           string(resp.Status),
		Success:          resp.Success,
		Message:          resp.Message,
		Error:            resp.Error,
		Timestamp:        resp.Timestamp,
		ExecutionTimeMS:  resp.ExecutionTimeMS,
		RetryCount:       resp.RetryCount,
		PlatformResponse: resp.PlatformResponse,
	}
}

type BatchActionResponse struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []ActionResponse `json:"results"`
}

func FromBatchResponses(responses []model.ActionResponse) BatchActionResponse {
	out := BatchActionResponse{
		Total:   len(responses),
		Results: make([]ActionResponse, 0, len(responses)),
	}
	for _, resp := range responses {
		if resp.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
		out.Results = append(out.Results, FromActionResponse(resp))
	}
	return out
}

type ActionRecord struct {
	ActionID         string         `json:"action_id"`
	ActionType       string         `json:"action_type"`
	GroupID          int64          `json:"group_id"`
	UserID           int64          `json:"user_id"`
	InitiatedBy      int64          `json:"initiated_by,omitempty"`
	Status           string         `json:"status"`
	Success          bool           `json:"success"`
	Message          string         `json:"message,omitempty"`
	Error            string         `json:"error,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	ExecutionTimeMS  int64          `json:"execution_time_ms"`
	RetryCount       int            `json:"retry_count"`
	PlatformResponse map[string]any `json:"platform_response,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func FromActionRecord(rec model.ActionRecord) ActionRecord {
	return ActionRecord{
		ActionID:         rec.ActionID,
		ActionType:       string(rec.Type),
		GroupID:          rec.GroupID,
		UserID:           rec.UserID,
		InitiatedBy:      rec.InitiatedBy,
		Status:           string(rec.Status),
		Success:          rec.Success,
		Message:          rec.Message,
		Error:            rec.Error,
		Reason:           rec.Reason,
		ExecutionTimeMS:  rec.ExecutionTimeMS,
		RetryCount:       rec.RetryCount,
		PlatformResponse: rec.PlatformResponse,
		Metadata:         rec.Metadata,
		CreatedAt:        rec.CreatedAt,
	}
}

type ActionHistoryResponse struct {
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Skip    int            `json:"skip"`
	Actions []ActionRecord `json:"actions"`
}

type GroupStatsResponse struct {
	GroupID     int64   `json:"group_id"`
	Total       int64   `json:"total"`
	Successful  int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

type PendingCountResponse struct {
	Pending int `json:"pending"`
}

type CancelResponse struct {
	ActionID  string `json:"action_id"`
	Cancelled bool   `json:"cancelled"`
}

type DeadLetter struct {
	ID         int64         `json:"id"`
	ActionID   string        `json:"action_id"`
	Request    ActionRequest `json:"request"`
	Error      string        `json:"error"`
	RetryCount int           `json:"retry_count"`
	CreatedAt  time.Time     `json:"created_at"`
	Resolved   bool          `json:"resolved"`
}

func FromDeadLetter(rec model.DeadLetterRecord) DeadLetter {
	return DeadLetter{
		ID:         rec.ID,
		ActionID:   rec.ActionID,
		Request:    fromRequestModel(rec.Request),
		Error:      rec.Error,
		RetryCount: rec.RetryCount,
		CreatedAt:  rec.CreatedAt,
		Resolved:   rec.Resolved,
	}
}

func fromRequestModel(req model.ActionRequest) ActionRequest {
	return ActionRequest{
		ActionType:  string(req.Type),
		GroupID:     req.GroupID,
		UserID:      req.UserID,
		MessageID:   req.MessageID,
		Reason:      req.Reason,
		Duration:    req.DurationSeconds,
		Title:       req.Title,
		Role:        req.Role,
		InitiatedBy: req.InitiatedBy,
		Metadata:    req.Metadata,
	}
}

type DeadLettersResponse struct {
	Total       int          `json:"total"`
	DeadLetters []DeadLetter `json:"dead_letters"`
}

type WarningsResponse struct {
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
	Count   int   `json:"count"`
}
