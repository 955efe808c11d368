package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
)

var ErrDeadLetterNotFound = errors.New("dead letter not found")

type DeadLetterRepo struct {
	pool *pgxpool.Pool
}

func NewDeadLetterRepo(pool *pgxpool.Pool) *DeadLetterRepo {
	return &DeadLetterRepo{pool: pool}
}

func (r *DeadLetterRepo) AppendDeadLetter(ctx context.Context, record model.DeadLetterRecord) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(record.ActionID) == "" {
		return fmt.Errorf("action id is required")
	}

	request, err := json.Marshal(deadLetterRequest(record.Request))
	if err != nil {
		return fmt.Errorf("encode dead letter request: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO action_dead_letters (
	action_id,
	request,
	error,
	retry_count,
	created_at,
	resolved
) VALUES ($1, $2, $3, $4, NOW(), FALSE)
`, record.ActionID, request, record.Error, record.RetryCount); err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}

	return nil
}

func (r *DeadLetterRepo) ListUnresolved(ctx context.Context, limit int) ([]model.DeadLetterRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id,
       action_id,
       request,
       error,
       retry_count,
       created_at,
       resolved
FROM action_dead_letters
WHERE NOT resolved
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	records := make([]model.DeadLetterRecord, 0, limit)
	for rows.Next() {
		var record model.DeadLetterRecord
		var request []byte
		if err := rows.Scan(
			&record.ID,
			&record.ActionID,
			&request,
			&record.Error,
			&record.RetryCount,
			&record.CreatedAt,
			&record.Resolved,
		); err != nil {
			return nil, fmt.Errorf("scan dead letter row: %w", err)
		}

		var stored storedDeadLetterRequest
		if len(request) > 0 {
			if err := json.Unmarshal(request, &stored); err != nil {
				return nil, fmt.Errorf("decode dead letter request: %w", err)
			}
		}
		record.Request = stored.toModel()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}

	return records, nil
}

func (r *DeadLetterRepo) MarkResolved(ctx context.Context, id int64) error {
	if r.pool == nil {
		return ErrDeadLetterNotFound
	}
	if id <= 0 {
		return fmt.Errorf("invalid dead letter id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE action_dead_letters
SET resolved = TRUE
WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("mark dead letter resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeadLetterNotFound
	}

	return nil
}

// storedDeadLetterRequest keeps the persisted request shape stable and
// replayable independently of the in-memory model.
type storedDeadLetterRequest struct {
	ActionType      string         `json:"action_type"`
	GroupID         int64          `json:"group_id"`
	UserID          int64          `json:"user_id,omitempty"`
	MessageID       int64          `json:"message_id,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	DurationSeconds int            `json:"duration_seconds,omitempty"`
	Title           string         `json:"title,omitempty"`
	Role            string         `json:"role,omitempty"`
	InitiatedBy     int64          `json:"initiated_by,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty"`
}

func deadLetterRequest(req model.ActionRequest) storedDeadLetterRequest {
	stored := storedDeadLetterRequest{
		ActionType:      string(req.Type),
		GroupID:         req.GroupID,
		UserID:          req.UserID,
		MessageID:       req.MessageID,
		Reason:          req.Reason,
		DurationSeconds: req.DurationSeconds,
		Title:           req.Title,
		Role:            req.Role,
		InitiatedBy:     req.InitiatedBy,
		Metadata:        req.Metadata,
	}
	if !req.CreatedAt.IsZero() {
		stored.CreatedAt = req.CreatedAt.UTC().Format(time.RFC3339)
	}
	return stored
}

func (s storedDeadLetterRequest) toModel() model.ActionRequest {
	req := model.ActionRequest{
		Type:            enums.ActionType(s.ActionType),
		GroupID:         s.GroupID,
		UserID:          s.UserID,
		MessageID:       s.MessageID,
		Reason:          s.Reason,
		DurationSeconds: s.DurationSeconds,
		Title:           s.Title,
		Role:            s.Role,
		InitiatedBy:     s.InitiatedBy,
		Metadata:        s.Metadata,
	}
	if s.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, s.CreatedAt); err == nil {
			req.CreatedAt = ts
		}
	}
	return req
}
