package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
)

var ErrActionRecordNotFound = errors.New("action record not found")

type ActionRepo struct {
	pool *pgxpool.Pool
}

func NewActionRepo(pool *pgxpool.Pool) *ActionRepo {
	return &ActionRepo{pool: pool}
}

func (r *ActionRepo) AppendActionRecord(ctx context.Context, record model.ActionRecord) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(record.ActionID) == "" {
		return fmt.Errorf("action id is required")
	}

	platformResponse, err := marshalJSONB(record.PlatformResponse)
	if err != nil {
		return fmt.Errorf("encode platform response: %w", err)
	}
	metadata, err := marshalJSONB(record.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO action_records (
	action_id,
	action_type,
	group_id,
	user_id,
	initiated_by,
	status,
	success,
	message,
	error,
	reason,
	execution_time_ms,
	retry_count,
	platform_response,
	metadata,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
`,
		record.ActionID,
		string(record.Type),
		record.GroupID,
		record.UserID,
		record.InitiatedBy,
		string(record.Status),
		record.Success,
		record.Message,
		record.Error,
		record.Reason,
		record.ExecutionTimeMS,
		record.RetryCount,
		platformResponse,
		metadata,
	); err != nil {
		return fmt.Errorf("append action record: %w", err)
	}

	return nil
}

func (r *ActionRepo) GetActionRecord(ctx context.Context, actionID string) (model.ActionRecord, error) {
	if r.pool == nil {
		return model.ActionRecord{}, ErrActionRecordNotFound
	}
	if strings.TrimSpace(actionID) == "" {
		return model.ActionRecord{}, fmt.Errorf("action id is required")
	}

	row := r.pool.QueryRow(ctx, `
SELECT action_id,
       action_type,
       group_id,
       user_id,
       initiated_by,
       status,
       success,
       message,
       error,
       reason,
       execution_time_ms,
       retry_count,
       platform_response,
       metadata,
       created_at,
       updated_at
FROM action_records
WHERE action_id = $1
`, actionID)

	record, err := scanActionRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ActionRecord{}, ErrActionRecordNotFound
		}
		return model.ActionRecord{}, fmt.Errorf("get action record: %w", err)
	}

	return record, nil
}

func (r *ActionRepo) UpdateActionStatus(ctx context.Context, actionID string, status enums.ActionStatus) error {
	if r.pool == nil {
		return ErrActionRecordNotFound
	}
	if strings.TrimSpace(actionID) == "" {
		return fmt.Errorf("action id is required")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE action_records
SET status = $2,
    updated_at = NOW()
WHERE action_id = $1
`, actionID, string(status))
	if err != nil {
		return fmt.Errorf("update action status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrActionRecordNotFound
	}

	return nil
}

func (r *ActionRepo) QueryHistory(ctx context.Context, groupID int64, limit, skip int, status enums.ActionStatus) (model.ActionHistory, error) {
	if r.pool == nil {
		return model.ActionHistory{}, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}

	countQuery := `SELECT COUNT(*) FROM action_records WHERE group_id = $1`
	countArgs := []any{groupID}
	if status != "" {
		countQuery += ` AND status = $2`
		countArgs = append(countArgs, string(status))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return model.ActionHistory{}, fmt.Errorf("count action history: %w", err)
	}

	query := `
SELECT action_id,
       action_type,
       group_id,
       user_id,
       initiated_by,
       status,
       success,
       message,
       error,
       reason,
       execution_time_ms,
       retry_count,
       platform_response,
       metadata,
       created_at,
       updated_at
FROM action_records
WHERE group_id = $1
`
	args := []any{groupID}
	if status != "" {
		query += ` AND status = $2
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`
		args = append(args, string(status), limit, skip)
	} else {
		query += `ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
		args = append(args, limit, skip)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return model.ActionHistory{}, fmt.Errorf("query action history: %w", err)
	}
	defer rows.Close()

	actions := make([]model.ActionRecord, 0, limit)
	for rows.Next() {
		record, err := scanActionRecord(rows)
		if err != nil {
			return model.ActionHistory{}, fmt.Errorf("scan action history row: %w", err)
		}
		actions = append(actions, record)
	}
	if err := rows.Err(); err != nil {
		return model.ActionHistory{}, fmt.Errorf("iterate action history: %w", err)
	}

	return model.ActionHistory{Total: total, Actions: actions}, nil
}

func (r *ActionRepo) GroupStats(ctx context.Context, groupID int64) (model.GroupStats, error) {
	if r.pool == nil {
		return model.GroupStats{}, fmt.Errorf("postgres pool is nil")
	}

	stats := model.GroupStats{GroupID: groupID}
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE success),
       COUNT(*) FILTER (WHERE NOT success)
FROM action_records
WHERE group_id = $1
`, groupID).Scan(&stats.Total, &stats.Successful, &stats.Failed)
	if err != nil {
		return model.GroupStats{}, fmt.Errorf("query group stats: %w", err)
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total) * 100
	}
	return stats, nil
}

// ListRecordsBefore returns terminal records created before the cutoff, oldest
// first; used by the export job.
func (r *ActionRepo) ListRecordsBefore(ctx context.Context, cutoff string, limit int) ([]model.ActionRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 1000
	}

	rows, err := r.pool.Query(ctx, `
SELECT action_id,
       action_type,
       group_id,
       user_id,
       initiated_by,
       status,
       success,
       message,
       error,
       reason,
       execution_time_ms,
       retry_count,
       platform_response,
       metadata,
       created_at,
       updated_at
FROM action_records
WHERE created_at < $1::timestamptz
ORDER BY created_at ASC
LIMIT $2
`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list action records before cutoff: %w", err)
	}
	defer rows.Close()

	records := make([]model.ActionRecord, 0, limit)
	for rows.Next() {
		record, err := scanActionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action record row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action records: %w", err)
	}

	return records, nil
}

// DeleteRecordsBefore prunes terminal records older than the cutoff and
// returns the number of rows removed.
func (r *ActionRepo) DeleteRecordsBefore(ctx context.Context, cutoff string) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM action_records
WHERE created_at < $1::timestamptz
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete action records before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanActionRecord(row pgx.Row) (model.ActionRecord, error) {
	var record model.ActionRecord
	var actionType, status string
	var platformResponse, metadata []byte

	err := row.Scan(
		&record.ActionID,
		&actionType,
		&record.GroupID,
		&record.UserID,
		&record.InitiatedBy,
		&status,
		&record.Success,
		&record.Message,
		&record.Error,
		&record.Reason,
		&record.ExecutionTimeMS,
		&record.RetryCount,
		&platformResponse,
		&metadata,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return model.ActionRecord{}, err
	}

	record.Type = enums.ActionType(actionType)
	record.Status = enums.ActionStatus(status)
	if err := unmarshalJSONB(platformResponse, &record.PlatformResponse); err != nil {
		return model.ActionRecord{}, fmt.Errorf("decode platform response: %w", err)
	}
	if err := unmarshalJSONB(metadata, &record.Metadata); err != nil {
		return model.ActionRecord{}, fmt.Errorf("decode metadata: %w", err)
	}

	return record, nil
}

func marshalJSONB(value map[string]any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func unmarshalJSONB(raw []byte, target *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}
