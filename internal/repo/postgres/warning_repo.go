package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/modactions/internal/domain/model"
)

type WarningRepo struct {
	pool *pgxpool.Pool
}

func NewWarningRepo(pool *pgxpool.Pool) *WarningRepo {
	return &WarningRepo{pool: pool}
}

// IncrementWarnings bumps the per-user warning counter and returns the new
// count. The row is created on first warn.
func (r *WarningRepo) IncrementWarnings(ctx context.Context, groupID, userID int64, delta int) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if groupID >= 0 || userID <= 0 {
		return 0, fmt.Errorf("invalid warning counter payload")
	}
	if delta <= 0 {
		delta = 1
	}

	var count int
	err := r.pool.QueryRow(ctx, `
INSERT INTO user_warnings (group_id, user_id, warning_count, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (group_id, user_id) DO UPDATE SET
	warning_count = user_warnings.warning_count + EXCLUDED.warning_count,
	updated_at = NOW()
RETURNING warning_count
`, groupID, userID, delta).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment warning counter: %w", err)
	}

	return count, nil
}

func (r *WarningRepo) GetWarnings(ctx context.Context, groupID, userID int64) (model.WarningCount, error) {
	if r.pool == nil {
		return model.WarningCount{}, fmt.Errorf("postgres pool is nil")
	}

	warning := model.WarningCount{GroupID: groupID, UserID: userID}
	err := r.pool.QueryRow(ctx, `
SELECT warning_count, updated_at
FROM user_warnings
WHERE group_id = $1 AND user_id = $2
`, groupID, userID).Scan(&warning.Count, &warning.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return warning, nil
		}
		return model.WarningCount{}, fmt.Errorf("get warning counter: %w", err)
	}

	return warning, nil
}

func (r *WarningRepo) ResetWarnings(ctx context.Context, groupID, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE user_warnings
SET warning_count = 0,
    updated_at = NOW()
WHERE group_id = $1 AND user_id = $2
`, groupID, userID); err != nil {
		return fmt.Errorf("reset warning counter: %w", err)
	}

	return nil
}
