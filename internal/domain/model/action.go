package model

import (
	"time"

	"github.com/ivankudzin/modactions/internal/domain/enums"
)

// ActionRequest describes one moderation operation against a chat group.
// A request is immutable once constructed.
type ActionRequest struct {
	Type            enums.ActionType
	GroupID         int64
	UserID          int64
	MessageID       int64
	Reason          string
	DurationSeconds int
	Title           string
	Role            string
	InitiatedBy     int64
	Metadata        map[string]any
	CreatedAt       time.Time
}

// ActionResponse is the terminal (or, for in-flight lookups, transient)
// outcome of one action.
type ActionResponse struct {
	ActionID         string
	Type             enums.ActionType
	GroupID          int64
	UserID           int64
	Status           enums.ActionStatus
	Success          bool
	Message          string
	Error            string
	Timestamp        time.Time
	ExecutionTimeMS  int64
	RetryCount       int
	PlatformResponse map[string]any
}

// ActionRecord is the durable form of a terminal response, enriched with
// request context for audit queries.
type ActionRecord struct {
	ActionID         string
	Type             enums.ActionType
	GroupID          int64
	UserID           int64
	InitiatedBy      int64
	Status           enums.ActionStatus
	Success          bool
	Message          string
	Error            string
	Reason           string
	ExecutionTimeMS  int64
	RetryCount       int
	PlatformResponse map[string]any
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DeadLetterRecord captures an action whose retries were exhausted, with the
// full original request retained for manual replay.
type DeadLetterRecord struct {
	ID         int64
	ActionID   string
	Request    ActionRequest
	Error      string
	RetryCount int
	CreatedAt  time.Time
	Resolved   bool
}

type ActionHistory struct {
	Total   int64
	Actions []ActionRecord
}

type GroupStats struct {
	GroupID     int64
	Total       int64
	Successful  int64
	Failed      int64
	SuccessRate float64
}

type WarningCount struct {
	GroupID   int64
	UserID    int64
	Count     int
	UpdatedAt time.Time
}
