package enums

import "strings"

type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusInProgress ActionStatus = "in_progress"
	ActionStatusRetrying   ActionStatus = "retrying"
	ActionStatusSuccess    ActionStatus = "success"
	ActionStatusFailed     ActionStatus = "failed"
	ActionStatusCancelled  ActionStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s ActionStatus) Terminal() bool {
	switch s {
	case ActionStatusSuccess, ActionStatusFailed, ActionStatusCancelled:
		return true
	}
	return false
}

func ParseActionStatus(raw string) (ActionStatus, bool) {
	switch ActionStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionStatusPending:
		return ActionStatusPending, true
	case ActionStatusInProgress:
		return ActionStatusInProgress, true
	case ActionStatusRetrying:
		return ActionStatusRetrying, true
	case ActionStatusSuccess:
		return ActionStatusSuccess, true
	case ActionStatusFailed:
		return ActionStatusFailed, true
	case ActionStatusCancelled:
		return ActionStatusCancelled, true
	}
	return "", false
}
