package rules

import (
	"fmt"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
)

const (
	MinMuteDurationSec = 60
	MaxPurgeCount      = 10000
	MaxRoleNameLength  = 50
)

// ValidateActionRequest checks platform sign conventions and per-type
// required fields. Telegram group ids are negative, user and message ids
// positive. A request failing validation is rejected before dispatch and
// never retried.
func ValidateActionRequest(req model.ActionRequest) error {
	if _, ok := enums.ParseActionType(string(req.Type)); !ok {
		return fmt.Errorf("unknown action type %q", req.Type)
	}
	if req.GroupID >= 0 {
		return fmt.Errorf("group id must be a negative integer")
	}

	if req.Type != enums.ActionTypeLockdown {
		if req.UserID <= 0 {
			return fmt.Errorf("user id must be a positive integer")
		}
	}

	switch req.Type {
	case enums.ActionTypePin, enums.ActionTypeUnpin, enums.ActionTypeDeleteMessage:
		if req.MessageID <= 0 {
			return fmt.Errorf("message id must be a positive integer")
		}
	case enums.ActionTypeMute:
		if req.DurationSeconds != 0 && req.DurationSeconds < MinMuteDurationSec {
			return fmt.Errorf("mute duration must be at least %d seconds", MinMuteDurationSec)
		}
	case enums.ActionTypePurge:
		if count := PurgeCount(req); count < 1 || count > MaxPurgeCount {
			return fmt.Errorf("purge message count must be between 1 and %d", MaxPurgeCount)
		}
	case enums.ActionTypeSetRole, enums.ActionTypeRemoveRole:
		if req.Role == "" || len(req.Role) > MaxRoleNameLength {
			return fmt.Errorf("role must be 1-%d characters", MaxRoleNameLength)
		}
	}

	return nil
}

// PurgeCount extracts the requested purge size from metadata, defaulting
// to 100 when absent.
func PurgeCount(req model.ActionRequest) int {
	if req.Metadata != nil {
		switch v := req.Metadata["message_count"].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 100
}
