package botapp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ivankudzin/modactions/internal/domain/enums"
	"github.com/ivankudzin/modactions/internal/domain/model"
	tginfra "github.com/ivankudzin/modactions/internal/infra/telegram"
)

var commandActions = map[string]enums.ActionType{
	"ban":      enums.ActionTypeBan,
	"kick":     enums.ActionTypeKick,
	"mute":     enums.ActionTypeMute,
	"unmute":   enums.ActionTypeUnmute,
	"promote":  enums.ActionTypePromote,
	"demote":   enums.ActionTypeDemote,
	"warn":     enums.ActionTypeWarn,
	"pin":      enums.ActionTypePin,
	"unpin":    enums.ActionTypeUnpin,
	"del":      enums.ActionTypeDeleteMessage,
	"purge":    enums.ActionTypePurge,
	"lockdown": enums.ActionTypeLockdown,
	"setrole":  enums.ActionTypeSetRole,
	"unrole":   enums.ActionTypeRemoveRole,
}

// buildActionRequest turns a group command into an executor request. The
// target user comes from the replied-to message or from the first numeric
// argument; message-level actions take the replied-to message as anchor.
func buildActionRequest(update tginfra.CommandUpdate) (model.ActionRequest, error) {
	actionType, ok := commandActions[strings.ToLower(strings.TrimSpace(update.Command))]
	if !ok {
		return model.ActionRequest{}, fmt.Errorf("unknown command %q", update.Command)
	}

	req := model.ActionRequest{
		Type:        actionType,
		GroupID:     update.ChatID,
		UserID:      update.ReplyToUserID,
		MessageID:   update.ReplyToMessageID,
		InitiatedBy: update.UserID,
		CreatedAt:   time.Now().UTC(),
	}

	args := strings.Fields(update.Args)

	if req.UserID == 0 && len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil && id > 0 {
			req.UserID = id
			args = args[1:]
		}
	}

	switch actionType {
	case enums.ActionTypeMute:
		duration := time.Hour
		if len(args) > 0 {
			parsed, err := parseDurationArg(args[0])
			if err != nil {
				return model.ActionRequest{}, fmt.Errorf("invalid duration %q", args[0])
			}
			duration = parsed
			args = args[1:]
		}
		req.DurationSeconds = int(duration / time.Second)
		req.Reason = strings.Join(args, " ")

	case enums.ActionTypePurge:
		count := 100
		if len(args) > 0 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed <= 0 {
				return model.ActionRequest{}, fmt.Errorf("invalid message count %q", args[0])
			}
			count = parsed
			args = args[1:]
		}
		req.Metadata = map[string]any{"message_count": count}
		if req.MessageID == 0 {
			req.MessageID = update.MessageID
		}

	case enums.ActionTypeSetRole, enums.ActionTypeRemoveRole:
		if len(args) == 0 {
			return model.ActionRequest{}, fmt.Errorf("role name is required")
		}
		req.Role = args[0]
		req.Reason = strings.Join(args[1:], " ")

	case enums.ActionTypePin, enums.ActionTypeUnpin, enums.ActionTypeDeleteMessage:
		if req.MessageID == 0 {
			return model.ActionRequest{}, fmt.Errorf("reply to the target message")
		}

	default:
		req.Reason = strings.Join(args, " ")
	}

	if actionType != enums.ActionTypeLockdown && req.UserID == 0 {
		switch actionType {
		case enums.ActionTypePin, enums.ActionTypeUnpin, enums.ActionTypeDeleteMessage, enums.ActionTypePurge:
			// message-level actions we attribute to the command issuer
			req.UserID = update.UserID
		default:
			return model.ActionRequest{}, fmt.Errorf("reply to a user or pass a user id")
		}
	}

	return req, nil
}

func parseDurationArg(raw string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return time.Duration(seconds) * time.Second, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("unparseable duration")
	}
	return d, nil
}

func formatActionReply(resp model.ActionResponse) string {
	if resp.Success {
		return fmt.Sprintf("✅ %s", resp.Message)
	}
	if resp.Status == enums.ActionStatusCancelled {
		return fmt.Sprintf("🚫 action %s cancelled", resp.ActionID)
	}
	if resp.Error != "" {
		return fmt.Sprintf("❌ %s (%s)", resp.Message, resp.Error)
	}
	return fmt.Sprintf("❌ %s", resp.Message)
}

func formatStatusReply(resp model.ActionResponse) string {
	return fmt.Sprintf("action %s: %s (retries: %d)", resp.ActionID, resp.Status, resp.RetryCount)
}
