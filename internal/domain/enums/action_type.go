package enums

import "strings"

type ActionType string

const (
	ActionTypeBan           ActionType = "ban"
	ActionTypeKick          ActionType = "kick"
	ActionTypeMute          ActionType = "mute"
	ActionTypeUnmute        ActionType = "unmute"
	ActionTypePromote       ActionType = "promote"
	ActionTypeDemote        ActionType = "demote"
	ActionTypeWarn          ActionType = "warn"
	ActionTypePin           ActionType = "pin"
	ActionTypeUnpin         ActionType = "unpin"
	ActionTypeDeleteMessage ActionType = "delete_message"
	ActionTypeRestrict      ActionType = "restrict"
	ActionTypeUnrestrict    ActionType = "unrestrict"
	ActionTypePurge         ActionType = "purge"
	ActionTypeSetRole       ActionType = "set_role"
	ActionTypeRemoveRole    ActionType = "remove_role"
	ActionTypeLockdown      ActionType = "lockdown"
)

var allActionTypes = []ActionType{
	ActionTypeBan,
	ActionTypeKick,
	ActionTypeMute,
	ActionTypeUnmute,
	ActionTypePromote,
	ActionTypeDemote,
	ActionTypeWarn,
	ActionTypePin,
	ActionTypeUnpin,
	ActionTypeDeleteMessage,
	ActionTypeRestrict,
	ActionTypeUnrestrict,
	ActionTypePurge,
	ActionTypeSetRole,
	ActionTypeRemoveRole,
	ActionTypeLockdown,
}

func ParseActionType(raw string) (ActionType, bool) {
	value := ActionType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range allActionTypes {
		if t == value {
			return t, true
		}
	}
	return "", false
}

func ActionTypes() []ActionType {
	out := make([]ActionType, len(allActionTypes))
	copy(out, allActionTypes)
	return out
}
