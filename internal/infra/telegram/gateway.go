package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivankudzin/modactions/internal/domain/model"
	"github.com/ivankudzin/modactions/internal/domain/rules"
)

// Gateway executes moderation operations against the Telegram Bot API.
// With an empty token it runs in dry mode: every operation reports success
// without touching the platform.
type Gateway struct {
	api    *tgbotapi.BotAPI
	dryRun bool
}

func NewGateway(token string) (*Gateway, error) {
	if strings.TrimSpace(token) == "" {
		return &Gateway{dryRun: true}, nil
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Gateway{api: api}, nil
}

func (g *Gateway) DryRun() bool {
	return g == nil || g.dryRun
}

func (g *Gateway) Ban(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	var untilDate int64
	if req.DurationSeconds > 0 {
		untilDate = time.Now().Add(time.Duration(req.DurationSeconds) * time.Second).Unix()
	}

	err := g.request(ctx, "ban", tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: chatMember(req),
		UntilDate:        untilDate,
		RevokeMessages:   true,
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("user %d banned", req.UserID), map[string]any{
		"action": "ban", "user_id": req.UserID,
	}), nil
}

// Kick is a ban immediately followed by an unban, which removes the user
// without leaving them on the ban list.
func (g *Gateway) Kick(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	if err := g.request(ctx, "kick", tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: chatMember(req),
	}); err != nil {
		return model.PlatformResult{}, err
	}
	if err := g.request(ctx, "kick", tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: chatMember(req),
		OnlyIfBanned:     true,
	}); err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("user %d kicked", req.UserID), map[string]any{
		"action": "kick", "user_id": req.UserID,
	}), nil
}

func (g *Gateway) Mute(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	duration := req.DurationSeconds
	if duration <= 0 {
		duration = 3600
	}

	err := g.request(ctx, "mute", tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: chatMember(req),
		UntilDate:        time.Now().Add(time.Duration(duration) * time.Second).Unix(),
		Permissions:      &tgbotapi.ChatPermissions{},
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("user %d muted for %ds", req.UserID, duration), map[string]any{
		"action": "mute", "user_id": req.UserID, "duration": duration,
	}), nil
}

func (g *Gateway) Unmute(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "unmute", tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: chatMember(req),
		Permissions:      fullMemberPermissions(),
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("user %d unmuted", req.UserID), map[string]any{
		"action": "unmute", "user_id": req.UserID,
	}), nil
}

func (g *Gateway) Promote(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "promote", tgbotapi.PromoteChatMemberConfig{
		ChatMemberConfig:   chatMember(req),
		CanManageChat:      true,
		CanDeleteMessages:  true,
		CanRestrictMembers: true,
		CanInviteUsers:     true,
		CanPinMessages:     true,
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	payload := map[string]any{"action": "promote", "user_id": req.UserID}
	if req.Title != "" {
		payload["title"] = req.Title
	}
	return result(fmt.Sprintf("user %d promoted to admin", req.UserID), payload), nil
}

func (g *Gateway) Demote(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "demote", tgbotapi.PromoteChatMemberConfig{
		ChatMemberConfig: chatMember(req),
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("user %d demoted", req.UserID), map[string]any{
		"action": "demote", "user_id": req.UserID,
	}), nil
}

// Warn posts a warning notice into the group; the warning counter itself is
// kept by the executor's warning store.
func (g *Gateway) Warn(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	text := fmt.Sprintf("⚠️ User %d has been warned.", req.UserID)
	if req.Reason != "" {
		text = fmt.Sprintf("⚠️ User %d has been warned: %s", req.UserID, req.Reason)
	}

	if err := g.request(ctx, "warn", tgbotapi.NewMessage(req.GroupID, text)); err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("user %d warned", req.UserID), map[string]any{
		"action": "warn", "user_id": req.UserID,
	}), nil
}

func (g *Gateway) Pin(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "pin", tgbotapi.PinChatMessageConfig{
		ChatID:              req.GroupID,
		MessageID:           int(req.MessageID),
		DisableNotification: !metadataBool(req, "notify", true),
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("message %d pinned", req.MessageID), map[string]any{
		"action": "pin", "message_id": req.MessageID,
	}), nil
}

func (g *Gateway) Unpin(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "unpin", tgbotapi.UnpinChatMessageConfig{
		ChatID:    req.GroupID,
		MessageID: int(req.MessageID),
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("message %d unpinned", req.MessageID), map[string]any{
		"action": "unpin", "message_id": req.MessageID,
	}), nil
}

func (g *Gateway) DeleteMessage(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "delete_message", tgbotapi.NewDeleteMessage(req.GroupID, int(req.MessageID)))
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("message %d deleted", req.MessageID), map[string]any{
		"action": "delete_message", "message_id": req.MessageID,
	}), nil
}

func (g *Gateway) Restrict(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	permissions := &tgbotapi.ChatPermissions{
		CanSendMessages:       metadataBool(req, "can_send_messages", false),
		CanSendMediaMessages:  metadataBool(req, "can_send_media_messages", false),
		CanSendPolls:          metadataBool(req, "can_send_polls", false),
		CanSendOtherMessages:  metadataBool(req, "can_send_other_messages", false),
		CanAddWebPagePreviews: metadataBool(req, "can_add_web_page_previews", false),
		CanInviteUsers:        metadataBool(req, "can_invite_users", false),
	}

	var untilDate int64
	if req.DurationSeconds > 0 {
		untilDate = time.Now().Add(time.Duration(req.DurationSeconds) * time.Second).Unix()
	}

	err := g.request(ctx, "restrict", tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: chatMember(req),
		UntilDate:        untilDate,
		Permissions:      permissions,
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("user %d restricted", req.UserID), map[string]any{
		"action": "restrict", "user_id": req.UserID,
	}), nil
}

func (g *Gateway) Unrestrict(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "unrestrict", tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: chatMember(req),
		Permissions:      fullMemberPermissions(),
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("user %d unrestricted", req.UserID), map[string]any{
		"action": "unrestrict", "user_id": req.UserID,
	}), nil
}

// Purge deletes up to message_count messages walking backwards from the
// anchor message id. Individual delete failures are skipped: recent history
// usually contains ids the bot cannot remove.
func (g *Gateway) Purge(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	count := rules.PurgeCount(req)
	anchor := req.MessageID
	if anchor <= 0 {
		return model.PlatformResult{}, &model.PlatformError{
			Op:  "purge",
			Err: errors.New("purge requires an anchor message id"),
		}
	}

	deleted := 0
	for offset := int64(0); offset < int64(count); offset++ {
		messageID := anchor - offset
		if messageID <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return model.PlatformResult{}, &model.PlatformError{Op: "purge", Transient: true, Err: err}
		}
		if err := g.request(ctx, "purge", tgbotapi.NewDeleteMessage(req.GroupID, int(messageID))); err != nil {
			var perr *model.PlatformError
			if errors.As(err, &perr) && perr.Transient {
				return model.PlatformResult{}, err
			}
			continue
		}
		deleted++
	}

	return result(fmt.Sprintf("purged %d message(s)", deleted), map[string]any{
		"action": "purge", "deleted": deleted, "requested": count,
	}), nil
}

// SetRole grants a reduced admin right set; Telegram has no named custom
// roles, so the role name travels in the diagnostic payload only.
func (g *Gateway) SetRole(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "set_role", tgbotapi.PromoteChatMemberConfig{
		ChatMemberConfig:  chatMember(req),
		CanManageChat:     true,
		CanDeleteMessages: true,
		CanPinMessages:    true,
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("role %q assigned to user %d", req.Role, req.UserID), map[string]any{
		"action": "set_role", "user_id": req.UserID, "role": req.Role,
	}), nil
}

func (g *Gateway) RemoveRole(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "remove_role", tgbotapi.PromoteChatMemberConfig{
		ChatMemberConfig: chatMember(req),
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("role %q removed from user %d", req.Role, req.UserID), map[string]any{
		"action": "remove_role", "user_id": req.UserID, "role": req.Role,
	}), nil
}

// Lockdown revokes default member permissions for the whole group.
func (g *Gateway) Lockdown(ctx context.Context, req model.ActionRequest) (model.PlatformResult, error) {
	err := g.request(ctx, "lockdown", tgbotapi.SetChatPermissionsConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: req.GroupID},
		Permissions: &tgbotapi.ChatPermissions{},
	})
	if err != nil {
		return model.PlatformResult{}, err
	}

	return result(fmt.Sprintf("group %d locked down", req.GroupID), map[string]any{
		"action": "lockdown", "group_id": req.GroupID,
	}), nil
}

func (g *Gateway) request(ctx context.Context, op string, c tgbotapi.Chattable) error {
	if g == nil || g.dryRun {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &model.PlatformError{Op: op, Transient: true, Err: err}
	}

	if _, err := g.api.Request(c); err != nil {
		return classify(op, err)
	}
	return nil
}

// classify maps Telegram API failures onto the executor's transient vs
// permanent taxonomy. Rate limits and platform-side errors are transient;
// bad requests and missing permissions are permanent. Transport errors
// without an API code are treated as transient.
func classify(op string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		transient := apiErr.Code == 429 || apiErr.Code >= 500
		return &model.PlatformError{
			Op:        op,
			Code:      apiErr.Code,
			Transient: transient,
			Err:       err,
		}
	}

	return &model.PlatformError{Op: op, Transient: true, Err: err}
}

func chatMember(req model.ActionRequest) tgbotapi.ChatMemberConfig {
	return tgbotapi.ChatMemberConfig{
		ChatID: req.GroupID,
		UserID: req.UserID,
	}
}

func fullMemberPermissions() *tgbotapi.ChatPermissions {
	return &tgbotapi.ChatPermissions{
		CanSendMessages:       true,
		CanSendMediaMessages:  true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
	}
}

func metadataBool(req model.ActionRequest, key string, fallback bool) bool {
	if req.Metadata == nil {
		return fallback
	}
	if v, ok := req.Metadata[key].(bool); ok {
		return v
	}
	return fallback
}

func result(message string, payload map[string]any) model.PlatformResult {
	return model.PlatformResult{Message: message, Payload: payload}
}
