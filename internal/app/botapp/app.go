package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ivankudzin/modactions/internal/config"
	tginfra "github.com/ivankudzin/modactions/internal/infra/telegram"
	pgrepo "github.com/ivankudzin/modactions/internal/repo/postgres"
	actionssvc "github.com/ivankudzin/modactions/internal/services/actions"
)

// App is the in-chat front end: moderators issue commands in the group and
// the executor runs them through the same pipeline the HTTP API uses.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	bot      *tginfra.Bot
	executor *actionssvc.Service
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		logger.Warn("postgres init failed, continuing without persistence", zap.Error(err))
	} else {
		pool = p
	}

	gateway, err := tginfra.NewGateway(cfg.Bot.Token)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("init telegram gateway: %w", err)
	}
	if gateway.DryRun() {
		logger.Warn("BOT_TOKEN is empty, executing actions in dry-run mode")
	}

	deps := actionssvc.Dependencies{
		Gateway: gateway,
		Logger:  logger,
	}
	if pool != nil {
		deps.Records = pgrepo.NewActionRepo(pool)
		deps.DeadLetters = pgrepo.NewDeadLetterRepo(pool)
		deps.Warnings = pgrepo.NewWarningRepo(pool)
	}
	executor := actionssvc.NewService(deps, actionssvc.Config{
		MaxRetries:  cfg.Executor.MaxRetries,
		BackoffBase: cfg.Executor.BackoffBase,
		MaxBackoff:  cfg.Executor.MaxBackoff,
	})

	var bot *tginfra.Bot
	if strings.TrimSpace(cfg.Bot.Token) != "" {
		bot, err = tginfra.NewBot(cfg.Bot.Token)
		if err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		logger.Warn("BOT_TOKEN is empty, command listener disabled")
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		postgres: pool,
		bot:      bot,
		executor: executor,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	errCh := make(chan error, 1)
	if a.bot != nil {
		go func() {
			errCh <- a.bot.Listen(ctx, tginfra.Handlers{
				OnCommand: a.handleCommand,
			})
		}()
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

func (a *App) handleCommand(ctx context.Context, update tginfra.CommandUpdate) error {
	command := strings.ToLower(strings.TrimSpace(update.Command))

	switch command {
	case "status":
		return a.handleStatus(ctx, update)
	case "pending":
		return a.bot.SendText(ctx, update.ChatID,
			fmt.Sprintf("pending actions: %d", a.executor.PendingCount()))
	}

	if _, ok := commandActions[command]; !ok {
		return nil
	}

	req, err := buildActionRequest(update)
	if err != nil {
		return a.bot.SendText(ctx, update.ChatID, "usage error: "+err.Error())
	}

	resp, err := a.executor.Execute(ctx, req)
	if err != nil {
		if errors.Is(err, actionssvc.ErrInvalidRequest) {
			return a.bot.SendText(ctx, update.ChatID, "invalid request: "+err.Error())
		}
		a.logger.Error("command execution failed",
			zap.String("command", command),
			zap.Error(err),
		)
		return a.bot.SendText(ctx, update.ChatID, "internal error, try again later")
	}

	return a.bot.SendText(ctx, update.ChatID, formatActionReply(resp))
}

func (a *App) handleStatus(ctx context.Context, update tginfra.CommandUpdate) error {
	actionID := strings.TrimSpace(update.Args)
	if actionID == "" {
		return a.bot.SendText(ctx, update.ChatID, "usage: /status <action_id>")
	}

	resp, err := a.executor.GetActionStatus(ctx, actionID)
	if err != nil {
		if errors.Is(err, actionssvc.ErrActionNotFound) {
			return a.bot.SendText(ctx, update.ChatID, "no action with this id")
		}
		return a.bot.SendText(ctx, update.ChatID, "failed to load action status")
	}

	return a.bot.SendText(ctx, update.ChatID, formatStatusReply(resp))
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
}
