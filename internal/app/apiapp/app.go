package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/modactions/internal/config"
	s3infra "github.com/ivankudzin/modactions/internal/infra/s3"
	tginfra "github.com/ivankudzin/modactions/internal/infra/telegram"
	"github.com/ivankudzin/modactions/internal/jobs/export"
	pgrepo "github.com/ivankudzin/modactions/internal/repo/postgres"
	redrepo "github.com/ivankudzin/modactions/internal/repo/redis"
	actionssvc "github.com/ivankudzin/modactions/internal/services/actions"
	"github.com/ivankudzin/modactions/internal/transport/pubsub"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler

	listener  *pubsub.Listener
	exportJob *export.Job

	bgCancel context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	gateway, err := tginfra.NewGateway(cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("init telegram gateway: %w", err)
	}
	if gateway.DryRun() {
		log.Warn("bot token is empty, telegram gateway runs in dry-run mode")
	}

	deps := actionssvc.Dependencies{
		Gateway: gateway,
		Logger:  log,
	}
	var (
		actionRepo     *pgrepo.ActionRepo
		deadLetterRepo *pgrepo.DeadLetterRepo
		warningRepo    *pgrepo.WarningRepo
	)
	if pool != nil {
		actionRepo = pgrepo.NewActionRepo(pool)
		deadLetterRepo = pgrepo.NewDeadLetterRepo(pool)
		warningRepo = pgrepo.NewWarningRepo(pool)
		deps.Records = actionRepo
		deps.DeadLetters = deadLetterRepo
		deps.Warnings = warningRepo
	}

	actionService := actionssvc.NewService(deps, actionssvc.Config{
		MaxRetries:  cfg.Executor.MaxRetries,
		BackoffBase: cfg.Executor.BackoffBase,
		MaxBackoff:  cfg.Executor.MaxBackoff,
	})

	routeDeps := Dependencies{
		ActionService: actionService,
		Logger:        log,
		Config:        cfg,
	}
	if deadLetterRepo != nil {
		routeDeps.DeadLetters = deadLetterRepo
	}
	if warningRepo != nil {
		routeDeps.Warnings = warningRepo
	}
	RegisterRoutes(r, routeDeps)

	var listener *pubsub.Listener
	if cfg.PubSub.Enabled {
		resultRepo := redrepo.NewResultRepo(redisClient, cfg.PubSub.ResultPrefix)
		listener = pubsub.NewListener(redisClient, resultRepo, actionService, cfg.PubSub.ActionsChannel, log)
	}

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	var exportJob *export.Job
	if cfg.Export.Enabled && actionRepo != nil && s3Client != nil {
		uploader := export.NewS3Uploader(s3Client, cfg.S3.Bucket)
		exportJob = export.NewJob(actionRepo, uploader, cfg.Export.Retention, log)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
		listener:   listener,
		exportJob:  exportJob,
	}, nil
}

func (a *App) Run() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel

	if a.listener != nil {
		go func() {
			if err := a.listener.Run(bgCtx); err != nil {
				a.logger.Error("action listener exited", zap.Error(err))
			}
		}()
	}
	if a.exportJob != nil {
		go func() {
			if err := a.exportJob.RunLoop(bgCtx, a.cfg.Export.Interval); err != nil {
				a.logger.Error("action export loop exited", zap.Error(err))
			}
		}()
	}

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if a.bgCancel != nil {
		a.bgCancel()
	}
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
