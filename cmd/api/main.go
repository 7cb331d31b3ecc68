package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/supabase-community/auth-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tutorhub/tutorhub/internal/bootstrap"
	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/infra/cache"
	"github.com/tutorhub/tutorhub/internal/infra/db"
	mq "github.com/tutorhub/tutorhub/internal/infra/queue"
	"github.com/tutorhub/tutorhub/internal/modules/handler"
	"github.com/tutorhub/tutorhub/internal/modules/service"
	"github.com/tutorhub/tutorhub/internal/pkg/tokenizer"
	"github.com/tutorhub/tutorhub/internal/router"
	"github.com/tutorhub/tutorhub/internal/telemetry"
)

const reconcileInterval = 5 * time.Minute

// reconcileWindow bounds how far back the sweep looks for decided sessions
// missing their notification.
const reconcileWindow = 24 * time.Hour

//	@title			TutorHub API
//	@version		0.1
//	@description	Backend for the TutorHub tutoring app: session requests, notifications, chat, study materials.
//	@BasePath		/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in				header
//	@name			Authorization
func main() {
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// tracing before instrumented clients
	if _, err := telemetry.SetupTracing(cfg); err != nil {
		log.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	gormDB := do.MustInvoke[*gorm.DB](inj)
	if cfg.Telemetry.Enabled {
		if err := db.RegisterOpenTelemetryPlugin(gormDB); err != nil {
			log.Warn("gorm otel plugin failed", zap.Error(err))
		}
		rdb := do.MustInvoke[*redis.Client](inj)
		if err := cache.RegisterOpenTelemetryPlugin(rdb); err != nil {
			log.Warn("redis otel plugin failed", zap.Error(err))
		}
	}

	if err := tokenizer.Init(log); err != nil {
		log.Warn("tokenizer init failed, falling back to estimates", zap.Error(err))
	}

	engine := router.NewRouter(router.RouterDeps{
		Config:              cfg,
		Log:                 log,
		AuthClient:          do.MustInvoke[auth.Client](inj),
		SessionHandler:      do.MustInvoke[*handler.SessionHandler](inj),
		NotificationHandler: do.MustInvoke[*handler.NotificationHandler](inj),
		ChatHandler:         do.MustInvoke[*handler.ChatHandler](inj),
		SubjectHandler:      do.MustInvoke[*handler.SubjectHandler](inj),
		ChatbotHandler:      do.MustInvoke[*handler.ChatbotHandler](inj),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	notifSvc := do.MustInvoke[service.NotificationService](inj)
	consumer := do.MustInvoke[*mq.Consumer](inj)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// notification delivery consumer
	g.Go(func() error {
		err := consumer.Handle(gctx, func(body []byte) error {
			var ev service.NotificationEvent
			if err := sonic.Unmarshal(body, &ev); err != nil {
				// Malformed payloads would requeue forever; log and drop.
				log.Error("malformed notification event", zap.Error(err))
				return nil
			}
			return notifSvc.Deliver(gctx, ev)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// reconcile sweep for decisions whose notification was lost
	g.Go(func() error {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := notifSvc.Reconcile(gctx, time.Now().Add(-reconcileWindow)); err != nil {
					log.Error("reconcile sweep failed", zap.Error(err))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("shutdown complete")
}
