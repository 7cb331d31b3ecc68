package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/supabase-community/auth-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/infra/blob"
	"github.com/tutorhub/tutorhub/internal/infra/cache"
	"github.com/tutorhub/tutorhub/internal/infra/db"
	"github.com/tutorhub/tutorhub/internal/infra/logger"
	mq "github.com/tutorhub/tutorhub/internal/infra/queue"
	"github.com/tutorhub/tutorhub/internal/modules/handler"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"github.com/tutorhub/tutorhub/internal/modules/repo"
	"github.com/tutorhub/tutorhub/internal/modules/service"
	"github.com/tutorhub/tutorhub/internal/realtime"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		// [optional] auto migrate
		if cfg.Database.AutoMigrate {
			_ = d.AutoMigrate(
				&model.SessionRequest{},
				&model.Participation{},
				&model.Notification{},
				&model.ChatMessage{},
				&model.Subject{},
				&model.Chapter{},
				&model.Material{},
			)
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.New(cfg)
	})

	// RabbitMQ DialFunc for connection and reconnection
	do.Provide(inj, func(i *do.Injector) (mq.DialFunc, error) {
		cfg := do.MustInvoke[*config.Config](i)

		dialFn := func() (*amqp.Connection, error) {
			useTLS := cfg.RabbitMQ.EnableTLS || strings.HasPrefix(cfg.RabbitMQ.URL, "amqps://")

			if useTLS {
				tlsConfig := &tls.Config{
					MinVersion: tls.VersionTLS12,
				}
				url := cfg.RabbitMQ.URL
				if strings.HasPrefix(url, "amqp://") {
					url = strings.Replace(url, "amqp://", "amqps://", 1)
				}
				return amqp.DialTLS(url, tlsConfig)
			}

			return amqp.Dial(cfg.RabbitMQ.URL)
		}

		return dialFn, nil
	})

	// RabbitMQ Connection
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		dialFn := do.MustInvoke[mq.DialFunc](i)
		return dialFn()
	})

	// RabbitMQ Publisher
	do.Provide(inj, func(i *do.Injector) (*mq.Publisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn := do.MustInvoke[*amqp.Connection](i)
		log := do.MustInvoke[*zap.Logger](i)
		dialFn := do.MustInvoke[mq.DialFunc](i)
		return mq.NewPublisher(conn, log, cfg, dialFn)
	})

	// RabbitMQ Consumer for notification delivery
	do.Provide(inj, func(i *do.Injector) (*mq.Consumer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn := do.MustInvoke[*amqp.Connection](i)
		log := do.MustInvoke[*zap.Logger](i)
		c, err := mq.NewConsumer(conn, cfg.RabbitMQ.QueueName.NotificationDeliver, cfg.RabbitMQ.Prefetch, log, cfg)
		if err != nil {
			return nil, err
		}
		if err := c.Bind(cfg.RabbitMQ.ExchangeName.Notification, cfg.RabbitMQ.RoutingKey.NotificationDeliver); err != nil {
			return nil, err
		}
		return c, nil
	})

	// S3
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return blob.NewS3(context.Background(), cfg)
	})

	// Supabase auth client
	do.Provide(inj, func(i *do.Injector) (auth.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return auth.New(cfg.Auth.SupabaseProjectRef, cfg.Auth.SupabaseAPIKey), nil
	})

	// Realtime hub
	do.Provide(inj, func(i *do.Injector) (*realtime.Hub, error) {
		return realtime.NewHub(
			do.MustInvoke[*redis.Client](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.SessionRequestRepo, error) {
		return repo.NewSessionRequestRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ParticipationRepo, error) {
		return repo.NewParticipationRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.NotificationRepo, error) {
		return repo.NewNotificationRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ChatRepo, error) {
		return repo.NewChatRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.SubjectRepo, error) {
		return repo.NewSubjectRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.SessionService, error) {
		return service.NewSessionService(
			do.MustInvoke[repo.SessionRequestRepo](i),
			do.MustInvoke[repo.ParticipationRepo](i),
			do.MustInvoke[*mq.Publisher](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.NotificationService, error) {
		return service.NewNotificationService(
			do.MustInvoke[repo.NotificationRepo](i),
			do.MustInvoke[*realtime.Hub](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ChatService, error) {
		return service.NewChatService(
			do.MustInvoke[repo.ChatRepo](i),
			do.MustInvoke[*redis.Client](i),
			do.MustInvoke[*realtime.Hub](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.MaterialService, error) {
		return service.NewMaterialService(
			do.MustInvoke[repo.SubjectRepo](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ChatbotService, error) {
		return service.NewChatbotService(
			do.MustInvoke[*redis.Client](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.SessionHandler, error) {
		return handler.NewSessionHandler(do.MustInvoke[service.SessionService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.NotificationHandler, error) {
		return handler.NewNotificationHandler(
			do.MustInvoke[service.NotificationService](i),
			do.MustInvoke[*realtime.Hub](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ChatHandler, error) {
		return handler.NewChatHandler(
			do.MustInvoke[service.ChatService](i),
			do.MustInvoke[*realtime.Hub](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.SubjectHandler, error) {
		return handler.NewSubjectHandler(do.MustInvoke[service.MaterialService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ChatbotHandler, error) {
		return handler.NewChatbotHandler(do.MustInvoke[service.ChatbotService](i)), nil
	})
	return inj
}
