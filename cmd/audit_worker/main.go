package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/JoeShih716/go-credit-ledger/internal/app/audit"
	"github.com/JoeShih716/go-credit-ledger/internal/app/audit/adapter/out/mongodb"
	rabbitmq_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/rabbitmq"
	"github.com/JoeShih716/go-credit-ledger/internal/config"
	"github.com/JoeShih716/go-credit-ledger/pkg/logger"
)

// audit_worker 從 RabbitMQ 消費交易事件，寫入 MongoDB 稽核紀錄
func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. MongoDB
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mongodb client")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to disconnect mongodb")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal().Err(err).Msg("mongodb is not responding")
	}
	log.Info().Str("database", cfg.MongoDB.Database).Msg("connected to mongodb")
	repo := mongodb.NewAuditRepository(mongoClient, cfg.MongoDB.Database, cfg.MongoDB.Collection)

	// 2. RabbitMQ
	rabbit := cfg.Events.RabbitMQ
	conn, ch, err := rabbitmq_adapter.Dial(rabbit.URL, "audit_worker")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer conn.Close()
	defer ch.Close()

	// 一次只拿一則，等 Ack 之後才送下一則
	if err := ch.Qos(1, 0, false); err != nil {
		log.Fatal().Err(err).Msg("failed to set qos")
	}
	if err := rabbitmq_adapter.DeclareExchange(ch, rabbit.Exchange); err != nil {
		log.Fatal().Err(err).Msg("failed to declare exchange")
	}
	q, err := ch.QueueDeclare(
		rabbit.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare queue")
	}
	if err := ch.QueueBind(q.Name, rabbit.BindingKey, rabbit.Exchange, false, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to bind queue")
	}

	deliveries, err := ch.Consume(
		q.Name,
		"audit_worker", // consumer tag
		false,          // auto-ack，由 Worker 手動 Ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	log.Info().Str("queue", q.Name).Str("binding_key", rabbit.BindingKey).Msg("audit worker started")
	if err := audit.NewWorker(repo).Run(ctx, deliveries); err != nil && ctx.Err() == nil {
		// channel 被關閉，交給外部 (docker) 重啟
		log.Fatal().Err(err).Msg("audit worker stopped")
	}
	log.Info().Msg("shutting down worker...")
}
