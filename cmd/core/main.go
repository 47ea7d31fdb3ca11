package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	grpc_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/rest"
	kafka_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/kafka"
	memory_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/postgres"
	rabbitmq_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/rabbitmq"
	redis_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/internal/config"
	"github.com/JoeShih716/go-credit-ledger/pkg/logger"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
	"github.com/JoeShih716/go-credit-ledger/pkg/postgres"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

func main() {
	// 1. 載入設定
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server exited")
}

// openStore 建立儲存層，測試時可替換
var openStore = newStore

// run 啟動 HTTP 與 gRPC，直到 ctx 結束或任一個 server 出錯
// 所有資源在回傳前關閉，錯誤一律回傳而不是直接結束程式
func run(ctx context.Context, cfg *config.Config) error {
	// 2. 客戶額度表
	directory, err := domain.NewDirectory(cfg.Customers)
	if err != nil {
		return fmt.Errorf("invalid customers: %w", err)
	}

	// 3. 儲存層
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init %s store: %w", cfg.Ledger.Store, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := store.Seed(ctx, directory.Customers()); err != nil {
		return fmt.Errorf("seed balances: %w", err)
	}
	log.Info().Str("store", cfg.Ledger.Store).Int("customers", len(directory.Customers())).Msg("ledger store ready")

	// 4. 事件出口 (可選)
	publisher, closePublisher, err := newPublisher(cfg.Events)
	if err != nil {
		return fmt.Errorf("init %s publisher: %w", cfg.Events.Driver, err)
	}
	defer closePublisher()

	// 5. 初始化 UseCase
	opts := []usecase.Option{usecase.WithStatementSize(cfg.Ledger.StatementSize)}
	if publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
	}
	coreUseCase := usecase.NewCoreUseCase(directory, store, opts...)

	// 6. HTTP (chi)
	routerOpts := []rest.RouterOption{rest.WithTimeout(cfg.HTTP.RequestTimeout)}
	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// 中介層會 Fail Open，Redis 恢復後自動生效
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis is not responding")
		}
		routerOpts = append(routerOpts, rest.WithIdempotency(redis_adapter.NewIdempotencyRepository(redisClient), cfg.HTTP.IdempotencyTTL))
	}
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: rest.NewRouter(rest.NewHandler(coreUseCase), routerOpts...),
	}

	// 7. gRPC
	grpcServer, healthServer := grpc_adapter.NewServer(coreUseCase, cfg.GRPC.Reflection)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPC.Addr, err)
	}

	serveErr := make(chan error, 2)
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("starting grpc server")
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("starting http server")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Graceful Shutdown
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
	case runErr = <-serveErr:
		log.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	grpcServer.GracefulStop()
	return runErr
}

// newStore 依 ledger.store 建立儲存層
func newStore(ctx context.Context, cfg *config.Config) (usecase.Store, error) {
	switch cfg.Ledger.Store {
	case config.StoreMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		log.Info().Str("host", cfg.MySQL.Host).Msg("connected to mysql")
		return mysql_adapter.NewMySQLStore(client), nil

	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return postgres_adapter.NewPostgresStore(pool), nil

	case config.StoreMemory:
		var walOpts []wal.Option
		if cfg.Ledger.WALNoSync {
			walOpts = append(walOpts, wal.WithoutSync())
		}
		w, err := wal.NewWAL(cfg.Ledger.WALPath, walOpts...)
		if err != nil {
			return nil, fmt.Errorf("init wal: %w", err)
		}
		return memory_adapter.NewMutexStore(w), nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Ledger.Store)
}

// newPublisher 依 events.driver 建立事件出口，none 時回傳 nil
func newPublisher(cfg config.EventsConfig) (usecase.EventPublisher, func(), error) {
	switch cfg.Driver {
	case config.EventsRabbitMQ:
		conn, ch, err := rabbitmq_adapter.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.ConnectionName)
		if err != nil {
			return nil, nil, err
		}
		if err := rabbitmq_adapter.DeclareExchange(ch, cfg.RabbitMQ.Exchange); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("connected to rabbitmq")
		return rabbitmq_adapter.NewPublisher(ch, cfg.RabbitMQ.Exchange), closeAll(ch, conn), nil

	case config.EventsKafka:
		p := kafka_adapter.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher ready")
		return p, closeAll(p), nil
	}
	return nil, func() {}, nil
}

func closeAll(closers ...io.Closer) func() {
	return func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("close")
			}
		}
	}
}
