package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"rentdesk/internal/app/audit"
	"rentdesk/internal/app/guard"
	"rentdesk/internal/app/handlers"
	"rentdesk/internal/app/middleware"
	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/policies"
	calendarsvc "rentdesk/internal/app/services/calendar"
	"rentdesk/internal/app/services/quoting"
	"rentdesk/internal/app/uow"
	mongoaudit "rentdesk/internal/infra/audit/mongo"
	s3audit "rentdesk/internal/infra/audit/s3"
	"rentdesk/internal/infra/broker/kafka"
	"rentdesk/internal/infra/config"
	mongodb "rentdesk/internal/infra/db/mongo"
	pgdb "rentdesk/internal/infra/db/postgres"
	"rentdesk/internal/infra/dispatch"
	ginserver "rentdesk/internal/infra/http/gin"
	memlocks "rentdesk/internal/infra/locks/memory"
	mongolocks "rentdesk/internal/infra/locks/mongo"
	pglocks "rentdesk/internal/infra/locks/postgres"
	redislocks "rentdesk/internal/infra/locks/redis"
	"rentdesk/internal/infra/obs"
	"rentdesk/internal/infra/outbox"
	"rentdesk/internal/infra/redisx"
	"rentdesk/internal/infra/storage/memory"
)

const eventSource = "app://rentdesk"

type runner interface {
	Run(ctx context.Context) error
}

type application struct {
	handlers ginserver.Handlers
	buses    handlers.Buses
	recorder *audit.Recorder
	workers  []runner
	checks   map[string]obs.Check
	closers  []func(ctx context.Context) error
}

// stores is what the storage driver contributes to the wiring.
type stores struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	queue       outbox.Queue
	idempotency middleware.IdempotencyStore
	auditSinks  []audit.Sink
	mongo       *mongodb.Client
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{checks: map[string]obs.Check{}}
	clock := func() time.Time { return time.Now().UTC() }

	st, err := app.openStores(ctx, cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	var rdb *goredis.Client
	if cfg.LockDriver == config.DriverRedis {
		rdb = redisx.New(cfg.RedisAddr)
		app.checks["redis"] = func(ctx context.Context) error { return redisx.Ping(ctx, rdb) }
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		st.idempotency = &redisx.IdempotencyStore{Client: rdb, TTL: cfg.IdempotencyTTL}
	}

	locker, txLocker, err := buildLocker(ctx, cfg, st, rdb, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("rentdesk"))
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
	}

	var dispatcher policies.Dispatcher = dispatch.LogDispatcher{Logger: logger}
	if producer != nil {
		dispatcher = &dispatch.KafkaDispatcher{Publisher: producer, Topic: cfg.DispatchTopic, Timeout: 5 * time.Second}
		if st.queue != nil {
			app.workers = append(app.workers, &outbox.Worker{
				Queue:       st.queue,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Source:      eventSource,
				ID:          "rentdesk-" + uuid.NewString()[:8],
				Backoff:     cfg.RetryBackoff,
				Logger:      logger,
			})
		}
	}

	if box, ok := st.outbox.(*memory.Outbox); ok {
		relay := &outbox.Relay{TopicPrefix: cfg.KafkaTopicPrefix, Source: eventSource, Logger: logger}
		if producer != nil {
			relay.Producer = producer
		}
		box.OnFlush = relay.Publish
	}

	sinks := append(audit.MultiSink{audit.LogSink{Logger: logger}}, st.auditSinks...)
	if cfg.S3Endpoint != "" {
		archive, err := s3audit.NewArchive(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		sinks = append(sinks, archive)
	}
	app.recorder = audit.NewRecorder(sinks, audit.Options{
		Buffer:    cfg.AuditBuffer,
		Logger:    logger,
		RequestID: obs.RequestIDFromContext,
	})

	g := &guard.Guard{Locker: locker, TxLocker: txLocker, Factory: st.factory, Timeout: cfg.GuardTimeout, Now: clock, Logger: logger}
	svc := &calendarsvc.Service{
		Factory:    st.factory,
		Guard:      g,
		Quotes:     &quoting.Service{Factory: st.factory, Clock: clock, Logger: logger},
		Outbox:     st.outbox,
		Encoder:    appoutbox.JSONEventEncoder{Source: eventSource},
		Dispatcher: dispatcher,
		Audit:      app.recorder,
		Clock:      clock,
		Logger:     logger,
	}
	app.buses = handlers.Build(handlers.Deps{
		Factory:     st.factory,
		Calendar:    svc,
		Guard:       g,
		Audit:       app.recorder,
		Idempotency: st.idempotency,
		Outbox:      st.outbox,
		Clock:       clock,
		Logger:      logger,
	})
	app.handlers = ginserver.Handlers{
		Calendar: ginserver.CalendarHandler{Commands: app.buses.Commands, Queries: app.buses.Queries, Logger: logger},
		Rates:    ginserver.RatesHandler{Commands: app.buses.Commands, Queries: app.buses.Queries, Logger: logger},
	}
	return app, nil
}

func (a *application) openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.checks["mongo"] = client.Ping
		if err := client.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		box, err := outbox.NewStore(ctx, client.DB)
		if err != nil {
			return nil, err
		}
		idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return nil, err
		}
		sink, err := mongoaudit.NewSink(ctx, client.DB)
		if err != nil {
			return nil, err
		}
		logger.Info("storage ready", "driver", cfg.StorageDriver, "db", cfg.MongoDB)
		return &stores{
			factory:     mongodb.NewFactory(client.DB),
			outbox:      box,
			queue:       box,
			idempotency: idem,
			auditSinks:  []audit.Sink{sink},
			mongo:       client,
		}, nil
	case config.DriverPostgres:
		pool, err := pgdb.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		a.checks["postgres"] = pool.Ping
		if err := pgdb.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		box := pgdb.NewOutbox(pool)
		logger.Info("storage ready", "driver", cfg.StorageDriver)
		return &stores{
			factory:     pgdb.NewFactory(pool),
			outbox:      box,
			queue:       box,
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		}, nil
	default:
		logger.Info("storage ready", "driver", config.DriverMemory)
		return &stores{
			factory:     memory.NewFactory(),
			outbox:      memory.NewOutbox(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		}, nil
	}
}

// buildLocker returns either a standalone locker or, for Postgres, a locker
// that runs inside the guard's own transaction.
func buildLocker(ctx context.Context, cfg config.Config, st *stores, rdb *goredis.Client, logger *slog.Logger) (guard.Locker, guard.TxLocker, error) {
	switch cfg.LockDriver {
	case config.DriverRedis:
		return &redislocks.Locker{Client: rdb, TTL: cfg.LockTTL, Logger: logger}, nil, nil
	case config.DriverMongo:
		l, err := mongolocks.NewLocker(ctx, st.mongo.DB, cfg.LockTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo locker: %w", err)
		}
		l.Logger = logger
		return l, nil, nil
	case config.DriverPostgres:
		return nil, &pglocks.Locker{Logger: logger}, nil
	default:
		return memlocks.NewLocker(), nil, nil
	}
}

// close releases connections in reverse order of opening.
func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
