// cmd/dashboard/deps.go
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"passos-predictor/internal/common/aws"
	"passos-predictor/internal/common/camunda"
	"passos-predictor/internal/common/config"
	"passos-predictor/internal/common/database"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/history"
	"passos-predictor/internal/notify"
	"passos-predictor/internal/predictor"

	ppv "passos-predictor/internal/workers/prediction/predict-ponto-de-virada"
)

// dependencies are the optional backends. A backend that is disabled or
// unreachable at startup is replaced by its no-op implementation.
type dependencies struct {
	store    history.Store
	cache    history.Cache
	indexer  history.Indexer
	notifier notify.Notifier
	checks   map[string]func(context.Context) error
	closers  []func() error
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) *dependencies {
	deps := &dependencies{
		store:    history.NopStore{},
		cache:    history.NopCache{},
		indexer:  history.NopIndexer{},
		notifier: notify.Nop{},
		checks:   make(map[string]func(context.Context) error),
	}

	// --- PostgreSQL prediction history ---
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Error("postgres unavailable, prediction history disabled", zap.Error(err))
		} else {
			store := history.NewPostgresStore(pg.GetDB())
			if err := store.EnsureSchema(ctx); err != nil {
				zapLog.Error("predictions table setup failed, prediction history disabled", zap.Error(err))
				pg.Close()
			} else {
				deps.store = store
				deps.checks["postgres"] = pg.Ping
				deps.closers = append(deps.closers, pg.Close)
				zapLog.Info("PostgreSQL connected successfully")
			}
		}
	}

	// --- Redis prediction cache ---
	if cfg.Database.Redis.Enabled {
		var rc *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Error("redis unavailable, prediction cache disabled", zap.Error(err))
		} else {
			deps.cache = history.NewRedisCache(rc.GetClient(), time.Duration(cfg.Model.CacheTTL)*time.Second)
			deps.checks["redis"] = rc.Ping
			deps.closers = append(deps.closers, rc.Close)
			zapLog.Info("Redis connected successfully")
		}
	}

	// --- Elasticsearch batch index ---
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Error("elasticsearch unavailable, batch indexing disabled", zap.Error(err))
		} else {
			deps.indexer = history.NewESIndexer(es.Client, es.Index)
			deps.checks["elasticsearch"] = es.Ping
			zapLog.Info("Elasticsearch connected successfully", zap.String("index", es.Index))
		}
	}

	// --- SES / SNS batch notifications ---
	n := cfg.Notifications
	if n.Email.Enabled || n.SNS.Enabled {
		var (
			emailer   notify.Emailer
			publisher notify.Publisher
		)
		if n.Email.Enabled {
			ses, err := aws.NewSESClient(ctx, n.AWS.Region)
			if err != nil {
				zapLog.Error("SES client init failed, email notifications disabled", zap.Error(err))
			} else {
				emailer = ses
			}
		}
		if n.SNS.Enabled {
			sns, err := aws.NewSNSClient(ctx, n.AWS.Region)
			if err != nil {
				zapLog.Error("SNS client init failed, topic notifications disabled", zap.Error(err))
			} else {
				publisher = sns
			}
		}
		deps.notifier = notify.NewBatchNotifier(notify.Config{
			EmailEnabled: n.Email.Enabled,
			FromEmail:    n.Email.FromEmail,
			Recipients:   n.Email.Recipients,
			SNSEnabled:   n.SNS.Enabled,
			TopicARN:     n.SNS.TopicARN,
		}, emailer, publisher, log)
		zapLog.Info("Batch notifications enabled",
			zap.Bool("email", emailer != nil),
			zap.Bool("sns", publisher != nil),
		)
	}

	return deps
}

// startPredictionWorker connects to the Zeebe broker and runs the prediction
// job worker. It returns nil when the broker stays unreachable, and the
// dashboard then serves without the worker.
func startPredictionWorker(
	cfg config.CamundaConfig,
	connect func(address string) (*camunda.Client, error),
	pred *predictor.Service,
	checks map[string]func(context.Context) error,
	zapLog *zap.Logger,
	log logger.Logger,
) (stop func()) {
	var client *camunda.Client
	err := retryWithBackoff(func() error {
		var err error
		client, err = connect(cfg.BrokerAddress)
		return err
	}, cfg.ConnectAttempts, millis(cfg.RetryDelay), zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Error("zeebe unavailable, prediction worker disabled", zap.Error(err))
		return nil
	}
	checks["zeebe"] = client.HealthCheck

	handler := ppv.NewHandler(ppv.LoadConfig(millis(cfg.Timeout)), pred, log)
	w := camunda.NewWorker(client.GetClient(), ppv.TaskType, cfg.MaxJobsActive, millis(cfg.Timeout), handler, log)
	zapLog.Info("Prediction worker started", zap.String("taskType", ppv.TaskType))

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		w.Stop(stopCtx)
		_ = client.Close()
	}
}
