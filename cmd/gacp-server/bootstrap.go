// cmd/gacp-server/bootstrap.go
package main

import (
	"context"
	"fmt"
	"time"

	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/config"
	"gacp-certification/internal/common/database"
	"gacp-certification/internal/common/logger"

	"go.uber.org/zap"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// runtime holds the process-wide clients. Fields stay nil for backends a
// command does not need.
type runtime struct {
	cfg    *config.Config
	zap    *zap.Logger
	log    logger.Logger
	pg     *database.PostgresClient
	redis  *database.RedisClient
	es     *database.ElasticsearchClient
	zeebe  *camunda.Client
	closed []func()
}

func newRuntime() (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})
	return &runtime{cfg: cfg, zap: zapLog, log: log}, nil
}

func (rt *runtime) onClose(fn func()) {
	rt.closed = append(rt.closed, fn)
}

// Close releases clients in reverse order of creation.
func (rt *runtime) Close() {
	for i := len(rt.closed) - 1; i >= 0; i-- {
		rt.closed[i]()
	}
	_ = rt.zap.Sync()
}

func (rt *runtime) connectPostgres(ctx context.Context) error {
	err := retryWithBackoff(ctx, func() error {
		pg, err := database.NewPostgres(rt.cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		rt.pg = pg
		return nil
	}, 15, 2*time.Second, rt.log, "PostgreSQL connection")
	if err != nil {
		return err
	}
	rt.onClose(func() { _ = rt.pg.Close() })
	rt.log.Info("PostgreSQL connected successfully", nil)
	return nil
}

func (rt *runtime) connectRedis(ctx context.Context) error {
	err := retryWithBackoff(ctx, func() error {
		rdb, err := database.NewRedis(rt.cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rdb.Ping(ctx); err != nil {
			_ = rdb.Close()
			return err
		}
		rt.redis = rdb
		return nil
	}, 10, 2*time.Second, rt.log, "Redis connection")
	if err != nil {
		return err
	}
	rt.onClose(func() { _ = rt.redis.Close() })
	rt.log.Info("Redis connected successfully", nil)
	return nil
}

// connectElasticsearch is optional: without addresses the staff search and
// the index-application worker are left out.
func (rt *runtime) connectElasticsearch(ctx context.Context) error {
	if len(rt.cfg.Database.Elasticsearch.Addresses) == 0 {
		rt.log.Warn("elasticsearch not configured, staff search disabled", nil)
		return nil
	}
	err := retryWithBackoff(ctx, func() error {
		es, err := database.NewElasticsearch(rt.cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := es.Ping(ctx); err != nil {
			return err
		}
		rt.es = es
		return nil
	}, 15, 2*time.Second, rt.log, "Elasticsearch connection")
	if err != nil {
		return err
	}
	rt.log.Info("Elasticsearch connected successfully", nil)
	return nil
}

func (rt *runtime) connectZeebe(ctx context.Context) error {
	err := retryWithBackoff(ctx, func() error {
		client, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         rt.cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(rt.cfg.Camunda.RequestTimeout),
		})
		if err != nil {
			return err
		}
		rt.zeebe = client
		return nil
	}, 10, 2*time.Second, rt.log, "Zeebe client initialization")
	if err != nil {
		return err
	}
	rt.onClose(func() { _ = rt.zeebe.Close() })
	rt.log.Info("Zeebe client connected successfully", map[string]interface{}{
		"gateway": rt.cfg.Camunda.BrokerAddress,
	})
	return nil
}
