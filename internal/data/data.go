package data

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/conf"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/agent-gateway/internal/pkg/minio"
	pkgredis "github.com/lk2023060901/agent-gateway/internal/pkg/redis"
)

// Data holds the long-lived clients shared by all requests. Optional
// backends are nil when not configured.
type Data struct {
	HTTPClient  *http.Client
	RedisClient *pkgredis.Client
	MinIOClient *pkgminio.Client
	Logger      *logger.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	d := &Data{
		HTTPClient: newHTTPClient(),
		Logger:     log,
	}

	if config.RedisEnabled() {
		redisClient, err := pkgredis.New(config.Redis.RedisClient(), log.Named("redis"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		d.RedisClient = redisClient
	} else {
		log.Info("redis not configured, weather agent history is kept in memory")
	}

	if config.BlobEnabled() {
		minioClient, err := initMinIO(config, log)
		if err != nil {
			d.close()
			return nil, nil, fmt.Errorf("failed to init blob storage: %w", err)
		}
		d.MinIOClient = minioClient
	} else {
		log.Info("blob storage not configured, file attachments are disabled")
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		d.close()
	}

	return d, cleanup, nil
}

func (d *Data) close() {
	if d.RedisClient != nil {
		if err := d.RedisClient.Close(); err != nil {
			d.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if d.MinIOClient != nil {
		_ = d.MinIOClient.Close()
	}
	d.HTTPClient.CloseIdleConnections()
}

// newHTTPClient is shared by the agent run stream. Runs can stream for
// minutes, so there is no overall timeout; requests are bounded by their
// context instead.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func initMinIO(config *conf.Config, log *logger.Logger) (*pkgminio.Client, error) {
	cfg, err := config.Blob.MinIO()
	if err != nil {
		return nil, err
	}

	client, err := pkgminio.NewClient(cfg, log.Named("minio").Logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// A missing container is logged, not fatal.
	if err := client.Ping(ctx); err != nil {
		log.Warn("blob container is not reachable", zap.String("container", client.Bucket()), zap.Error(err))
	}
	return client, nil
}
