package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
	"github.com/FunkyDevv/ITRACK-sub000/internal/config"
	"github.com/FunkyDevv/ITRACK-sub000/internal/directory"
	"github.com/FunkyDevv/ITRACK-sub000/internal/feed"
	"github.com/FunkyDevv/ITRACK-sub000/internal/queue"
	"github.com/FunkyDevv/ITRACK-sub000/internal/store"
)

const jobsKey = "itrack:verify_photo"

// Backends are the storage, fan-out and job backends selected by config.
type Backends struct {
	DB    *store.DB
	Redis *store.Redis

	Events attendance.Store
	Users  directory.Directory
	Broker feed.Broker
	Jobs   queue.Queue
}

// Open connects every backend the config asks for.
func Open(ctx context.Context, cfg config.App) (*Backends, error) {
	b := &Backends{}

	switch cfg.StoreBackend {
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		b.Events = attendance.NewMemoryStore()
		b.Users = directory.NewMemory()
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.DB = db
		if err := db.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		b.Events = attendance.NewRepository(db.Client)
		b.Users = directory.NewRepository(db.Client)
	}

	if cfg.FeedBackend == "redis" || cfg.QueueBackend == "redis" {
		b.Redis = store.NewRedis(cfg.RedisAddr)
		if !b.Redis.Healthy(ctx) {
			log.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable yet")
		}
	}

	if cfg.FeedBackend == "redis" {
		b.Broker = feed.NewRedisBroker(b.Redis.Client)
	} else {
		b.Broker = feed.NewInMemory(16)
	}

	switch cfg.QueueBackend {
	case "sqs":
		client, err := newSQSClient(ctx, cfg)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("aws config: %w", err)
		}
		b.Jobs = queue.NewSQSQueue(client, cfg.SQSQueueURL)
	case "redis":
		b.Jobs = queue.NewRedisQueue(b.Redis.Client, jobsKey)
	default:
		log.Warn().Msg("using in-memory job queue; jobs stay in this process and are dropped when full")
		b.Jobs = queue.NewInMemory(64)
	}
	return b, nil
}

// newSQSClient routes to AWS_ENDPOINT with static test credentials when set,
// for LocalStack; otherwise it uses the standard credential chain.
func newSQSClient(ctx context.Context, cfg config.App) (*sqs.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSEndpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
	}), nil
}

// Health returns the checks reported by /healthz.
func (b *Backends) Health() map[string]func(context.Context) bool {
	checks := map[string]func(context.Context) bool{}
	if b.DB != nil {
		checks["db"] = b.DB.Healthy
	}
	if b.Redis != nil {
		checks["redis"] = b.Redis.Healthy
	}
	return checks
}

// Close releases every connection that was opened.
func (b *Backends) Close() {
	if err := b.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("close postgres")
	}
	if err := b.Redis.Close(); err != nil {
		log.Warn().Err(err).Msg("close redis")
	}
}
