package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/layer-3/keepsake/adapters/events"
	"github.com/layer-3/keepsake/adapters/questionbank"
	"github.com/layer-3/keepsake/adapters/secrets"
	"github.com/layer-3/keepsake/adapters/store"
	"github.com/layer-3/keepsake/adapters/tokenizer"
	"github.com/layer-3/keepsake/config"
	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/ports"
	"github.com/layer-3/keepsake/service"
	"github.com/layer-3/keepsake/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site, bank, err := questionbank.NewFileSource(cfg.Questions.Path).LoadBank(ctx)
	if err != nil {
		logger.Fatalf("Failed to load questions: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"path":      cfg.Questions.Path,
		"questions": bank.Len(),
	}).Info("question bank loaded")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
	}

	var secretSource ports.SecretSource
	switch cfg.Secrets.Source {
	case config.SecretSourceRedis:
		secretSource = secrets.NewRedisSource(redisClient)
	default:
		secretSource = secrets.NewEnvSource(cfg.Secrets.SaltEnv)
	}

	refs := bank.DigestRefs()
	answerSecrets, err := secretSource.LoadSecrets(ctx, refs)
	if err != nil {
		logger.Fatalf("Failed to load answer secrets: %v", err)
	}
	if len(refs) > 0 {
		// Hashed questions fail closed without their secrets
		if _, ok := answerSecrets.Salt(); !ok {
			logger.WithField("source", cfg.Secrets.Source).Warn("no salt provisioned, hashed questions will never verify")
		}
		for _, ref := range refs {
			if _, ok := answerSecrets.Digest(ref); !ok {
				logger.WithField("digest_ref", ref).Warn("digest not provisioned, question will never verify")
			}
		}
	}

	signingKey, err := loadSigningKey(cfg.Progress.SigningKeyFile, logger)
	if err != nil {
		logger.Fatalf("Failed to load signing key: %v", err)
	}

	var revocations ports.Store
	if redisClient != nil {
		revocations = store.NewRedisStore(redisClient)
	} else {
		revocations = store.NewMemoryStore()
	}

	eventPub, closeEvents, err := newEventPublisher(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Fatalf("Failed to create event publisher: %v", err)
	}
	defer closeEvents()

	unlockService := service.NewUnlockService(
		site,
		bank,
		core.NewMatcher(answerSecrets),
		tokenizer.NewJWTTokenizer(signingKey),
		revocations,
		eventPub,
		service.WithPolicy(core.UnlockPolicy{EnforceOrder: cfg.Progress.EnforceOrder}),
		service.WithProgressTTL(cfg.Progress.TTL),
	)

	// Setup Gin router
	router := http.SetupRouter(unlockService, logger, http.Options{
		StaticDir:    cfg.Server.StaticDir,
		PhotosDir:    cfg.Server.PhotosDir,
		AllowOrigins: cfg.Server.AllowOrigins,
	})

	logger.WithFields(logrus.Fields{
		"addr":          cfg.Server.Addr,
		"enforce_order": cfg.Progress.EnforceOrder,
	}).Info("starting server")

	// Start server
	if err := router.Run(cfg.Server.Addr); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

func loadSigningKey(path string, logger *logrus.Logger) (*ecdsa.PrivateKey, error) {
	if path != "" {
		return tokenizer.LoadSigningKey(path)
	}

	logger.Warn("no signing key configured, progress tokens will not survive a restart")
	return tokenizer.GenerateSigningKey()
}

// newEventPublisher publishes to Redis streams when Redis is configured and
// to an in-process channel, consumed by a log subscriber, otherwise.
func newEventPublisher(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *logrus.Logger) (ports.EventPublisher, func(), error) {
	if !cfg.Events.Enabled {
		return events.NewNopPublisher(), func() {}, nil
	}

	wmLogger := watermill.NewStdLogger(false, false)

	if redisClient != nil {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			return nil, nil, err
		}
		return events.NewWatermillPublisher(publisher), func() { _ = publisher.Close() }, nil
	}

	pubSub := events.NewInProcessPubSub(wmLogger)
	if err := events.LogUnlocks(ctx, pubSub, logger.WithField("component", "events")); err != nil {
		_ = pubSub.Close()
		return nil, nil, err
	}
	return events.NewWatermillPublisher(pubSub), func() { _ = pubSub.Close() }, nil
}
