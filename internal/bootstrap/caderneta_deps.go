package bootstrap

import (
	"context"
	"database/sql"
	"os"
	"time"

	"caderneta_server/adapter/out/messaging"
	"caderneta_server/adapter/out/mongodb"
	"caderneta_server/adapter/out/persistence"
	"caderneta_server/adapter/out/report"
	"caderneta_server/config"
	"caderneta_server/core/port/out"
	"caderneta_server/core/service/bot"
	"caderneta_server/core/service/classifier"
	"caderneta_server/core/service/command"
	"caderneta_server/core/service/extractor"
	"caderneta_server/core/service/onboarding"
	"caderneta_server/infra/database"
	"caderneta_server/internal/stream"
	"caderneta_server/pkg/cache"
	"caderneta_server/pkg/httputil"
	"caderneta_server/pkg/logger"
	"caderneta_server/pkg/metrics"
	"caderneta_server/pkg/snowflake"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const kvPrefix = "caderneta:"

// Dependencies holds every adapter and service the entry points share.
type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Storage
	KV           out.KeyValueStore
	Users        out.UserRepository
	Transactions out.TransactionStore
	UnitOfWork   out.UnitOfWork
	Corpus       out.TrainingCorpus
	Snapshots    out.ModelSnapshotStore

	// Nil without Redis.
	Stream *stream.RedisStream

	// Services
	Messenger  out.Messenger
	Classifier *classifier.Classifier
	Commands   *command.Registry
	Exporter   *report.CSVExporter
	Bot        *bot.Service
	Metrics    *metrics.Registry
}

// NewDependencies connects every configured backend and wires the bot.
// Missing URLs fall back to in-process stores so the bot can run locally.
// A nil messenger selects the WhatsApp sender when a token is configured
// and the console otherwise.
func NewDependencies(ctx context.Context, cfg *config.Config, messenger out.Messenger) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Metrics: metrics.Global()}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Postgres
	if cfg.DatabaseURL != "" {
		pgCfg := database.DefaultPostgresConfig()
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL, pgCfg)
		if err != nil {
			return fail(err)
		}
		deps.DB = db
		cleanups = append(cleanups, db.Close)

		if err := database.EnsureSchema(ctx, db); err != nil {
			return fail(err)
		}

		sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL, pgCfg)
		if err != nil {
			return fail(err)
		}
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { sqlDB.Close() })

		deps.Users = persistence.NewUserAdapter(sqlDB)
		deps.Transactions = persistence.NewTransactionAdapter(sqlDB)
		deps.UnitOfWork = persistence.NewUnitOfWork(sqlDB)
		logger.Info("using PostgreSQL ledger")
	} else {
		ledger := persistence.NewMemoryLedger()
		deps.Users = ledger
		deps.Transactions = ledger
		deps.UnitOfWork = ledger
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
	}

	// Redis
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL, database.DefaultRedisConfig())
		if err != nil {
			return fail(err)
		}
		deps.Redis = client
		cleanups = append(cleanups, func() { client.Close() })
		deps.KV = cache.NewRedisCache(client, kvPrefix)
		deps.Stream = stream.NewRedisStream(client, cfg.StreamGroup, cfg.StreamMaxLen)
	} else {
		deps.KV = cache.NewMemoryCache()
		logger.Warn("REDIS_URL not set, conversation state is kept in memory")
	}

	// MongoDB
	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			return fail(err)
		}
		deps.MongoDB = client
		cleanups = append(cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		db := client.Database(cfg.MongoDBName)
		corpus := mongodb.NewCorpusAdapter(db)
		if err := corpus.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("ensure corpus indexes")
		}
		deps.Corpus = corpus
		deps.Snapshots = mongodb.NewModelAdapter(db, cfg.ClassifierModelKey)
	} else {
		deps.Corpus = persistence.NewMemoryCorpus()
		deps.Snapshots = persistence.NewSnapshotStore(deps.KV, cfg.ClassifierModelKey)
	}

	// Messenger
	switch {
	case messenger != nil:
		deps.Messenger = messenger
	case cfg.WhatsAppToken != "":
		client := httputil.NewClient(httputil.MessagingClientConfig(time.Duration(cfg.WhatsAppTimeoutSec) * time.Second))
		deps.Messenger = messaging.NewWhatsAppSender(messaging.WhatsAppConfig{
			BaseURL: cfg.WhatsAppAPIURL,
			PhoneID: cfg.WhatsAppPhoneID,
			Token:   cfg.WhatsAppToken,
		}, client)
	default:
		deps.Messenger = messaging.NewConsoleSender(os.Stdout)
		logger.Warn("WHATSAPP_TOKEN not set, replies are printed to stdout")
	}

	// Classifier
	deps.Classifier = classifier.New(deps.Snapshots, deps.Corpus,
		classifier.WithThreshold(cfg.ClassifierThreshold),
		classifier.WithMinConfidence(cfg.CorpusMinConfidence),
		classifier.WithLogger(logger.WithField("component", "classifier")),
	)
	if err := deps.Classifier.Reload(ctx); err != nil {
		logger.WithError(err).Warn("initial model load failed, will bootstrap on first message")
	}

	// Commands
	deps.Commands = command.NewRegistry()
	deps.Exporter = report.NewCSVExporter(deps.KV, cfg.ExportBaseURL, cfg.Timezone)
	commands := &bot.Commands{
		Transactions: deps.Transactions,
		Charts:       report.NewChartLinks(cfg.ChartBaseURL),
		Exporter:     deps.Exporter,
		Location:     cfg.Timezone,
	}
	commands.Register(deps.Commands)
	router := command.NewRouter(deps.Commands,
		command.WithPrefix(cfg.CommandPrefix),
		command.WithLocation(cfg.Timezone),
		command.WithLogger(logger.WithField("component", "router")),
	)
	help := func() string { return command.HelpText(deps.Commands) }

	// Onboarding
	machine := onboarding.New(
		persistence.NewConversationStore(deps.KV),
		deps.Users,
		messaging.NewCodeSender(deps.Messenger),
		help,
		onboarding.WithTTL(cfg.OnboardingTTL),
		onboarding.WithAttempts(cfg.OnboardingCodeAttempts),
		onboarding.WithLogger(logger.WithField("component", "onboarding")),
	)

	ids, err := snowflake.NewGenerator(cfg.NodeID)
	if err != nil {
		return fail(err)
	}

	deps.Bot = bot.NewService(bot.Deps{
		Users:      deps.Users,
		UnitOfWork: deps.UnitOfWork,
		Onboarding: machine,
		Router:     router,
		Classifier: deps.Classifier,
		Extractor:  extractor.New(extractor.WithLocation(cfg.Timezone)),
		IDs:        ids,
		Help:       help,
		Logger:     logger.WithField("component", "bot"),
	})

	return deps, cleanup, nil
}

// DBStats reports the sqlx pool, or zero stats without Postgres.
func (d *Dependencies) DBStats() sql.DBStats {
	if d.SQLDB == nil {
		return sql.DBStats{}
	}
	return d.SQLDB.Stats()
}
