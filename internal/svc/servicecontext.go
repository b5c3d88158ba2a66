package svc

import (
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	"marketnews-api/internal/aggregator"
	appcache "marketnews-api/internal/cache"
	"marketnews-api/internal/config"
	"marketnews-api/internal/model"
	"marketnews-api/internal/persistence/engine"
	"marketnews-api/internal/repo"
	"marketnews-api/internal/scheduler"
	"marketnews-api/pkg/journal"
	"marketnews-api/pkg/news"
	"marketnews-api/pkg/quota"
	"marketnews-api/pkg/sentiment"
)

type ServiceContext struct {
	Config config.Config

	ProvidersConfig *news.Config
	Providers       map[string]news.Provider

	Clock    *quota.SessionClock
	Tracker  *quota.Tracker
	Analyzer sentiment.Analyzer

	DBConn             sqlx.SqlConn
	NewsModel          model.NewsModel
	TargetSymbolsModel model.TargetSymbolsModel

	Cache gocache.Cache
	TTL   appcache.TTLSet

	Repo       *repo.Repo
	Ingest     *engine.Service
	Aggregator *aggregator.Aggregator
	Scheduler  *scheduler.Scheduler
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: c,
		TTL:    appcache.NewTTLSet(c.TTL),
	}

	clock, err := quota.NewSessionClock(c.Quota.TradingStart, c.Quota.TradingEnd)
	if err != nil {
		log.Fatalf("invalid trading window: %v", err)
	}
	svc.Clock = clock

	// Provider adapters and the quota limits derived from their config.
	var limits []quota.Limits
	if c.Providers.Value != nil {
		providers, err := c.Providers.Value.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build news providers: %v", err)
		}
		svc.ProvidersConfig = c.Providers.Value
		svc.Providers = providers

		// Limits come from the post-build config so providers that were
		// disabled during construction stay disabled in the tracker.
		for name, pc := range c.Providers.Value.Providers {
			limits = append(limits, quota.Limits{
				Name:               name,
				DailyRequests:      pc.DailyRequestLimit,
				ArticlesPerRequest: pc.ArticlesPerRequest,
				TradingHoursOnly:   pc.TradingHoursOnly,
				Enabled:            pc.Enabled,
			})
		}
	}
	svc.Tracker = quota.NewTracker(clock, limits)

	// Sentiment degrades to lexicon-only when the section is absent.
	svc.Analyzer = sentiment.NewClient(c.Sentiment.Value)

	if c.Redis.Host != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		svc.Cache = gocache.NewNode(rds, syncx.NewSingleFlight(), gocache.NewStat(appcache.Namespace), model.ErrNotFound)
	}

	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		svc.NewsModel = model.NewNewsModel(conn)
		svc.TargetSymbolsModel = model.NewTargetSymbolsModel(conn)

		svc.Repo = repo.New(svc.NewsModel, svc.TargetSymbolsModel, svc.Cache, svc.TTL)
		svc.Ingest = engine.NewService(engine.Config{
			SQLConn:   conn,
			NewsModel: svc.NewsModel,
			Analyzer:  svc.Analyzer,
			Cache:     svc.Cache,
			TTL:       svc.TTL,
		})
	}

	svc.Aggregator = aggregator.New(svc.Providers, svc.Tracker)

	if svc.Repo != nil && svc.Ingest != nil {
		interval := time.Duration(c.Scheduler.IntervalMinutes) * time.Minute
		svc.Scheduler = scheduler.New(
			svc.Aggregator,
			svc.Ingest,
			svc.Repo,
			svc.Tracker,
			journal.NewWriter(c.Scheduler.JournalDir),
			interval,
		)
	}

	return svc
}
