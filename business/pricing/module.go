// Package pricing implements the pricing bounded context: spread
// configuration, volatility analysis and payout rate calculation.
package pricing

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/pricing/app"
	pricingDI "github.com/fd1az/fxdesk/business/pricing/di"
	"github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/business/pricing/infra/feed"
	"github.com/fd1az/fxdesk/business/pricing/infra/memory"
	"github.com/fd1az/fxdesk/business/pricing/infra/postgres"
	"github.com/fd1az/fxdesk/internal/config"
	"github.com/fd1az/fxdesk/internal/di"
	"github.com/fd1az/fxdesk/internal/logger"
	"github.com/fd1az/fxdesk/internal/monolith"
)

// memoryStore backs all pricing repositories under the memory driver.
var memoryStore = di.NewToken[*memory.Store]("pricing:memoryStore")

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, memoryStore, func(di.ServiceRegistry) *memory.Store {
		return memory.NewStore()
	})

	// Repositories - private dependencies
	di.RegisterToken(c, pricingDI.ConfigRepository, func(sr di.ServiceRegistry) app.SpreadConfigRepository {
		if db := postgresDB(sr); db != nil {
			return postgres.NewConfigRepository(db)
		}
		return di.GetToken(sr, memoryStore)
	})

	di.RegisterToken(c, pricingDI.DeltaHistory, func(sr di.ServiceRegistry) app.DeltaHistory {
		if db := postgresDB(sr); db != nil {
			return postgres.NewHistoryRepository(db)
		}
		return di.GetToken(sr, memoryStore)
	})

	di.RegisterToken(c, pricingDI.AuditRepository, func(sr di.ServiceRegistry) app.AuditRepository {
		if db := postgresDB(sr); db != nil {
			return postgres.NewAuditRepository(db)
		}
		return di.GetToken(sr, memoryStore)
	})

	// Market data feeds - private dependencies
	di.RegisterToken(c, pricingDI.SpotFeed, func(sr di.ServiceRegistry) app.SpotFeed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Feeds.SpotBaseURL == "" {
			static, err := feed.NewStaticFeed(cfg.Feeds.Static)
			if err != nil {
				panic("failed to create static spot feed: " + err.Error())
			}
			return static
		}

		spot, err := feed.NewSpotFeed(feed.SpotConfig{
			BaseURL:           cfg.Feeds.SpotBaseURL,
			Timeout:           cfg.Feeds.Timeout,
			CacheTTL:          cfg.Feeds.CacheTTL,
			RequestsPerMinute: cfg.Feeds.RequestsPerMinute,
		}, log)
		if err != nil {
			panic("failed to create spot feed: " + err.Error())
		}
		return spot
	})

	di.RegisterToken(c, pricingDI.P2PFeed, func(sr di.ServiceRegistry) app.P2PFeed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Feeds.P2PBaseURL == "" {
			return nil
		}

		p2p, err := feed.NewP2PFeed(feed.P2PConfig{
			BaseURL:           cfg.Feeds.P2PBaseURL,
			Timeout:           cfg.Feeds.Timeout,
			CacheTTL:          cfg.Feeds.CacheTTL,
			RequestsPerMinute: cfg.Feeds.RequestsPerMinute,
			MinOffers:         cfg.Feeds.MinOffers,
		}, log)
		if err != nil {
			panic("failed to create p2p feed: " + err.Error())
		}
		return p2p
	})

	// Public services
	di.RegisterToken(c, pricingDI.ConfigStore, func(sr di.ServiceRegistry) *app.ConfigStore {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewConfigStore(pricingDI.GetConfigRepository(sr), app.ConfigStoreConfig{
			CacheTTL:          cfg.Pricing.ConfigCacheTTL,
			DefaultVolatility: defaultVolatility(cfg.Volatility),
		}, log)
	})

	di.RegisterToken(c, pricingDI.VolatilityAnalyzer, func(sr di.ServiceRegistry) *app.VolatilityAnalyzer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		analyzer, err := app.NewVolatilityAnalyzer(
			pricingDI.GetDeltaHistory(sr),
			pricingDI.GetAuditRepository(sr),
			pricingDI.GetConfigStore(sr),
			app.AnalyzerConfig{
				MinDataPoints:       cfg.Volatility.MinDataPoints,
				FullConfidencePoint: cfg.Volatility.FullConfidencePoint,
				DefaultWindowHours:  cfg.Volatility.DefaultWindowHours,
			},
			log,
		)
		if err != nil {
			panic("failed to create volatility analyzer: " + err.Error())
		}
		return analyzer
	})

	di.RegisterToken(c, pricingDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		base, lo, hi := cfg.Pricing.DefaultFixedSpread()
		engine, err := app.NewEngine(
			pricingDI.GetConfigStore(sr),
			pricingDI.GetVolatilityAnalyzer(sr),
			pricingDI.GetAuditRepository(sr),
			pricingDI.GetSpotFeed(sr),
			pricingDI.GetP2PFeed(sr),
			app.EngineConfig{
				FreshnessWindow:     cfg.Pricing.FreshnessWindow,
				MaxStalenessPenalty: cfg.Pricing.MaxStalenessPenalty,
				DefaultBaseSpread:   base,
				DefaultMinSpread:    lo,
				DefaultMaxSpread:    hi,
				MinP2PDataQuality:   cfg.Pricing.MinP2PDataQuality,
			},
			log,
		)
		if err != nil {
			panic("failed to create pricing engine: " + err.Error())
		}
		return engine
	})

	return nil
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	// Resolve eagerly so wiring errors surface at boot
	pricingDI.GetEngine(mono.Services())

	log.Info(ctx, "pricing module started",
		"database", cfg.Database.Driver,
		"spotFeed", feedKind(cfg.Feeds.SpotBaseURL, "static"),
		"p2pFeed", feedKind(cfg.Feeds.P2PBaseURL, "disabled"))
	return nil
}

func postgresDB(sr di.ServiceRegistry) *sql.DB {
	cfg := sr.Get("config").(*config.Config)
	if !cfg.Database.UsesPostgres() {
		return nil
	}
	return sr.Get("db").(*sql.DB)
}

func feedKind(url, fallback string) string {
	if url == "" {
		return fallback
	}
	return url
}

// defaultVolatility builds the system default volatility config from settings.
func defaultVolatility(c config.VolatilityConfig) func(symbol string) domain.VolatilitySpreadConfig {
	return func(symbol string) domain.VolatilitySpreadConfig {
		def := domain.DefaultVolatilityConfig(symbol)
		def.BaseSpread = decimal.NewFromFloat(c.BaseSpread)
		def.VolatilityMultiplier = decimal.NewFromFloat(c.Multiplier)
		def.LowThreshold = decimal.NewFromFloat(c.LowThreshold)
		def.MediumThreshold = decimal.NewFromFloat(c.MediumThreshold)
		def.HighThreshold = decimal.NewFromFloat(c.HighThreshold)
		def.CriticalThreshold = decimal.NewFromFloat(c.CriticalThreshold)
		def.MaxVolatilitySpread = decimal.NewFromFloat(c.MaxSpread)
		def.SmoothingFactor = decimal.NewFromFloat(c.SmoothingFactor)
		return def
	}
}
