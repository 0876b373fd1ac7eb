// Package deal implements the deal bounded context: partner deals priced
// at creation and executed against P2P counterparties.
package deal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/deal/app"
	dealDI "github.com/fd1az/fxdesk/business/deal/di"
	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/business/deal/infra/memory"
	"github.com/fd1az/fxdesk/business/deal/infra/p2p"
	"github.com/fd1az/fxdesk/business/deal/infra/postgres"
	notifyDI "github.com/fd1az/fxdesk/business/notify/di"
	pricingDI "github.com/fd1az/fxdesk/business/pricing/di"
	"github.com/fd1az/fxdesk/internal/asset"
	"github.com/fd1az/fxdesk/internal/config"
	"github.com/fd1az/fxdesk/internal/di"
	"github.com/fd1az/fxdesk/internal/logger"
	"github.com/fd1az/fxdesk/internal/monolith"
)

// venue is what both P2P implementations provide.
type venue interface {
	app.CounterpartyMatcher
	app.OrderGateway
}

var (
	memoryStore = di.NewToken[*memory.Store]("deal:memoryStore")
	venueToken  = di.NewToken[venue]("deal:venue")
)

// partnerSeeder is implemented by both partner directories.
type partnerSeeder interface {
	UpsertPartner(ctx context.Context, p domain.Partner) error
}

// Module implements the deal bounded context.
type Module struct{}

// RegisterServices registers all deal services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, memoryStore, func(di.ServiceRegistry) *memory.Store {
		return memory.NewStore()
	})

	// Repositories - private dependencies
	di.RegisterToken(c, dealDI.DealRepository, func(sr di.ServiceRegistry) app.DealRepository {
		if db := postgresDB(sr); db != nil {
			return postgres.NewDealRepository(db)
		}
		return di.GetToken(sr, memoryStore)
	})

	di.RegisterToken(c, dealDI.PartnerDirectory, func(sr di.ServiceRegistry) app.PartnerDirectory {
		if db := postgresDB(sr); db != nil {
			return postgres.NewPartnerRepository(db)
		}
		return di.GetToken(sr, memoryStore)
	})

	// P2P venue - private dependencies
	di.RegisterToken(c, venueToken, func(sr di.ServiceRegistry) venue {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.P2P.Simulate || cfg.P2P.BaseURL == "" {
			return p2p.NewSimulator(p2p.SimulatorConfig{FillDelay: cfg.P2P.SimulateDelay}, log)
		}
		client, err := p2p.NewClient(p2p.Config{
			BaseURL:           cfg.P2P.BaseURL,
			WebSocketURL:      cfg.P2P.WebSocketURL,
			APIKey:            cfg.P2P.APIKey,
			Timeout:           cfg.P2P.Timeout,
			RequestsPerMinute: cfg.P2P.RequestsPerMinute,
		}, log)
		if err != nil {
			panic("failed to create p2p venue client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, dealDI.Matcher, func(sr di.ServiceRegistry) app.CounterpartyMatcher {
		return di.GetToken(sr, venueToken)
	})

	di.RegisterToken(c, dealDI.Gateway, func(sr di.ServiceRegistry) app.OrderGateway {
		return di.GetToken(sr, venueToken)
	})

	// Public services
	di.RegisterToken(c, dealDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		var notifier app.Notifier
		if d := notifyDI.GetDispatcher(sr); d != nil {
			notifier = d
		}

		o, err := app.NewOrchestrator(
			dealDI.GetDealRepository(sr),
			dealDI.GetPartnerDirectory(sr),
			pricingDI.GetEngine(sr),
			dealDI.GetMatcher(sr),
			dealDI.GetGateway(sr),
			notifier,
			app.OrchestratorConfig{
				ExecutionTimeout:      cfg.Deals.ExecutionTimeout,
				PollInterval:          cfg.Deals.PollInterval,
				MinCounterpartyRating: cfg.Deals.MinCounterpartyRating,
				MinCompletedTrades:    cfg.Deals.MinCompletedTrades,
				PaymentMethod:         cfg.Deals.PaymentMethod,
				Registry:              registry,
			},
			log,
		)
		if err != nil {
			panic("failed to create deal orchestrator: " + err.Error())
		}
		return o
	})

	return nil
}

// Startup seeds configured partners and resolves the orchestrator.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	sr := mono.Services()

	seeder, ok := dealDI.GetPartnerDirectory(sr).(partnerSeeder)
	if !ok {
		return fmt.Errorf("partner directory cannot be seeded")
	}
	for _, seed := range cfg.Deals.Partners {
		p, err := partnerFromSeed(seed)
		if err != nil {
			return err
		}
		if err := seeder.UpsertPartner(ctx, p); err != nil {
			return fmt.Errorf("seed partner %s: %w", seed.ID, err)
		}
	}

	// Resolve eagerly so wiring errors surface at boot
	dealDI.GetOrchestrator(sr)

	venueKind := "http"
	if cfg.P2P.Simulate || cfg.P2P.BaseURL == "" {
		venueKind = "simulated"
	}
	log.Info(ctx, "deal module started",
		"database", cfg.Database.Driver,
		"venue", venueKind,
		"partners", len(cfg.Deals.Partners),
		"executionTimeout", cfg.Deals.ExecutionTimeout)
	return nil
}

func partnerFromSeed(seed config.PartnerSeed) (domain.Partner, error) {
	p := domain.Partner{
		ID:       seed.ID,
		Name:     seed.Name,
		IsActive: !seed.Inactive,
	}
	if seed.MinAmount != "" {
		v, err := decimal.NewFromString(seed.MinAmount)
		if err != nil {
			return p, fmt.Errorf("partner %s min_amount: %w", seed.ID, err)
		}
		p.MinAmount = &v
	}
	if seed.MaxAmount != "" {
		v, err := decimal.NewFromString(seed.MaxAmount)
		if err != nil {
			return p, fmt.Errorf("partner %s max_amount: %w", seed.ID, err)
		}
		p.MaxAmount = &v
	}
	return p, nil
}

func postgresDB(sr di.ServiceRegistry) *sql.DB {
	cfg := sr.Get("config").(*config.Config)
	if !cfg.Database.UsesPostgres() {
		return nil
	}
	return sr.Get("db").(*sql.DB)
}
