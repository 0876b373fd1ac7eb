// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/fxdesk/business/pricing/app"
	"github.com/fd1az/fxdesk/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine             = di.NewToken[*app.Engine]("pricing.Engine")
	ConfigStore        = di.NewToken[*app.ConfigStore]("pricing.ConfigStore")
	VolatilityAnalyzer = di.NewToken[*app.VolatilityAnalyzer]("pricing.VolatilityAnalyzer")
)

// Private dependency tokens - internal to pricing module
var (
	ConfigRepository = di.NewToken[app.SpreadConfigRepository]("pricing:configRepository")
	DeltaHistory     = di.NewToken[app.DeltaHistory]("pricing:deltaHistory")
	AuditRepository  = di.NewToken[app.AuditRepository]("pricing:auditRepository")
	SpotFeed         = di.NewToken[app.SpotFeed]("pricing:spotFeed")
	P2PFeed          = di.NewToken[app.P2PFeed]("pricing:p2pFeed")
)

// Helper functions for type-safe access
func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

func GetConfigStore(c di.ServiceRegistry) *app.ConfigStore {
	return di.GetToken(c, ConfigStore)
}

func GetVolatilityAnalyzer(c di.ServiceRegistry) *app.VolatilityAnalyzer {
	return di.GetToken(c, VolatilityAnalyzer)
}

func GetConfigRepository(c di.ServiceRegistry) app.SpreadConfigRepository {
	return di.GetToken(c, ConfigRepository)
}

func GetDeltaHistory(c di.ServiceRegistry) app.DeltaHistory {
	return di.GetToken(c, DeltaHistory)
}

func GetAuditRepository(c di.ServiceRegistry) app.AuditRepository {
	return di.GetToken(c, AuditRepository)
}

func GetSpotFeed(c di.ServiceRegistry) app.SpotFeed {
	return di.GetToken(c, SpotFeed)
}

func GetP2PFeed(c di.ServiceRegistry) app.P2PFeed {
	return di.GetToken(c, P2PFeed)
}
