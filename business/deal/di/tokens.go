// Package di contains dependency injection tokens for the deal context.
package di

import (
	"github.com/fd1az/fxdesk/business/deal/app"
	"github.com/fd1az/fxdesk/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Orchestrator = di.NewToken[*app.Orchestrator]("deal.Orchestrator")
)

// Private dependency tokens - internal to deal module
var (
	DealRepository   = di.NewToken[app.DealRepository]("deal:dealRepository")
	PartnerDirectory = di.NewToken[app.PartnerDirectory]("deal:partnerDirectory")
	Matcher          = di.NewToken[app.CounterpartyMatcher]("deal:matcher")
	Gateway          = di.NewToken[app.OrderGateway]("deal:gateway")
)

// Helper functions for type-safe access
func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetDealRepository(c di.ServiceRegistry) app.DealRepository {
	return di.GetToken(c, DealRepository)
}

func GetPartnerDirectory(c di.ServiceRegistry) app.PartnerDirectory {
	return di.GetToken(c, PartnerDirectory)
}

func GetMatcher(c di.ServiceRegistry) app.CounterpartyMatcher {
	return di.GetToken(c, Matcher)
}

func GetGateway(c di.ServiceRegistry) app.OrderGateway {
	return di.GetToken(c, Gateway)
}
