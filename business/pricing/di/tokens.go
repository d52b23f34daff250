// Package di holds the pricing context's service tokens.
package di

import (
	"github.com/fd1az/swap-sentinel/business/pricing/app"
	"github.com/fd1az/swap-sentinel/business/pricing/infra/binance"
	"github.com/fd1az/swap-sentinel/internal/di"
)

var PricingService = di.NewToken[*app.PricingService]("pricing.PricingService")

// Module-private.
var (
	PriceOracle       = di.NewToken[app.PriceOracle]("pricing:priceOracle")
	ReferenceProvider = di.NewToken[*binance.Provider]("pricing:referenceProvider")
)

func GetPricingService(c di.ServiceRegistry) *app.PricingService { return di.GetToken(c, PricingService) }

func GetPriceOracle(c di.ServiceRegistry) app.PriceOracle { return di.GetToken(c, PriceOracle) }

func GetReferenceProvider(c di.ServiceRegistry) *binance.Provider {
	return di.GetToken(c, ReferenceProvider)
}
