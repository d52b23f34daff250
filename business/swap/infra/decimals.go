package infra

import (
	"context"

	"github.com/fd1az/swap-sentinel/business/swap/app"
	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/asset"
)

var _ app.DecimalsResolver = (*AssetDecimals)(nil)

// AssetDecimals resolves decimals through the shared asset resolver.
type AssetDecimals struct {
	resolver *asset.Resolver
}

func NewAssetDecimals(r *asset.Resolver) *AssetDecimals {
	return &AssetDecimals{resolver: r}
}

// Decimals maps Native to the zero address, which the resolver treats as
// the chain's native coin.
func (d *AssetDecimals) Decimals(ctx context.Context, ref domain.AssetRef) (uint8, error) {
	return d.resolver.Decimals(ctx, ref.Address())
}
