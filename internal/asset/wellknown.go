package asset

// Well-known Assets (pre-created instances)
var (
	// Fiat
	USD = NewAsset("USD", "US Dollar", KindFiat, 2)
	EUR = NewAsset("EUR", "Euro", KindFiat, 2)
	GBP = NewAsset("GBP", "Pound Sterling", KindFiat, 2)
	CHF = NewAsset("CHF", "Swiss Franc", KindFiat, 2)
	JPY = NewAsset("JPY", "Japanese Yen", KindFiat, 0)
	MXN = NewAsset("MXN", "Mexican Peso", KindFiat, 2)
	BRL = NewAsset("BRL", "Brazilian Real", KindFiat, 2)
	ARS = NewAsset("ARS", "Argentine Peso", KindFiat, 2)
	COP = NewAsset("COP", "Colombian Peso", KindFiat, 2)
	NGN = NewAsset("NGN", "Nigerian Naira", KindFiat, 2)

	// Stablecoins used on P2P venues
	USDT = NewAsset("USDT", "Tether USD", KindStablecoin, 6)
	USDC = NewAsset("USDC", "USD Coin", KindStablecoin, 6)

	// Crypto
	BTC = NewAsset("BTC", "Bitcoin", KindCrypto, 8)
	ETH = NewAsset("ETH", "Ethereum", KindCrypto, 18)
)

// DefaultRegistry returns a registry pre-populated with well-known assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, a := range []*Asset{USD, EUR, GBP, CHF, JPY, MXN, BRL, ARS, COP, NGN} {
		r.Register(a)
	}
	for _, a := range []*Asset{USDT, USDC, BTC, ETH} {
		r.Register(a)
	}

	return r
}
