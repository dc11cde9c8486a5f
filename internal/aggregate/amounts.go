package aggregate

import (
	"context"
	"math/big"
	"strings"
)

// formatTokenAmount renders base units as a decimal string with exactly
// decimals fractional digits. Zero decimals renders base units as is.
func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}

	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(value), unit, new(big.Int))

	fracText := frac.String()
	if pad := int(decimals) - len(fracText); pad > 0 {
		fracText = strings.Repeat("0", pad) + fracText
	}

	text := whole.String() + "." + fracText
	if value.Sign() < 0 {
		return "-" + text
	}
	return text
}

// formatRewards renders per-token reward totals, each in its own decimals.
func (a *Aggregator) formatRewards(ctx context.Context, paid map[string]*big.Int) map[string]string {
	out := make(map[string]string, len(paid))
	for token, amount := range paid {
		out[token] = formatTokenAmount(amount, a.tokenDecimals(ctx, token))
	}
	return out
}
