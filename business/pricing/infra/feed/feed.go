// Package feed implements the market data collaborators of the pricing
// engine: a spot ticker feed and a P2P order book feed over HTTP, plus a
// static feed for development.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/fxdesk/internal/asset"
	"github.com/fd1az/fxdesk/internal/logger"
)

const tracerName = "github.com/fd1az/fxdesk/business/pricing/infra/feed"

// venueSymbol maps "USDT/ARS" to the concatenated "USDTARS" form venues use.
func venueSymbol(symbol string) (string, error) {
	base, quote, err := asset.SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + quote, nil
}

// APIError is an error body returned by a feed venue.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue API error %d: %s", e.Code, e.Message)
}

// apiErrorHandler parses venue error bodies.
func apiErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func logStateChange(log logger.LoggerInterface) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "feed circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String())
	}
}
