// Package fx calls the external currency-conversion service used to turn
// catalog-currency order totals into the gateway's settlement currency.
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrConversionUnavailable is returned for any failure of the conversion
// call: timeout, non-2xx status, malformed body, or an open circuit.
// Checkout treats it as fatal and retryable; nothing is persisted.
var ErrConversionUnavailable = errors.New("currency conversion unavailable")

type Converter interface {
	// Convert returns the converted amount rounded to a whole unit of the
	// target currency.
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (int64, error)
}

type Config struct {
	URL       string
	AccessKey string
	Timeout   time.Duration
}

type convertResponse struct {
	Success bool     `json:"success"`
	Result  *float64 `json:"result"`
}

type client struct {
	httpClient *http.Client
	cfg        Config
	breaker    *gobreaker.CircuitBreaker[int64]
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) Converter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:    "fx-converter",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("FX circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		breaker:    breaker,
		logger:     logger,
	}
}

func (c *client) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (int64, error) {
	result, err := c.breaker.Execute(func() (int64, error) {
		return c.convert(ctx, amount, from, to)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("FX conversion short-circuited", zap.Error(err))
			return 0, fmt.Errorf("%w: %v", ErrConversionUnavailable, err)
		}
		return 0, err
	}
	return result, nil
}

func (c *client) convert(ctx context.Context, amount decimal.Decimal, from, to string) (int64, error) {
	query := url.Values{}
	query.Set("from", from)
	query.Set("to", to)
	query.Set("amount", amount.String())
	if c.cfg.AccessKey != "" {
		query.Set("access_key", c.cfg.AccessKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"?"+query.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: building request: %v", ErrConversionUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("FX request failed", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrConversionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("FX request returned non-OK status", zap.Int("status", resp.StatusCode))
		return 0, fmt.Errorf("%w: status %d", ErrConversionUnavailable, resp.StatusCode)
	}

	var body convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Error("FX response is not valid JSON", zap.Error(err))
		return 0, fmt.Errorf("%w: decoding response: %v", ErrConversionUnavailable, err)
	}
	if !body.Success || body.Result == nil {
		c.logger.Error("FX response missing result", zap.Bool("success", body.Success))
		return 0, fmt.Errorf("%w: malformed response", ErrConversionUnavailable)
	}

	return int64(math.Round(*body.Result)), nil
}
