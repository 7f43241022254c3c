// Package market provides token snapshots and wallet balances.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/httpx"
	"github.com/Proton-105/himera-swap/internal/orders"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/pkg/config"
	"github.com/Proton-105/himera-swap/pkg/metrics"
)

// UnknownSymbol is shown when the price API does not know a token's symbol.
const UnknownSymbol = "UNKNOWN"

const nativeDecimals = 18

// ErrInvalidAddress is returned for text that is not a hex address.
var ErrInvalidAddress = errors.New("not a valid token address")

// BalanceReader is the subset of ethclient.Client used for native balances.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Provider resolves token snapshots and native balances.
type Provider interface {
	TokenInfo(ctx context.Context, address string) (*session.Token, error)
	Balance(ctx context.Context, address string) decimal.Decimal
}

type tokenResponse struct {
	Address   string          `json:"address"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price_usd"`
	MarketCap decimal.Decimal `json:"market_cap_usd"`
	Decimals  int             `json:"decimals"`
}

// Client implements Provider over the price API and a chain RPC endpoint.
type Client struct {
	http           *httpx.Client
	baseURL        string
	balances       BalanceReader
	cache          *ristretto.Cache
	cacheTTL       time.Duration
	breaker        *apperrors.CircuitBreaker
	balanceTimeout time.Duration
	log            *slog.Logger
}

var (
	_ Provider           = (*Client)(nil)
	_ orders.PriceSource = (*Client)(nil)
)

// Dial creates a Client from configuration, connecting the RPC endpoint.
func Dial(ctx context.Context, cfg config.MarketConfig, log *slog.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewClient(cfg, rpc, log)
}

// NewClient creates a Client reading balances from balances.
func NewClient(cfg config.MarketConfig, balances BalanceReader, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}

	balanceTimeout := cfg.BalanceTimeout
	if balanceTimeout <= 0 {
		balanceTimeout = 5 * time.Second
	}

	log = log.With(slog.String("component", "market"))
	breaker := apperrors.NewCircuitBreakerWith(apperrors.BreakerSettings{
		OnStateChange: func(from, to apperrors.State) {
			metrics.SetBreakerState("market", int(to))
			log.Warn("market circuit breaker changed state", slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})

	return &Client{
		http:           httpx.New("market", cfg.Timeout, nil),
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		balances:       balances,
		cache:          cache,
		cacheTTL:       cfg.CacheTTL,
		breaker:        breaker,
		balanceTimeout: balanceTimeout,
		log:            log,
	}, nil
}

// TokenInfo returns a snapshot of the token at address. Results are cached for the configured TTL.
func (c *Client) TokenInfo(ctx context.Context, address string) (*session.Token, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return nil, ErrInvalidAddress
	}
	checksummed := common.HexToAddress(address).Hex()

	if cached, ok := c.cache.Get(checksummed); ok {
		token := cached.(session.Token)
		return &token, nil
	}

	var resp tokenResponse
	err := c.breaker.Call(func() error {
		return apperrors.WithRetry(ctx, func() error {
			return c.http.GetJSON(ctx, c.baseURL+"/tokens/"+checksummed, &resp)
		})
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrCircuitOpen) {
			return nil, apperrors.NewTransientError("market", err)
		}
		return nil, err
	}

	token := session.Token{
		Address:   checksummed,
		Symbol:    strings.TrimSpace(resp.Symbol),
		Name:      strings.TrimSpace(resp.Name),
		Price:     resp.Price,
		MarketCap: resp.MarketCap,
		Decimals:  resp.Decimals,
	}
	if token.Symbol == "" {
		token.Symbol = UnknownSymbol
	}
	if token.Name == "" {
		token.Name = token.Symbol
	}

	if c.cacheTTL > 0 {
		c.cache.SetWithTTL(checksummed, token, 1, c.cacheTTL)
	}

	return &token, nil
}

// Snapshot adapts TokenInfo for the order monitor.
func (c *Client) Snapshot(ctx context.Context, tokenAddress string) (orders.Snapshot, error) {
	token, err := c.TokenInfo(ctx, tokenAddress)
	if err != nil {
		return orders.Snapshot{}, err
	}
	return orders.Snapshot{Price: token.Price, MarketCap: token.MarketCap}, nil
}

// Balance returns the native balance of address. Failures degrade to zero.
func (c *Client) Balance(ctx context.Context, address string) decimal.Decimal {
	if c.balances == nil || !common.IsHexAddress(address) {
		return decimal.Zero
	}

	ctx, cancel := context.WithTimeout(ctx, c.balanceTimeout)
	defer cancel()

	wei, err := c.balances.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil || wei == nil {
		c.log.Warn("balance lookup failed", slog.String("wallet", address), slog.Any("error", err))
		return decimal.Zero
	}

	return decimal.NewFromBigInt(wei, -nativeDecimals)
}

// Close releases the cache.
func (c *Client) Close() {
	c.cache.Close()
}
