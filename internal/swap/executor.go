// Package swap submits swaps to the execution service.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/httpx"
	"github.com/Proton-105/himera-swap/pkg/config"
)

// Request describes one swap on one wallet.
type Request struct {
	UserID        int64           `json:"user_id"`
	WalletAddress string          `json:"wallet_address"`
	TokenAddress  string          `json:"token_address"`
	Mode          string          `json:"mode"`
	SizeKind      string          `json:"size_kind"`
	Size          decimal.Decimal `json:"size"`
	Slippage      decimal.Decimal `json:"slippage"`
	// ClientRef lets the execution service drop duplicates of the same logical swap.
	ClientRef string `json:"client_ref"`
}

// Result is a successful execution.
type Result struct {
	TxRef     string          `json:"tx_ref"`
	AmountIn  decimal.Decimal `json:"amount_in"`
	AmountOut decimal.Decimal `json:"amount_out"`
}

// Executor performs swaps. Failures are *errors.AppError values with the execution code.
type Executor interface {
	ExecuteSwap(ctx context.Context, req Request) (*Result, error)
}

type response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Result
}

// HTTPExecutor calls the execution service's POST /swaps endpoint.
type HTTPExecutor struct {
	client  *httpx.Client
	baseURL string
	log     *slog.Logger
}

var _ Executor = (*HTTPExecutor)(nil)

// NewHTTPExecutor creates an executor from configuration.
func NewHTTPExecutor(cfg config.ExecutorConfig, log *slog.Logger) *HTTPExecutor {
	if log == nil {
		log = slog.Default()
	}

	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["X-API-Key"] = cfg.APIKey
	}

	return &HTTPExecutor{
		client:  httpx.New("executor", cfg.Timeout, headers),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		log:     log,
	}
}

// ExecuteSwap submits req once.
func (e *HTTPExecutor) ExecuteSwap(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, apperrors.NewExecutionError(err.Error(), err)
	}

	started := time.Now()
	var resp response
	err := e.client.PostJSON(ctx, e.baseURL+"/swaps", req, map[string]string{"Idempotency-Key": req.ClientRef}, &resp)
	if err != nil {
		e.log.Warn("swap request failed",
			slog.String("wallet", req.WalletAddress),
			slog.String("token_address", req.TokenAddress),
			slog.Any("error", err),
		)
		return nil, apperrors.NewExecutionError(reason(err), err)
	}

	if !strings.EqualFold(resp.Status, "success") {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("status %q", resp.Status)
		}
		return nil, apperrors.NewExecutionError(msg, nil)
	}

	e.log.Info("swap executed",
		slog.String("wallet", req.WalletAddress),
		slog.String("token_address", req.TokenAddress),
		slog.String("tx_ref", resp.TxRef),
		slog.Duration("duration", time.Since(started)),
	)

	result := resp.Result
	return &result, nil
}

func validate(req Request) error {
	switch {
	case req.WalletAddress == "":
		return errors.New("wallet is required")
	case req.TokenAddress == "":
		return errors.New("token is required")
	case req.Mode != "buy" && req.Mode != "sell":
		return fmt.Errorf("unknown mode %q", req.Mode)
	case !req.Size.IsPositive():
		return errors.New("size must be positive")
	}
	return nil
}

func reason(err error) string {
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) && statusErr.Body != "" {
		return statusErr.Body
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	if apperrors.HasCode(err, apperrors.CodeTransient) {
		return "execution service unavailable"
	}
	return "execution failed"
}
