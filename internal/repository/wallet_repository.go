package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/himera-swap/internal/wallet"
)

// WalletRepository reads and registers the wallets a user trades with.
// Rows come back in insertion order, which fixes their positional keys.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// ListWallets returns the user's wallets, normalized.
func (r *WalletRepository) ListWallets(ctx context.Context, userID int64) ([]wallet.Record, error) {
	const query = `
		SELECT address, name, buy_slippage, sell_slippage
		FROM wallets
		WHERE user_id = $1
		ORDER BY position, id
	`

	var records []wallet.Record
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("select wallets of user %d: %w", userID, err)
	}

	return wallet.Normalize(records), nil
}

// Add registers a wallet at the end of the user's list. Re-adding an address updates its name and slippage.
func (r *WalletRepository) Add(ctx context.Context, userID int64, rec wallet.Record) error {
	if !common.IsHexAddress(strings.TrimSpace(rec.Address)) {
		return fmt.Errorf("invalid wallet address %q", rec.Address)
	}

	normalized := wallet.Normalize([]wallet.Record{rec})[0]

	const query = `
		INSERT INTO wallets (user_id, address, name, buy_slippage, sell_slippage, position)
		VALUES ($1, $2, $3, $4, $5, COALESCE((SELECT MAX(position) + 1 FROM wallets WHERE user_id = $1), 0))
		ON CONFLICT (user_id, address) DO UPDATE
		SET name = EXCLUDED.name, buy_slippage = EXCLUDED.buy_slippage, sell_slippage = EXCLUDED.sell_slippage
	`

	if _, err := r.db.ExecContext(ctx, query,
		userID,
		normalized.Address,
		normalized.Name,
		normalized.BuySlippage,
		normalized.SellSlippage,
	); err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}

	return nil
}
