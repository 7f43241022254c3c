package app

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Proton-105/himera-swap/internal/repository"
	"github.com/Proton-105/himera-swap/internal/wallet"
)

func (rt *runtime) newWalletCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the wallets a user trades from",
	}
	cmd.AddCommand(rt.newWalletAddCommand(), rt.newWalletListCommand())
	return cmd
}

// walletFlags are the optional attributes of "wallet add".
type walletFlags struct {
	name         string
	buySlippage  string
	sellSlippage string
}

func (f walletFlags) record(address string) (wallet.Record, error) {
	rec := wallet.Record{Address: address, Name: f.name}

	for _, s := range []struct {
		flag string
		raw  string
		dst  *decimal.Decimal
	}{
		{"buy-slippage", f.buySlippage, &rec.BuySlippage},
		{"sell-slippage", f.sellSlippage, &rec.SellSlippage},
	} {
		if s.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(s.raw)
		if err != nil || v.IsNegative() || v.GreaterThan(decimal.NewFromInt(100)) {
			return wallet.Record{}, fmt.Errorf("--%s must be a percentage between 0 and 100, got %q", s.flag, s.raw)
		}
		*s.dst = v
	}

	return rec, nil
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid telegram user id %q", raw)
	}
	return id, nil
}

func (rt *runtime) newWalletAddCommand() *cobra.Command {
	var flags walletFlags

	cmd := &cobra.Command{
		Use:   "add <telegram-user-id> <address>",
		Short: "Register a wallet for a user, or update its name and slippage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			rec, err := flags.record(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := openDB(ctx, rt.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.NewWalletRepository(db).Add(ctx, userID, rec); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wallet %s added for user %d\n", wallet.ShortAddress(rec.Address), userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "display name (defaults to \"Wallet N\")")
	cmd.Flags().StringVar(&flags.buySlippage, "buy-slippage", "", "buy slippage percent")
	cmd.Flags().StringVar(&flags.sellSlippage, "sell-slippage", "", "sell slippage percent")
	return cmd
}

func (rt *runtime) newWalletListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <telegram-user-id>",
		Short: "List a user's wallets in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := openDB(ctx, rt.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := repository.NewWalletRepository(db).ListWallets(ctx, userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, rec := range records {
				fmt.Fprintf(out, "%s\t%s\t%s\tbuy %s%%\tsell %s%%\n",
					wallet.Key(i), rec.Name, rec.Address, rec.BuySlippage.String(), rec.SellSlippage.String())
			}
			return nil
		},
	}
}
