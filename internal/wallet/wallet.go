// Package wallet normalizes the user's wallet list and maps it to positional keys.
package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DefaultSlippage is applied when a record carries no slippage.
var DefaultSlippage = decimal.NewFromInt(1)

// Record is a normalized wallet entry.
type Record struct {
	Address      string          `json:"address" db:"address"`
	Name         string          `json:"name" db:"name"`
	BuySlippage  decimal.Decimal `json:"buy_slippage" db:"buy_slippage"`
	SellSlippage decimal.Decimal `json:"sell_slippage" db:"sell_slippage"`
}

// Normalize returns a cleaned, deduplicated copy of records in their original order.
// Addresses are trimmed and checksummed when they are valid hex addresses, empty ones are dropped,
// duplicates are removed case-insensitively keeping the first, and missing names or slippage get defaults.
// Normalize(Normalize(x)) equals Normalize(x).
func Normalize(records []Record) []Record {
	out := make([]Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		addr := canonicalAddress(rec.Address)
		if addr == "" {
			continue
		}

		id := strings.ToLower(addr)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		name := strings.TrimSpace(rec.Name)
		if name == "" {
			name = fmt.Sprintf("Wallet %d", len(out)+1)
		}

		buy := rec.BuySlippage
		if !buy.IsPositive() {
			buy = DefaultSlippage
		}
		sell := rec.SellSlippage
		if !sell.IsPositive() {
			sell = DefaultSlippage
		}

		out = append(out, Record{
			Address:      addr,
			Name:         name,
			BuySlippage:  buy,
			SellSlippage: sell,
		})
	}

	return out
}

// Key returns the positional key of the wallet at index i.
func Key(i int) string {
	return "w" + strconv.Itoa(i)
}

// Index parses a positional key. It reports false for malformed keys.
func Index(key string) (int, bool) {
	if len(key) < 2 || key[0] != 'w' {
		return 0, false
	}
	i, err := strconv.Atoi(key[1:])
	if err != nil || i < 0 || Key(i) != key {
		return 0, false
	}
	return i, true
}

// IndexMap builds the positional key map for records.
func IndexMap(records []Record) map[string]Record {
	m := make(map[string]Record, len(records))
	for i, rec := range records {
		m[Key(i)] = rec
	}
	return m
}

// Find returns the positional key of address within records.
func Find(records []Record, address string) (string, bool) {
	for i, rec := range records {
		if strings.EqualFold(rec.Address, address) {
			return Key(i), true
		}
	}
	return "", false
}

// ShortAddress renders 0x1234…abcd style labels.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

func canonicalAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return ""
	}
	if common.IsHexAddress(addr) {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}
