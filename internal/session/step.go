package session

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-swap/internal/wallet"
)

// Flow is the order-setup flow the user is in.
type Flow string

const (
	FlowNone  Flow = "none"
	FlowLimit Flow = "limit"
	FlowDCA   Flow = "dca"
)

// Input is the free-text value the bot is currently waiting for.
type Input string

const (
	InputNone              Input = "none"
	InputLimitTriggerValue Input = "awaiting_limit_trigger_value"
	InputDCADuration       Input = "awaiting_dca_duration"
	InputDCAInterval       Input = "awaiting_dca_interval"
	InputOrderAmount       Input = "awaiting_order_amount"
	InputBuyAmount         Input = "awaiting_buy_amount"
	InputSellPercent       Input = "awaiting_sell_percent"
)

// Mode is the swap direction.
type Mode string

const (
	ModeBuy  Mode = "buy"
	ModeSell Mode = "sell"
)

// Metric selects what a limit trigger value is compared against.
type Metric string

const (
	MetricMarketCap Metric = "market_cap"
	MetricPrice     Metric = "price"
)

// SizeKind tells whether a size is an absolute base-asset amount or a percentage of the token balance.
type SizeKind string

const (
	SizeAmount  SizeKind = "amount"
	SizePercent SizeKind = "percent"
)

// Token is the snapshot of the selected token taken when it was chosen.
type Token struct {
	Address   string          `json:"address"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	MarketCap decimal.Decimal `json:"market_cap"`
	Decimals  int             `json:"decimals"`
}

// LimitSetup holds the limit flow parameters.
type LimitSetup struct {
	TriggerValue decimal.Decimal `json:"trigger_value"`
	Metric       Metric          `json:"metric"`
}

// DCASetup holds the scheduled flow parameters in minutes.
type DCASetup struct {
	DurationMinutes int `json:"duration_minutes"`
	IntervalMinutes int `json:"interval_minutes"`
}

// Size is a parsed custom order size waiting to be consumed.
type Size struct {
	Kind  SizeKind        `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// Step is the per-user conversational session.
type Step struct {
	UserID          int64                    `json:"user_id"`
	Flow            Flow                     `json:"flow"`
	Input           Input                    `json:"input"`
	Mode            Mode                     `json:"mode"`
	Token           *Token                   `json:"token,omitempty"`
	Wallets         []wallet.Record          `json:"wallets"`
	WalletMap       map[string]wallet.Record `json:"wallet_map"`
	SelectedWallets []string                 `json:"selected_wallets"`
	CurrentWallet   string                   `json:"current_wallet,omitempty"`
	Limit           *LimitSetup              `json:"limit,omitempty"`
	DCA             *DCASetup                `json:"dca,omitempty"`
	PendingSize     *Size                    `json:"pending_size,omitempty"`
	MainMessageID   int                      `json:"main_message_id,omitempty"`
	PromptMessageID int                      `json:"prompt_message_id,omitempty"`
	ShowAllWallets  bool                     `json:"show_all_wallets"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// MinIntervalMinutes is the smallest accepted DCA interval or duration.
const MinIntervalMinutes = 5

var (
	errLimitOutsideFlow = errors.New("limit setup present outside the limit flow")
	errDCAOutsideFlow   = errors.New("dca setup present outside the dca flow")
	errMissingLimit     = errors.New("limit flow without limit setup")
	errMissingDCA       = errors.New("dca flow without dca setup")
	errIntervalRange    = errors.New("dca interval must be between 5 minutes and the duration")
	errUnknownWallet    = errors.New("selected wallet key is not in the wallet map")
)

// New returns the lazily created Step for a user.
func New(userID int64) *Step {
	return &Step{
		UserID:    userID,
		Flow:      FlowNone,
		Input:     InputNone,
		Mode:      ModeBuy,
		WalletMap: map[string]wallet.Record{},
	}
}

// Validate checks the structural invariants of the step.
func (s *Step) Validate() error {
	switch s.Flow {
	case FlowLimit:
		if s.Limit == nil {
			return errMissingLimit
		}
		if s.DCA != nil {
			return errDCAOutsideFlow
		}
	case FlowDCA:
		if s.DCA == nil {
			return errMissingDCA
		}
		if s.Limit != nil {
			return errLimitOutsideFlow
		}
		if s.DCA.IntervalMinutes > 0 && s.DCA.DurationMinutes > 0 &&
			(s.DCA.IntervalMinutes < MinIntervalMinutes || s.DCA.IntervalMinutes > s.DCA.DurationMinutes) {
			return errIntervalRange
		}
	default:
		if s.Limit != nil {
			return errLimitOutsideFlow
		}
		if s.DCA != nil {
			return errDCAOutsideFlow
		}
	}

	for _, key := range s.SelectedWallets {
		if _, ok := s.WalletMap[key]; !ok {
			return errUnknownWallet
		}
	}

	return nil
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}

	c := *s
	if s.Token != nil {
		token := *s.Token
		c.Token = &token
	}
	if s.Limit != nil {
		limit := *s.Limit
		c.Limit = &limit
	}
	if s.DCA != nil {
		dca := *s.DCA
		c.DCA = &dca
	}
	if s.PendingSize != nil {
		size := *s.PendingSize
		c.PendingSize = &size
	}
	c.Wallets = append([]wallet.Record(nil), s.Wallets...)
	c.SelectedWallets = append([]string(nil), s.SelectedWallets...)
	c.WalletMap = make(map[string]wallet.Record, len(s.WalletMap))
	for k, v := range s.WalletMap {
		c.WalletMap[k] = v
	}

	return &c
}

// IsSelected reports whether the positional wallet key is selected.
func (s *Step) IsSelected(key string) bool {
	for _, selected := range s.SelectedWallets {
		if selected == key {
			return true
		}
	}
	return false
}

// SelectedRecords returns the selected wallet records in list order.
func (s *Step) SelectedRecords() []wallet.Record {
	out := make([]wallet.Record, 0, len(s.SelectedWallets))
	for i, rec := range s.Wallets {
		if s.IsSelected(wallet.Key(i)) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Step) setWallets(records []wallet.Record) {
	s.Wallets = wallet.Normalize(records)
	s.WalletMap = wallet.IndexMap(s.Wallets)
}

func (s *Step) pruneSelection() {
	kept := s.SelectedWallets[:0:0]
	for _, key := range s.SelectedWallets {
		if _, ok := s.WalletMap[key]; ok {
			kept = append(kept, key)
		}
	}
	s.SelectedWallets = sortKeys(kept)

	if s.CurrentWallet != "" {
		if _, ok := wallet.Find(s.Wallets, s.CurrentWallet); !ok {
			s.CurrentWallet = ""
		}
	}
}

func (s *Step) defaultSelection() {
	if len(s.SelectedWallets) == 0 && len(s.Wallets) > 0 {
		s.SelectedWallets = []string{wallet.Key(0)}
	}
}

func (s *Step) resetFlow() {
	s.Flow = FlowNone
	s.Limit = nil
	s.DCA = nil
	s.Input = InputNone
	s.PendingSize = nil
	s.PromptMessageID = 0
}

// sortKeys orders positional keys by wallet index.
func sortKeys(keys []string) []string {
	sort.SliceStable(keys, func(i, j int) bool {
		a, _ := wallet.Index(keys[i])
		b, _ := wallet.Index(keys[j])
		return a < b
	})
	return keys
}
