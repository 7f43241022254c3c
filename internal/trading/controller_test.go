package trading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/idempotency"
	"github.com/Proton-105/himera-swap/internal/orders"
	"github.com/Proton-105/himera-swap/internal/render"
	"github.com/Proton-105/himera-swap/internal/render/rendertest"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/internal/swap"
	"github.com/Proton-105/himera-swap/internal/testutil"
	"github.com/Proton-105/himera-swap/internal/wallet"
)

const (
	tokenAddr  = "0x2222222222222222222222222222222222222222"
	walletAddr = "0x1111111111111111111111111111111111111111"
)

type fakeWallets struct {
	records []wallet.Record
}

func (f *fakeWallets) ListWallets(context.Context, int64) ([]wallet.Record, error) {
	return f.records, nil
}

type fakeMarket struct{}

func (fakeMarket) TokenInfo(_ context.Context, address string) (*session.Token, error) {
	return &session.Token{
		Address:   address,
		Symbol:    "PEPE",
		Name:      "Pepe",
		Price:     decimal.RequireFromString("0.001"),
		MarketCap: decimal.NewFromInt(40000),
		Decimals:  18,
	}, nil
}

func (fakeMarket) Balance(context.Context, string) decimal.Decimal {
	return decimal.NewFromInt(2)
}

type fakeExecutor struct {
	mu       sync.Mutex
	requests []swap.Request
	err      error
}

func (f *fakeExecutor) ExecuteSwap(_ context.Context, req swap.Request) (*swap.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &swap.Result{TxRef: "0xabc"}, nil
}

type fixture struct {
	ctrl      *Controller
	sessions  *session.MemoryStorage
	orders    *orders.MemoryStore
	transport *rendertest.Transport
	executor  *fakeExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	_, client := testutil.Redis(t)
	log := testutil.Logger()

	f := &fixture{
		sessions:  session.NewMemoryStorage(),
		orders:    orders.NewMemoryStore(),
		transport: rendertest.NewTransport(),
		executor:  &fakeExecutor{},
	}

	f.ctrl = NewController(Deps{
		Sessions:    f.sessions,
		Wallets:     &fakeWallets{records: []wallet.Record{{Address: walletAddr, Name: "main"}}},
		Market:      fakeMarket{},
		Orders:      f.orders,
		Executor:    f.executor,
		Renderer:    render.NewRenderer(f.transport, f.sessions, 0, log),
		Idempotency: idempotency.NewManager(idempotency.NewRedisStore(client, log), log),
	}, Config{NativeSymbol: "ETH"}, log)

	return f
}

func (f *fixture) step(t *testing.T, userID int64) *session.Step {
	t.Helper()
	step, err := f.sessions.Get(context.Background(), userID)
	require.NoError(t, err)
	return step
}

const (
	testWait = time.Second
	testTick = 10 * time.Millisecond
)

var user = Update{UserID: 7, ChatID: 7}

func TestLimitOrderConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	step := f.step(t, user.UserID)
	require.NotNil(t, step.Token)
	assert.Equal(t, "PEPE", step.Token.Symbol)
	assert.Equal(t, []string{"w0"}, step.SelectedWallets)
	liveID := step.MainMessageID
	require.NotZero(t, liveID)

	_, err := f.ctrl.HandleAction(ctx, user, "mode:sell")
	require.NoError(t, err)
	_, err = f.ctrl.HandleAction(ctx, user, "flow:limit")
	require.NoError(t, err)

	step = f.step(t, user.UserID)
	assert.Equal(t, session.FlowLimit, step.Flow)
	assert.Equal(t, session.ModeSell, step.Mode)
	assert.Equal(t, liveID, step.MainMessageID)

	_, err = f.ctrl.HandleAction(ctx, user, "trig")
	require.NoError(t, err)
	step = f.step(t, user.UserID)
	assert.Equal(t, session.InputLimitTriggerValue, step.Input)
	promptID := step.PromptMessageID
	require.NotZero(t, promptID)

	reply := user
	reply.MessageID = 55
	require.NoError(t, f.ctrl.HandleText(ctx, reply, "50k"))
	step = f.step(t, user.UserID)
	assert.Equal(t, session.InputNone, step.Input)
	assert.True(t, decimal.NewFromInt(50000).Equal(step.Limit.TriggerValue))
	assert.Eventually(t, func() bool {
		return len(f.transport.DeletedIDs()) == 2
	}, testWait, testTick)
	assert.ElementsMatch(t, []int{promptID, 55}, f.transport.DeletedIDs())

	notice, err := f.ctrl.HandleAction(ctx, user, "submit:p50")
	require.NoError(t, err)
	assert.Equal(t, "Placed 1 limit order(s).", notice)

	step = f.step(t, user.UserID)
	assert.Equal(t, session.FlowNone, step.Flow)
	assert.Nil(t, step.Limit)
	assert.Equal(t, liveID, step.MainMessageID)

	placed, err := f.orders.ListByUser(ctx, user.UserID, orders.StatusPending)
	require.NoError(t, err)
	require.Len(t, placed, 1)
	o := placed[0]
	assert.Equal(t, orders.KindLimit, o.Kind)
	assert.Equal(t, orders.ModeSell, o.Mode)
	assert.Equal(t, orders.MetricMarketCap, o.Metric)
	assert.Equal(t, orders.SizePercent, o.SizeKind)
	assert.True(t, decimal.NewFromInt(50).Equal(o.Size))
	assert.True(t, decimal.NewFromInt(50000).Equal(o.Target))
	assert.Equal(t, walletAddr, o.WalletAddress)
	assert.Empty(t, f.executor.requests)
}

func TestDCAOrderSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	_, err := f.ctrl.HandleAction(ctx, user, "flow:dca")
	require.NoError(t, err)

	_, err = f.ctrl.HandleAction(ctx, user, "dur")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.HandleText(ctx, user, "1h"))
	_, err = f.ctrl.HandleAction(ctx, user, "int")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.HandleText(ctx, user, "15m"))

	notice, err := f.ctrl.HandleAction(ctx, user, "submit:a0.1")
	require.NoError(t, err)
	assert.Equal(t, "Placed 1 dca order(s).", notice)

	placed, err := f.orders.ListByUser(ctx, user.UserID, orders.StatusPending)
	require.NoError(t, err)
	require.Len(t, placed, 1)
	assert.Equal(t, orders.KindDCA, placed[0].Kind)
	assert.Equal(t, 4, placed[0].OccurrencesTotal)
	require.NotNil(t, placed[0].NextDueAt)
}

func TestSubmitWithoutTriggerIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	_, err := f.ctrl.HandleAction(ctx, user, "flow:limit")
	require.NoError(t, err)

	_, err = f.ctrl.HandleAction(ctx, user, "submit:a0.1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, session.FlowLimit, f.step(t, user.UserID).Flow)
}

func TestInvalidInputLeavesStepUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	_, err := f.ctrl.HandleAction(ctx, user, "flow:limit")
	require.NoError(t, err)
	_, err = f.ctrl.HandleAction(ctx, user, "trig")
	require.NoError(t, err)
	before := f.step(t, user.UserID)

	err = f.ctrl.HandleText(ctx, user, "lots")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	after := f.step(t, user.UserID)
	assert.Equal(t, before.Input, after.Input)
	assert.Equal(t, before.PromptMessageID, after.PromptMessageID)
	assert.True(t, after.Limit.TriggerValue.IsZero())
}

func TestTextWithoutTokenIsRejected(t *testing.T) {
	f := newFixture(t)

	err := f.ctrl.HandleText(context.Background(), user, "hello")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestMarketBuyExecutesOnSelectedWallets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	sendsBefore := f.transport.Sends

	_, err := f.ctrl.HandleAction(ctx, user, "size:a0.1")
	require.NoError(t, err)

	require.Len(t, f.executor.requests, 1)
	req := f.executor.requests[0]
	assert.Equal(t, walletAddr, req.WalletAddress)
	assert.Equal(t, tokenAddr, req.TokenAddress)
	assert.Equal(t, "buy", req.Mode)
	assert.True(t, decimal.RequireFromString("0.1").Equal(req.Size))
	assert.True(t, wallet.DefaultSlippage.Equal(req.Slippage))
	assert.NotEmpty(t, req.ClientRef)

	assert.Equal(t, sendsBefore+1, f.transport.Sends)
	summary, ok := f.transport.Message(f.step(t, user.UserID).MainMessageID + 1)
	require.True(t, ok)
	assert.Contains(t, summary.Text, "✅ main")
}

func TestMarketFailureIsReportedPerWallet(t *testing.T) {
	f := newFixture(t)
	f.executor.err = apperrors.NewExecutionError("insufficient balance", nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	_, err := f.ctrl.HandleAction(ctx, user, "size:a1")
	require.NoError(t, err)

	summary, ok := f.transport.Message(f.step(t, user.UserID).MainMessageID + 1)
	require.True(t, ok)
	assert.Contains(t, summary.Text, "❌ main: Swap failed: insufficient balance")
}

func TestSellSizeMustBePercent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	_, err := f.ctrl.HandleAction(ctx, user, "mode:sell")
	require.NoError(t, err)

	_, err = f.ctrl.HandleAction(ctx, user, "size:a0.1")
	require.Error(t, err)
	assert.Empty(t, f.executor.requests)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := &orders.Order{UserID: user.UserID, Kind: orders.KindLimit, TokenSymbol: "PEPE", Mode: orders.ModeBuy}
	require.NoError(t, f.orders.Create(ctx, o))

	notice, err := f.ctrl.HandleAction(ctx, user, "cxl:"+o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Order canceled.", notice)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCanceled, got.Status)
}

func TestCancelOrderAlreadyTriggered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := &orders.Order{UserID: user.UserID, Kind: orders.KindLimit}
	require.NoError(t, f.orders.Create(ctx, o))
	require.NoError(t, f.orders.UpdateStatus(ctx, o.ID, orders.StatusPending, orders.StatusTriggered, orders.Update{}))

	_, err := f.ctrl.CancelOrder(ctx, user, o.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusTriggered, got.Status)
}

func TestCancelForeignOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := &orders.Order{UserID: 99, Kind: orders.KindLimit}
	require.NoError(t, f.orders.Create(ctx, o))

	_, err := f.ctrl.CancelOrder(ctx, user, o.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestListOrdersKeepsFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	_, err := f.ctrl.HandleAction(ctx, user, "flow:limit")
	require.NoError(t, err)

	_, err = f.ctrl.HandleAction(ctx, user, "orders:1")
	require.NoError(t, err)

	step := f.step(t, user.UserID)
	assert.Equal(t, session.FlowLimit, step.Flow)
	msg, ok := f.transport.Message(step.MainMessageID)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "no pending orders")
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, 3, parsePage("3"))
	assert.Equal(t, 1, parsePage(""))
	assert.Equal(t, 1, parsePage("-2"))
}

type flakyOrders struct {
	*orders.MemoryStore
	failures int
}

func (s *flakyOrders) CreateBatch(ctx context.Context, batch []*orders.Order) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("db down")
	}
	return s.MemoryStore.CreateBatch(ctx, batch)
}

func TestFailedSubmitCanBeRetriedWithoutDuplicates(t *testing.T) {
	f := newFixture(t)
	store := &flakyOrders{MemoryStore: f.orders, failures: 1}
	f.ctrl.deps.Orders = store
	f.ctrl.deps.Wallets = &fakeWallets{records: []wallet.Record{
		{Address: walletAddr, Name: "main"},
		{Address: "0x3333333333333333333333333333333333333333", Name: "alt"},
	}}
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	_, err := f.ctrl.HandleAction(ctx, user, "w:w1")
	require.NoError(t, err)
	_, err = f.ctrl.HandleAction(ctx, user, "flow:limit")
	require.NoError(t, err)
	_, err = f.ctrl.HandleAction(ctx, user, "trig")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.HandleText(ctx, user, "50k"))

	_, err = f.ctrl.HandleAction(ctx, user, "submit:a0.1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDatabase))

	placed, err := f.orders.ListByUser(ctx, user.UserID)
	require.NoError(t, err)
	assert.Empty(t, placed)

	notice, err := f.ctrl.HandleAction(ctx, user, "submit:a0.1")
	require.NoError(t, err)
	assert.Equal(t, "Placed 2 limit order(s).", notice)

	placed, err = f.orders.ListByUser(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, placed, 2)
	wallets := []string{placed[0].WalletAddress, placed[1].WalletAddress}
	assert.ElementsMatch(t, []string{walletAddr, "0x3333333333333333333333333333333333333333"}, wallets)
}

func TestExpiredSessionButtonsReportSessionNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, data := range []string{"w:w1", "submit:a0.1", "flow:limit", "mode:sell"} {
		_, err := f.ctrl.HandleAction(ctx, user, data)
		require.Error(t, err, data)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound), data)
	}
	assert.Zero(t, f.transport.Sends)

	_, err := f.ctrl.HandleAction(ctx, user, "orders:1")
	require.NoError(t, err)
}

type slowMarket struct {
	fakeMarket
	delay time.Duration
}

func (m slowMarket) Balance(ctx context.Context, _ string) decimal.Decimal {
	select {
	case <-time.After(m.delay):
		return decimal.NewFromInt(1)
	case <-ctx.Done():
		return decimal.Zero
	}
}

func TestBalancesShareOneDeadline(t *testing.T) {
	f := newFixture(t)
	records := []wallet.Record{
		{Address: "0x1111111111111111111111111111111111111111"},
		{Address: "0x3333333333333333333333333333333333333333"},
		{Address: "0x4444444444444444444444444444444444444444"},
		{Address: "0x5555555555555555555555555555555555555555"},
	}
	ctx := context.Background()

	f.ctrl.deps.Market = slowMarket{delay: 150 * time.Millisecond}
	started := time.Now()
	got := f.ctrl.balances(ctx, records)
	assert.Less(t, time.Since(started), 450*time.Millisecond, "lookups run concurrently")
	for _, rec := range records {
		assert.True(t, decimal.NewFromInt(1).Equal(got[rec.Address]))
	}

	f.ctrl.deps.Market = slowMarket{delay: time.Hour}
	f.ctrl.cfg.BalanceBudget = 50 * time.Millisecond
	started = time.Now()
	got = f.ctrl.balances(ctx, records)
	assert.Less(t, time.Since(started), time.Second)
	assert.Len(t, got, 4)
	for _, rec := range records {
		assert.True(t, got[rec.Address].IsZero())
	}
}

type movingMarket struct {
	fakeMarket
	marketCap decimal.Decimal
}

func (m *movingMarket) TokenInfo(ctx context.Context, address string) (*session.Token, error) {
	token, err := m.fakeMarket.TokenInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	token.MarketCap = m.marketCap
	return token, nil
}

func TestRefreshReselectsTokenAndKeepsSelection(t *testing.T) {
	f := newFixture(t)
	market := &movingMarket{marketCap: decimal.NewFromInt(40000)}
	f.ctrl.deps.Market = market
	f.ctrl.deps.Wallets = &fakeWallets{records: []wallet.Record{
		{Address: walletAddr, Name: "main"},
		{Address: "0x3333333333333333333333333333333333333333", Name: "alt"},
	}}
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleText(ctx, user, tokenAddr))
	_, err := f.ctrl.HandleAction(ctx, user, "w:w1")
	require.NoError(t, err)
	_, err = f.ctrl.HandleAction(ctx, user, "mode:sell")
	require.NoError(t, err)
	before := f.step(t, user.UserID)

	market.marketCap = decimal.NewFromInt(90000)
	_, err = f.ctrl.HandleAction(ctx, user, "refresh")
	require.NoError(t, err)

	after := f.step(t, user.UserID)
	assert.True(t, decimal.NewFromInt(40000).Equal(before.Token.MarketCap))
	assert.True(t, decimal.NewFromInt(90000).Equal(after.Token.MarketCap))
	assert.Equal(t, before.SelectedWallets, after.SelectedWallets)
	assert.Equal(t, session.ModeSell, after.Mode)
	assert.Equal(t, before.MainMessageID, after.MainMessageID)
}
