package merger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/txmgr"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/ledger"
	"github.com/quantfold/polyarb/pkg/types"
)

var (
	testOwner     = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	testCondition = common.HexToHash("0xabc1")
	testYesToken  = big.NewInt(1111)
	testNoToken   = big.NewInt(2222)
)

// fakeBalances serves scripted position and collateral balances. The
// collateral value can change between reads to simulate redemption.
type fakeBalances struct {
	positions        map[string]fixedpoint.Amount
	collateral       []fixedpoint.Amount // consumed in order, last repeats
	collateralReads  int
	positionErr      error
}

func (f *fakeBalances) PositionBalance(_ context.Context, _ common.Address, tokenID *big.Int) (fixedpoint.Amount, error) {
	if f.positionErr != nil {
		return 0, f.positionErr
	}
	return f.positions[tokenID.String()], nil
}

func (f *fakeBalances) CollateralBalance(context.Context, common.Address) (fixedpoint.Amount, error) {
	idx := f.collateralReads
	if idx >= len(f.collateral) {
		idx = len(f.collateral) - 1
	}
	f.collateralReads++
	return f.collateral[idx], nil
}

type fakeEstimator struct {
	estimate uint64
	err      error
}

func (f *fakeEstimator) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.err
}

// fakeSender records the payload and returns a scripted receipt.
type fakeSender struct {
	sendErr    error
	confirmErr error
	payload    *txmgr.Payload
	receipt    *ethtypes.Receipt
}

func (f *fakeSender) Send(_ context.Context, payload txmgr.Payload) (common.Hash, error) {
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.payload = &payload
	return common.HexToHash("0xdead"), nil
}

func (f *fakeSender) AwaitConfirmation(_ context.Context, hash common.Hash, _ time.Duration) (*ethtypes.Receipt, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: hash, GasUsed: 120_000}, nil
}

func testContracts() *ledger.Contracts {
	return ledger.NewContracts(nil,
		"0x4D97DCd97eC945f40cF65F87097ACe5EA0476045",
		"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
}

func fundedBalances(amount fixedpoint.Amount, redeemed fixedpoint.Amount) *fakeBalances {
	return &fakeBalances{
		positions: map[string]fixedpoint.Amount{
			testYesToken.String(): amount,
			testNoToken.String():  amount,
		},
		collateral: []fixedpoint.Amount{
			fixedpoint.FromInt(100),
			fixedpoint.FromInt(100) + redeemed,
		},
	}
}

func newTestMerger(balances *fakeBalances, estimator *fakeEstimator, sender *fakeSender) *Merger {
	return New(testContracts(), balances, estimator, sender, testOwner, Config{Logger: zap.NewNop()})
}

func TestMergeSuccess(t *testing.T) {
	amount := fixedpoint.FromInt(10)
	sender := &fakeSender{}
	m := newTestMerger(fundedBalances(amount, amount), &fakeEstimator{estimate: 100_000}, sender)

	receipt, err := m.Merge(context.Background(), testCondition, testYesToken, testNoToken, amount)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if receipt == nil || receipt.Status != ethtypes.ReceiptStatusSuccessful {
		t.Fatal("expected successful receipt")
	}
	if m.Halted() {
		t.Error("merger halted after clean merge")
	}

	// Gas limit carries the 20% estimation buffer.
	if sender.payload.GasLimit != 120_000 {
		t.Errorf("gas limit = %d, want 120000", sender.payload.GasLimit)
	}
	if sender.payload.To != testContracts().CTFAddress() {
		t.Errorf("payload to = %s, want CTF address", sender.payload.To.Hex())
	}
	if len(sender.payload.Data) == 0 {
		t.Error("empty merge calldata")
	}
}

func TestMergeInsufficientBalance(t *testing.T) {
	amount := fixedpoint.FromInt(10)

	tests := []struct {
		name     string
		yes      fixedpoint.Amount
		no       fixedpoint.Amount
		wantSide types.Side
	}{
		{name: "short-yes", yes: fixedpoint.FromInt(5), no: amount, wantSide: types.SideYes},
		{name: "short-no", yes: amount, no: fixedpoint.FromInt(9), wantSide: types.SideNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balances := &fakeBalances{
				positions: map[string]fixedpoint.Amount{
					testYesToken.String(): tt.yes,
					testNoToken.String():  tt.no,
				},
				collateral: []fixedpoint.Amount{0},
			}
			sender := &fakeSender{}
			m := newTestMerger(balances, &fakeEstimator{estimate: 100_000}, sender)

			_, err := m.Merge(context.Background(), testCondition, testYesToken, testNoToken, amount)
			var insufErr *types.InsufficientBalanceError
			if !errors.As(err, &insufErr) {
				t.Fatalf("expected InsufficientBalanceError, got %v", err)
			}
			if insufErr.Side != tt.wantSide {
				t.Errorf("side = %s, want %s", insufErr.Side, tt.wantSide)
			}
			if sender.payload != nil {
				t.Error("transaction sent despite insufficient balance")
			}
		})
	}
}

func TestMergeInvalidAmount(t *testing.T) {
	m := newTestMerger(fundedBalances(0, 0), &fakeEstimator{estimate: 100_000}, &fakeSender{})

	_, err := m.Merge(context.Background(), testCondition, testYesToken, testNoToken, 0)
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMergeRedemptionWithinTolerance(t *testing.T) {
	amount := fixedpoint.FromInt(10)
	// Redeemed one cent short: exactly at the tolerance boundary.
	m := newTestMerger(fundedBalances(amount, amount-fixedpoint.Cent), &fakeEstimator{estimate: 100_000}, &fakeSender{})

	_, err := m.Merge(context.Background(), testCondition, testYesToken, testNoToken, amount)
	if err != nil {
		t.Fatalf("Merge at tolerance boundary: %v", err)
	}
	if m.Halted() {
		t.Error("halted within tolerance")
	}
}

func TestMergeRedemptionViolationHalts(t *testing.T) {
	amount := fixedpoint.FromInt(10)
	// Redeemed 1.01 cents short of the merged amount.
	short := fixedpoint.Cent + fixedpoint.MustParse("0.0001")
	m := newTestMerger(fundedBalances(amount, amount-short), &fakeEstimator{estimate: 100_000}, &fakeSender{})

	receipt, err := m.Merge(context.Background(), testCondition, testYesToken, testNoToken, amount)
	var redErr *types.RedemptionInvariantError
	if !errors.As(err, &redErr) {
		t.Fatalf("expected RedemptionInvariantError, got %v", err)
	}
	if receipt == nil {
		t.Error("receipt not returned alongside invariant error")
	}
	if !m.Halted() {
		t.Fatal("merger not halted after violation")
	}

	// Subsequent merges are refused outright.
	_, err = m.Merge(context.Background(), testCondition, testYesToken, testNoToken, amount)
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("expected ErrHalted, got %v", err)
	}

	m.Resume()
	if m.Halted() {
		t.Error("halt not cleared by Resume")
	}
}

func TestMergeGasEstimationFallback(t *testing.T) {
	amount := fixedpoint.FromInt(10)
	sender := &fakeSender{}
	m := newTestMerger(fundedBalances(amount, amount), &fakeEstimator{err: errors.New("execution reverted")}, sender)

	_, err := m.Merge(context.Background(), testCondition, testYesToken, testNoToken, amount)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if sender.payload.GasLimit != DefaultGasLimit {
		t.Errorf("gas limit = %d, want default %d", sender.payload.GasLimit, DefaultGasLimit)
	}
}

func TestMergeSendFailure(t *testing.T) {
	amount := fixedpoint.FromInt(10)
	sender := &fakeSender{sendErr: errors.New("capacity")}
	m := newTestMerger(fundedBalances(amount, amount), &fakeEstimator{estimate: 100_000}, sender)

	_, err := m.Merge(context.Background(), testCondition, testYesToken, testNoToken, amount)
	if err == nil {
		t.Fatal("expected send error")
	}
	if m.Halted() {
		t.Error("send failure must not halt merging")
	}
}
