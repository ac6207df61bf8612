package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

type fakeBalanceSource struct {
	balance fixedpoint.Amount
	err     error
}

func (f *fakeBalanceSource) CollateralBalance(context.Context, common.Address) (fixedpoint.Amount, error) {
	return f.balance, f.err
}

func newTestBreaker(t *testing.T, source *fakeBalanceSource) *Breaker {
	t.Helper()
	b, err := New(&Config{
		CheckInterval: time.Hour,
		MinAbsolute:   fixedpoint.FromInt(10),
		Balances:      source,
		Address:       common.HexToAddress("0x1"),
		Logger:        zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestNewValidation(t *testing.T) {
	logger := zap.NewNop()
	source := &fakeBalanceSource{}

	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&Config{Logger: logger}); err == nil {
		t.Error("expected error for nil balance source")
	}
	if _, err := New(&Config{Balances: source}); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestStartsEnabled(t *testing.T) {
	b := newTestBreaker(t, &fakeBalanceSource{})
	if err := b.Approve(nil); err != nil {
		t.Errorf("breaker not enabled at start: %v", err)
	}
}

func TestOpensBelowThreshold(t *testing.T) {
	source := &fakeBalanceSource{balance: fixedpoint.FromInt(5)}
	b := newTestBreaker(t, source)

	if err := b.CheckBalance(context.Background()); err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if err := b.Approve(nil); !errors.Is(err, ErrBalanceLow) {
		t.Fatalf("expected ErrBalanceLow below minimum, got %v", err)
	}
}

func TestHysteresis(t *testing.T) {
	source := &fakeBalanceSource{balance: fixedpoint.FromInt(5)}
	b := newTestBreaker(t, source)

	// Open the breaker.
	if err := b.CheckBalance(context.Background()); err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if b.Approve(nil) == nil {
		t.Fatal("breaker did not open")
	}

	// Back above the disable threshold but below the enable threshold
	// (10 * 1.2 = 12): still open.
	source.balance = fixedpoint.FromInt(11)
	if err := b.CheckBalance(context.Background()); err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if b.Approve(nil) == nil {
		t.Fatal("breaker closed inside the hysteresis band")
	}

	// At the enable threshold: closed.
	source.balance = fixedpoint.FromInt(12)
	if err := b.CheckBalance(context.Background()); err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if err := b.Approve(nil); err != nil {
		t.Fatalf("breaker still open at the enable threshold: %v", err)
	}
}

func TestRecordTradeRaisesThreshold(t *testing.T) {
	source := &fakeBalanceSource{balance: fixedpoint.FromInt(100)}
	b := newTestBreaker(t, source)

	// Average trade cost 50, multiplier 3: disable threshold 150.
	b.RecordTrade(fixedpoint.FromInt(40))
	b.RecordTrade(fixedpoint.FromInt(60))

	status := b.GetStatus()
	if status.AvgTradeCost != fixedpoint.FromInt(50) {
		t.Errorf("avg trade cost = %s, want 50", status.AvgTradeCost)
	}
	if status.DisableThreshold != fixedpoint.FromInt(150) {
		t.Errorf("disable threshold = %s, want 150", status.DisableThreshold)
	}
	if status.EnableThreshold != fixedpoint.FromInt(180) {
		t.Errorf("enable threshold = %s, want 180", status.EnableThreshold)
	}

	// Balance 100 is now below the raised threshold.
	if err := b.CheckBalance(context.Background()); err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if b.Approve(nil) == nil {
		t.Error("breaker did not open below the dynamic threshold")
	}
}

func TestRecordTradeWindowBounded(t *testing.T) {
	b := newTestBreaker(t, &fakeBalanceSource{})

	for i := 0; i < tradeWindow+10; i++ {
		b.RecordTrade(fixedpoint.FromInt(1))
	}

	if got := b.GetStatus().RecentTradeCount; got != tradeWindow {
		t.Errorf("recent trade count = %d, want %d", got, tradeWindow)
	}
}

func TestRecordTradeIgnoresNonPositive(t *testing.T) {
	b := newTestBreaker(t, &fakeBalanceSource{})

	b.RecordTrade(0)
	b.RecordTrade(fixedpoint.FromInt(-4))

	if got := b.GetStatus().RecentTradeCount; got != 0 {
		t.Errorf("recent trade count = %d, want 0", got)
	}
}

func TestCheckBalanceErrorKeepsState(t *testing.T) {
	source := &fakeBalanceSource{err: errors.New("rpc down")}
	b := newTestBreaker(t, source)

	if err := b.CheckBalance(context.Background()); err == nil {
		t.Fatal("expected balance check error")
	}
	if err := b.Approve(nil); err != nil {
		t.Errorf("balance check failure changed breaker state: %v", err)
	}
}

func TestMinAbsoluteFloor(t *testing.T) {
	b := newTestBreaker(t, &fakeBalanceSource{})

	// Tiny trades must not drop the threshold below the absolute minimum.
	b.RecordTrade(fixedpoint.MustParse("0.5"))

	if got := b.GetStatus().DisableThreshold; got != fixedpoint.FromInt(10) {
		t.Errorf("disable threshold = %s, want the 10 floor", got)
	}
}
